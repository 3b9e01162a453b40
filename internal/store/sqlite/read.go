package sqlite

import (
	"context"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/store"
)

// Reader methods run on the shared pool and observe the latest committed
// state; they never see an in-flight transaction's writes.

func (s *Store) GetNode(ctx context.Context, versionID, nodeID string) (model.Node, error) {
	return getNode(ctx, s.db, versionID, nodeID)
}

func (s *Store) GetEdges(ctx context.Context, versionID, nodeID string, dir store.Direction, relTypes ...model.RelationshipType) ([]model.Edge, error) {
	return getEdges(ctx, s.db, versionID, nodeID, dir, relTypes)
}

func (s *Store) QueryByType(ctx context.Context, versionID string, entityType model.EntityType) ([]model.Node, error) {
	return queryByType(ctx, s.db, versionID, entityType)
}

func (s *Store) ListNodes(ctx context.Context, versionID string) ([]model.Node, error) {
	return listNodes(ctx, s.db, versionID)
}

func (s *Store) ListEdges(ctx context.Context, versionID string) ([]model.Edge, error) {
	return listEdges(ctx, s.db, versionID)
}

func (s *Store) GetVersion(ctx context.Context, versionID string) (model.Version, error) {
	return getVersion(ctx, s.db, versionID)
}

func (s *Store) ListVersions(ctx context.Context, methodologyID string) ([]model.Version, error) {
	return listVersions(ctx, s.db, methodologyID)
}

func (s *Store) GetMethodology(ctx context.Context, methodologyID string) (model.Methodology, error) {
	return getMethodology(ctx, s.db, methodologyID)
}

func (s *Store) ListMethodologies(ctx context.Context) ([]model.Methodology, error) {
	return listMethodologies(ctx, s.db)
}

func (s *Store) GetProposal(ctx context.Context, proposalID string) (model.Proposal, error) {
	return getProposal(ctx, s.db, proposalID)
}

func (s *Store) ListProposals(ctx context.Context, methodologyID string) ([]model.Proposal, error) {
	return listProposals(ctx, s.db, methodologyID)
}
