package badger

import (
	"context"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/store"
)

// Reader methods run in read-only View transactions: they never block
// writers and observe the latest committed state.

func (s *Store) GetNode(ctx context.Context, versionID, nodeID string) (model.Node, error) {
	var node model.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = getNode(txn, versionID, nodeID)
		return err
	})
	return node, err
}

func (s *Store) GetEdges(ctx context.Context, versionID, nodeID string, dir store.Direction, relTypes ...model.RelationshipType) ([]model.Edge, error) {
	var edges []model.Edge
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		edges, err = getEdges(txn, versionID, nodeID, dir, relTypes)
		return err
	})
	return edges, err
}

func (s *Store) QueryByType(ctx context.Context, versionID string, entityType model.EntityType) ([]model.Node, error) {
	var nodes []model.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		nodes, err = queryByType(txn, versionID, entityType)
		return err
	})
	return nodes, err
}

func (s *Store) ListNodes(ctx context.Context, versionID string) ([]model.Node, error) {
	var nodes []model.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		nodes, err = listNodes(txn, versionID)
		return err
	})
	return nodes, err
}

func (s *Store) ListEdges(ctx context.Context, versionID string) ([]model.Edge, error) {
	var edges []model.Edge
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		edges, err = listEdges(txn, versionID)
		return err
	})
	return edges, err
}

func (s *Store) GetVersion(ctx context.Context, versionID string) (model.Version, error) {
	var v model.Version
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = getVersion(txn, versionID)
		return err
	})
	return v, err
}

func (s *Store) ListVersions(ctx context.Context, methodologyID string) ([]model.Version, error) {
	var versions []model.Version
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		versions, err = listVersions(txn, methodologyID)
		return err
	})
	return versions, err
}

func (s *Store) GetMethodology(ctx context.Context, methodologyID string) (model.Methodology, error) {
	var m model.Methodology
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = getMethodology(txn, methodologyID)
		return err
	})
	return m, err
}

func (s *Store) ListMethodologies(ctx context.Context) ([]model.Methodology, error) {
	var methodologies []model.Methodology
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		methodologies, err = listMethodologies(txn)
		return err
	})
	return methodologies, err
}

func (s *Store) GetProposal(ctx context.Context, proposalID string) (model.Proposal, error) {
	var p model.Proposal
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = getProposal(txn, proposalID)
		return err
	})
	return p, err
}

func (s *Store) ListProposals(ctx context.Context, methodologyID string) ([]model.Proposal, error) {
	var proposals []model.Proposal
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		proposals, err = listProposals(txn, methodologyID)
		return err
	})
	return proposals, err
}
