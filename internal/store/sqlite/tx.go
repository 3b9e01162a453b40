package sqlite

import (
	"context"
	"database/sql"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/store"
)

// sqlTx is the write surface inside an open IMMEDIATE transaction. It holds
// the dedicated connection the transaction runs on; reads through it observe
// the transaction's own uncommitted writes.
type sqlTx struct {
	ctx  context.Context
	conn *sql.Conn
}

var _ store.Tx = (*sqlTx)(nil)

func (t *sqlTx) GetNode(versionID, nodeID string) (model.Node, error) {
	return getNode(t.ctx, t.conn, versionID, nodeID)
}

func (t *sqlTx) GetEdges(versionID, nodeID string, dir store.Direction, relTypes ...model.RelationshipType) ([]model.Edge, error) {
	return getEdges(t.ctx, t.conn, versionID, nodeID, dir, relTypes)
}

func (t *sqlTx) QueryByType(versionID string, entityType model.EntityType) ([]model.Node, error) {
	return queryByType(t.ctx, t.conn, versionID, entityType)
}

func (t *sqlTx) PutNode(node model.Node) error {
	return putNode(t.ctx, t.conn, node)
}

func (t *sqlTx) PutEdge(edge model.Edge) error {
	return putEdge(t.ctx, t.conn, edge)
}

func (t *sqlTx) DeleteNode(versionID, nodeID string) error {
	return deleteNode(t.ctx, t.conn, versionID, nodeID)
}

func (t *sqlTx) DeleteEdge(versionID, edgeID string) error {
	return deleteEdge(t.ctx, t.conn, versionID, edgeID)
}

func (t *sqlTx) CopyVersion(fromVersionID, toVersionID string) error {
	return copyVersion(t.ctx, t.conn, fromVersionID, toVersionID)
}

func (t *sqlTx) PutVersion(v model.Version) error {
	return putVersion(t.ctx, t.conn, v)
}

func (t *sqlTx) GetVersion(versionID string) (model.Version, error) {
	return getVersion(t.ctx, t.conn, versionID)
}

func (t *sqlTx) PutMethodology(m model.Methodology) error {
	return putMethodology(t.ctx, t.conn, m)
}

func (t *sqlTx) GetMethodology(methodologyID string) (model.Methodology, error) {
	return getMethodology(t.ctx, t.conn, methodologyID)
}

func (t *sqlTx) GetMethodologyByName(name string) (model.Methodology, error) {
	return getMethodologyByName(t.ctx, t.conn, name)
}

func (t *sqlTx) SetCurrentVersion(methodologyID, expectVersionID, newVersionID string) error {
	return setCurrentVersion(t.ctx, t.conn, methodologyID, expectVersionID, newVersionID)
}

func (t *sqlTx) PutProposal(p model.Proposal) error {
	return putProposal(t.ctx, t.conn, p)
}

func (t *sqlTx) GetProposal(proposalID string) (model.Proposal, error) {
	return getProposal(t.ctx, t.conn, proposalID)
}
