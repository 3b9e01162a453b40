package badger

import (
	badger "github.com/dgraph-io/badger/v4"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/store"
)

// badgerTx is the write surface inside an Update transaction.
type badgerTx struct {
	txn *badger.Txn
}

var _ store.Tx = (*badgerTx)(nil)

func (t *badgerTx) GetNode(versionID, nodeID string) (model.Node, error) {
	return getNode(t.txn, versionID, nodeID)
}

func (t *badgerTx) GetEdges(versionID, nodeID string, dir store.Direction, relTypes ...model.RelationshipType) ([]model.Edge, error) {
	return getEdges(t.txn, versionID, nodeID, dir, relTypes)
}

func (t *badgerTx) QueryByType(versionID string, entityType model.EntityType) ([]model.Node, error) {
	return queryByType(t.txn, versionID, entityType)
}

func (t *badgerTx) PutNode(node model.Node) error {
	return putNode(t.txn, node)
}

func (t *badgerTx) PutEdge(edge model.Edge) error {
	return putEdge(t.txn, edge)
}

func (t *badgerTx) DeleteNode(versionID, nodeID string) error {
	return deleteNode(t.txn, versionID, nodeID)
}

func (t *badgerTx) DeleteEdge(versionID, edgeID string) error {
	return deleteEdgeByID(t.txn, versionID, edgeID)
}

func (t *badgerTx) CopyVersion(fromVersionID, toVersionID string) error {
	return copyVersion(t.txn, fromVersionID, toVersionID)
}

func (t *badgerTx) PutVersion(v model.Version) error {
	return putVersion(t.txn, v)
}

func (t *badgerTx) GetVersion(versionID string) (model.Version, error) {
	return getVersion(t.txn, versionID)
}

func (t *badgerTx) PutMethodology(m model.Methodology) error {
	return putMethodology(t.txn, m)
}

func (t *badgerTx) GetMethodology(methodologyID string) (model.Methodology, error) {
	return getMethodology(t.txn, methodologyID)
}

func (t *badgerTx) GetMethodologyByName(name string) (model.Methodology, error) {
	return getMethodologyByName(t.txn, name)
}

func (t *badgerTx) SetCurrentVersion(methodologyID, expectVersionID, newVersionID string) error {
	return setCurrentVersion(t.txn, methodologyID, expectVersionID, newVersionID)
}

func (t *badgerTx) PutProposal(p model.Proposal) error {
	return putProposal(t.txn, p)
}

func (t *badgerTx) GetProposal(proposalID string) (model.Proposal, error) {
	return getProposal(t.txn, proposalID)
}
