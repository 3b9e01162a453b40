// Package store defines the storage contract for the methodology graph.
//
// Two interchangeable backends implement the contract: a relational one over
// SQLite (flat node/edge records keyed by version) and a native graph one
// over BadgerDB (node/edge primitives under adjacency-indexed keys). Business
// logic depends only on this package; no caller may rely on backend-specific
// behavior. The storetest package holds the conformance suite both backends
// must pass.
//
// # Critical Patterns
//
// Version scoping
//   - Every node/edge operation is scoped to one version id. The storage key
//     for graph entities is always (versionID, entityID).
//
// Transactions
//   - All writes happen inside WithTransaction. Writes commit together or not
//     at all. Concurrent writers to the same version serialize: one commits,
//     the other fails with CONFLICT_DETECTED. Readers never block and never
//     observe partial writes.
//
// Deterministic reads
//   - Every multi-row read returns results in a deterministic order (sorted
//     by entity id, byte-wise) so diffs and traversals replay identically
//     across backends.
package store

import (
	"context"

	"github.com/crafthaus/methodgraph/internal/model"
)

// Direction selects which end of an edge a node occupies in a GetEdges query.
type Direction string

const (
	// Outgoing selects edges where the node is the from end.
	Outgoing Direction = "outgoing"
	// Incoming selects edges where the node is the to end.
	Incoming Direction = "incoming"
)

// Store is the storage-agnostic persistence contract for the methodology
// graph and its surrounding records.
type Store interface {
	Reader

	// WithTransaction runs fn inside a write transaction scoped to the given
	// version. All writes made through the Tx commit together or none do.
	// A concurrent writer to the same version causes one of the two to fail
	// with a CONFLICT_DETECTED error. fn returning an error aborts the
	// transaction with no partial writes.
	WithTransaction(ctx context.Context, versionID string, fn func(tx Tx) error) error

	// TouchMethodology records a best-effort last-access timestamp. Failures
	// are returned as AUXILIARY_FAILURE errors for the caller to log; they
	// must never abort a primary operation.
	TouchMethodology(ctx context.Context, methodologyID string) error

	// Close releases the underlying storage.
	Close() error
}

// Reader is the read-only surface of the store. Reads run outside
// transactions, never block writers, and observe the latest committed state.
type Reader interface {
	// GetNode returns the node with the given logical id in a version.
	GetNode(ctx context.Context, versionID, nodeID string) (model.Node, error)

	// GetEdges returns the edges touching nodeID in the given direction,
	// optionally filtered to specific relationship types, ordered by edge id.
	GetEdges(ctx context.Context, versionID, nodeID string, dir Direction, relTypes ...model.RelationshipType) ([]model.Edge, error)

	// QueryByType returns all nodes of one entity type in a version, ordered
	// by node id.
	QueryByType(ctx context.Context, versionID string, entityType model.EntityType) ([]model.Node, error)

	// ListNodes returns every node in a version, ordered by node id.
	ListNodes(ctx context.Context, versionID string) ([]model.Node, error)

	// ListEdges returns every edge in a version, ordered by edge id.
	ListEdges(ctx context.Context, versionID string) ([]model.Edge, error)

	// GetVersion returns a version record.
	GetVersion(ctx context.Context, versionID string) (model.Version, error)

	// ListVersions returns a methodology's versions ordered by version number.
	ListVersions(ctx context.Context, methodologyID string) ([]model.Version, error)

	// GetMethodology returns a methodology record.
	GetMethodology(ctx context.Context, methodologyID string) (model.Methodology, error)

	// ListMethodologies returns all methodologies ordered by name.
	ListMethodologies(ctx context.Context) ([]model.Methodology, error)

	// GetProposal returns a proposal record.
	GetProposal(ctx context.Context, proposalID string) (model.Proposal, error)

	// ListProposals returns a methodology's proposals ordered by creation
	// time, then id.
	ListProposals(ctx context.Context, methodologyID string) ([]model.Proposal, error)
}

// Tx is the write surface available inside WithTransaction. Reads through a
// Tx observe the transaction's own uncommitted writes.
type Tx interface {
	// GetNode returns a node visible to this transaction.
	GetNode(versionID, nodeID string) (model.Node, error)

	// GetEdges mirrors Reader.GetEdges within the transaction.
	GetEdges(versionID, nodeID string, dir Direction, relTypes ...model.RelationshipType) ([]model.Edge, error)

	// QueryByType mirrors Reader.QueryByType within the transaction.
	QueryByType(versionID string, entityType model.EntityType) ([]model.Node, error)

	// PutNode upserts a node under its owning version.
	PutNode(node model.Node) error

	// PutEdge upserts an edge under its owning version.
	PutEdge(edge model.Edge) error

	// DeleteNode removes a node and cascades to every edge referencing it
	// within the same version.
	DeleteNode(versionID, nodeID string) error

	// DeleteEdge removes a single edge.
	DeleteEdge(versionID, edgeID string) error

	// CopyVersion carries every node and edge of fromVersionID forward under
	// toVersionID. Logical entity ids are preserved.
	CopyVersion(fromVersionID, toVersionID string) error

	// PutVersion upserts a version record.
	PutVersion(v model.Version) error

	// GetVersion returns a version record visible to this transaction.
	GetVersion(versionID string) (model.Version, error)

	// PutMethodology upserts a methodology record.
	PutMethodology(m model.Methodology) error

	// GetMethodology returns a methodology visible to this transaction.
	GetMethodology(methodologyID string) (model.Methodology, error)

	// GetMethodologyByName returns the methodology with the given name, or a
	// NOT_FOUND error. Methodology names are unique; the in-transaction
	// lookup backs the create-time uniqueness guard.
	GetMethodologyByName(name string) (model.Methodology, error)

	// SetCurrentVersion swaps a methodology's current-version pointer with
	// compare-and-swap semantics: the swap applies only if the pointer still
	// equals expectVersionID, otherwise the transaction fails with
	// CONFLICT_DETECTED.
	SetCurrentVersion(methodologyID, expectVersionID, newVersionID string) error

	// PutProposal upserts a proposal record.
	PutProposal(p model.Proposal) error

	// GetProposal returns a proposal visible to this transaction.
	GetProposal(proposalID string) (model.Proposal, error)
}
