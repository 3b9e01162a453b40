// Package storetest holds the conformance suite every store backend must
// pass. Backend packages invoke Run from their own tests with a factory that
// produces a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/store"
)

// Factory produces a fresh, empty store for one test. Cleanup registration
// is the factory's responsibility.
type Factory func(t *testing.T) store.Store

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Run exercises the full store contract against the given backend.
func Run(t *testing.T, newStore Factory) {
	t.Run("MethodologyRoundTrip", func(t *testing.T) { testMethodologyRoundTrip(t, newStore(t)) })
	t.Run("MethodologyNameLookup", func(t *testing.T) { testMethodologyNameLookup(t, newStore(t)) })
	t.Run("VersionLineageOrder", func(t *testing.T) { testVersionLineageOrder(t, newStore(t)) })
	t.Run("NodeRoundTripAndOrder", func(t *testing.T) { testNodeRoundTripAndOrder(t, newStore(t)) })
	t.Run("VersionScoping", func(t *testing.T) { testVersionScoping(t, newStore(t)) })
	t.Run("EdgeDirectionsAndFilters", func(t *testing.T) { testEdgeDirectionsAndFilters(t, newStore(t)) })
	t.Run("DeleteNodeCascadesEdges", func(t *testing.T) { testDeleteNodeCascadesEdges(t, newStore(t)) })
	t.Run("DeleteEdge", func(t *testing.T) { testDeleteEdge(t, newStore(t)) })
	t.Run("CopyVersion", func(t *testing.T) { testCopyVersion(t, newStore(t)) })
	t.Run("SetCurrentVersionCAS", func(t *testing.T) { testSetCurrentVersionCAS(t, newStore(t)) })
	t.Run("TransactionRollback", func(t *testing.T) { testTransactionRollback(t, newStore(t)) })
	t.Run("TxReadsOwnWrites", func(t *testing.T) { testTxReadsOwnWrites(t, newStore(t)) })
	t.Run("ProposalRoundTripAndList", func(t *testing.T) { testProposalRoundTripAndList(t, newStore(t)) })
	t.Run("TouchMethodology", func(t *testing.T) { testTouchMethodology(t, newStore(t)) })
}

// seed creates a methodology with one version and returns their ids.
func seed(t *testing.T, s store.Store) (methodologyID, versionID string) {
	t.Helper()
	methodologyID, versionID = "m-1", "v-1"
	err := s.WithTransaction(context.Background(), versionID, func(tx store.Tx) error {
		if err := tx.PutMethodology(model.Methodology{
			ID:         methodologyID,
			Name:       "incident response",
			AccessTier: "private",
			CreatedAt:  baseTime,
		}); err != nil {
			return err
		}
		if err := tx.PutVersion(model.Version{
			ID:            versionID,
			MethodologyID: methodologyID,
			Number:        model.InitialDraft(),
			CreatedAt:     baseTime,
		}); err != nil {
			return err
		}
		return tx.SetCurrentVersion(methodologyID, "", versionID)
	})
	require.NoError(t, err)
	return methodologyID, versionID
}

func putNode(t *testing.T, s store.Store, versionID, nodeID string, entityType model.EntityType, attrs model.Attrs) {
	t.Helper()
	err := s.WithTransaction(context.Background(), versionID, func(tx store.Tx) error {
		return tx.PutNode(model.Node{
			ID:         nodeID,
			EntityType: entityType,
			VersionID:  versionID,
			Attrs:      attrs,
			CreatedAt:  baseTime,
		})
	})
	require.NoError(t, err)
}

func putEdge(t *testing.T, s store.Store, versionID, edgeID, from, to string, relType model.RelationshipType) {
	t.Helper()
	err := s.WithTransaction(context.Background(), versionID, func(tx store.Tx) error {
		return tx.PutEdge(model.Edge{
			ID:               edgeID,
			FromNodeID:       from,
			ToNodeID:         to,
			RelationshipType: relType,
			VersionID:        versionID,
		})
	})
	require.NoError(t, err)
}

func requireAttrsEqual(t *testing.T, want, got model.Attrs) {
	t.Helper()
	equal, err := model.AttrsEqual(want, got)
	require.NoError(t, err)
	require.True(t, equal, "attrs differ: want %v, got %v", want, got)
}

func testMethodologyRoundTrip(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	methodologyID, versionID := seed(t, s)

	m, err := s.GetMethodology(ctx, methodologyID)
	require.NoError(t, err)
	assert.Equal(t, "incident response", m.Name)
	assert.Equal(t, "private", m.AccessTier)
	assert.Equal(t, versionID, m.CurrentVersionID)
	assert.True(t, baseTime.Equal(m.CreatedAt))

	_, err = s.GetMethodology(ctx, "missing")
	assert.True(t, store.IsNotFound(err), "want NOT_FOUND, got %v", err)

	all, err := s.ListMethodologies(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, methodologyID, all[0].ID)
}

func testMethodologyNameLookup(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	methodologyID, versionID := seed(t, s)

	err := s.WithTransaction(ctx, versionID, func(tx store.Tx) error {
		m, err := tx.GetMethodologyByName("incident response")
		if err != nil {
			return err
		}
		assert.Equal(t, methodologyID, m.ID)

		_, err = tx.GetMethodologyByName("unknown")
		assert.True(t, store.IsNotFound(err), "want NOT_FOUND, got %v", err)

		// A methodology written earlier in the same transaction is visible
		// to the lookup.
		if err := tx.PutMethodology(model.Methodology{
			ID:         "m-2",
			Name:       "postmortem review",
			AccessTier: "private",
			CreatedAt:  baseTime,
		}); err != nil {
			return err
		}
		m, err = tx.GetMethodologyByName("postmortem review")
		if err != nil {
			return err
		}
		assert.Equal(t, "m-2", m.ID)
		return nil
	})
	require.NoError(t, err)
}

func testVersionLineageOrder(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	methodologyID, versionID := seed(t, s)

	// Insert out of numeric order; ListVersions must sort by number.
	err := s.WithTransaction(ctx, versionID, func(tx store.Tx) error {
		if err := tx.PutVersion(model.Version{
			ID: "v-3", MethodologyID: methodologyID,
			Number:    model.VersionNumber{Major: 1, Minor: 0},
			CreatedAt: baseTime,
		}); err != nil {
			return err
		}
		return tx.PutVersion(model.Version{
			ID: "v-2", MethodologyID: methodologyID,
			Number:          model.VersionNumber{Major: 0, Minor: 2},
			ParentVersionID: versionID,
			CreatedAt:       baseTime,
		})
	})
	require.NoError(t, err)

	lineage, err := s.ListVersions(ctx, methodologyID)
	require.NoError(t, err)
	require.Len(t, lineage, 3)
	assert.Equal(t, "0.1", lineage[0].Number.String())
	assert.Equal(t, "0.2", lineage[1].Number.String())
	assert.Equal(t, "1.0", lineage[2].Number.String())
	assert.Equal(t, versionID, lineage[1].ParentVersionID)

	_, err = s.GetVersion(ctx, "missing")
	assert.True(t, store.IsNotFound(err))
}

func testNodeRoundTripAndOrder(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	_, versionID := seed(t, s)

	putNode(t, s, versionID, "n-c", model.EntityActivity, model.Attrs{"name": "triage"})
	putNode(t, s, versionID, "n-a", model.EntityActivity, model.Attrs{"name": "detect"})
	putNode(t, s, versionID, "n-b", model.EntityRole, model.Attrs{"name": "responder"})

	n, err := s.GetNode(ctx, versionID, "n-a")
	require.NoError(t, err)
	assert.Equal(t, model.EntityActivity, n.EntityType)
	requireAttrsEqual(t, model.Attrs{"name": "detect"}, n.Attrs)

	nodes, err := s.ListNodes(ctx, versionID)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, []string{"n-a", "n-b", "n-c"},
		[]string{nodes[0].ID, nodes[1].ID, nodes[2].ID})

	activities, err := s.QueryByType(ctx, versionID, model.EntityActivity)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, "n-a", activities[0].ID)
	assert.Equal(t, "n-c", activities[1].ID)

	_, err = s.GetNode(ctx, versionID, "missing")
	assert.True(t, store.IsNotFound(err))

	// Upsert replaces the payload in place.
	putNode(t, s, versionID, "n-a", model.EntityActivity, model.Attrs{"name": "detect", "effort_points": 3})
	n, err = s.GetNode(ctx, versionID, "n-a")
	require.NoError(t, err)
	requireAttrsEqual(t, model.Attrs{"name": "detect", "effort_points": 3}, n.Attrs)
}

func testVersionScoping(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	methodologyID, versionID := seed(t, s)

	err := s.WithTransaction(ctx, versionID, func(tx store.Tx) error {
		return tx.PutVersion(model.Version{
			ID: "v-other", MethodologyID: methodologyID,
			Number:    model.VersionNumber{Major: 0, Minor: 2},
			CreatedAt: baseTime,
		})
	})
	require.NoError(t, err)

	putNode(t, s, versionID, "n-1", model.EntityActivity, model.Attrs{"name": "a"})

	_, err = s.GetNode(ctx, "v-other", "n-1")
	assert.True(t, store.IsNotFound(err), "node must not leak across versions")

	nodes, err := s.ListNodes(ctx, "v-other")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func testEdgeDirectionsAndFilters(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	_, versionID := seed(t, s)

	putNode(t, s, versionID, "act-1", model.EntityActivity, model.Attrs{"name": "a"})
	putNode(t, s, versionID, "act-2", model.EntityActivity, model.Attrs{"name": "b"})
	putNode(t, s, versionID, "role-1", model.EntityRole, model.Attrs{"name": "r"})

	putEdge(t, s, versionID, "e-2", "act-1", "act-2", model.RelHasPredecessor)
	putEdge(t, s, versionID, "e-1", "act-1", "role-1", model.RelPerformedByRole)
	putEdge(t, s, versionID, "e-3", "act-2", "role-1", model.RelPerformedByRole)

	outgoing, err := s.GetEdges(ctx, versionID, "act-1", store.Outgoing)
	require.NoError(t, err)
	require.Len(t, outgoing, 2)
	assert.Equal(t, "e-1", outgoing[0].ID)
	assert.Equal(t, "e-2", outgoing[1].ID)

	deps, err := s.GetEdges(ctx, versionID, "act-1", store.Outgoing, model.RelHasPredecessor)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "act-2", deps[0].ToNodeID)

	incoming, err := s.GetEdges(ctx, versionID, "role-1", store.Incoming, model.RelPerformedByRole)
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	assert.Equal(t, "e-1", incoming[0].ID)
	assert.Equal(t, "e-3", incoming[1].ID)

	all, err := s.ListEdges(ctx, versionID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"e-1", "e-2", "e-3"},
		[]string{all[0].ID, all[1].ID, all[2].ID})
}

func testDeleteNodeCascadesEdges(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	_, versionID := seed(t, s)

	putNode(t, s, versionID, "act-1", model.EntityActivity, model.Attrs{"name": "a"})
	putNode(t, s, versionID, "act-2", model.EntityActivity, model.Attrs{"name": "b"})
	putNode(t, s, versionID, "role-1", model.EntityRole, model.Attrs{"name": "r"})
	putEdge(t, s, versionID, "e-1", "act-1", "act-2", model.RelHasPredecessor)
	putEdge(t, s, versionID, "e-2", "act-2", "role-1", model.RelPerformedByRole)
	putEdge(t, s, versionID, "e-3", "act-1", "role-1", model.RelPerformedByRole)

	err := s.WithTransaction(ctx, versionID, func(tx store.Tx) error {
		return tx.DeleteNode(versionID, "act-2")
	})
	require.NoError(t, err)

	_, err = s.GetNode(ctx, versionID, "act-2")
	assert.True(t, store.IsNotFound(err))

	// Both edges touching act-2 are gone; the unrelated edge survives.
	edges, err := s.ListEdges(ctx, versionID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "e-3", edges[0].ID)
}

func testDeleteEdge(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	_, versionID := seed(t, s)

	putNode(t, s, versionID, "act-1", model.EntityActivity, model.Attrs{"name": "a"})
	putNode(t, s, versionID, "role-1", model.EntityRole, model.Attrs{"name": "r"})
	putEdge(t, s, versionID, "e-1", "act-1", "role-1", model.RelPerformedByRole)

	err := s.WithTransaction(ctx, versionID, func(tx store.Tx) error {
		return tx.DeleteEdge(versionID, "e-1")
	})
	require.NoError(t, err)

	edges, err := s.ListEdges(ctx, versionID)
	require.NoError(t, err)
	assert.Empty(t, edges)

	// Endpoints survive an edge delete.
	_, err = s.GetNode(ctx, versionID, "act-1")
	assert.NoError(t, err)
}

func testCopyVersion(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	methodologyID, versionID := seed(t, s)

	putNode(t, s, versionID, "act-1", model.EntityActivity, model.Attrs{"name": "a"})
	putNode(t, s, versionID, "act-2", model.EntityActivity, model.Attrs{"name": "b"})
	putEdge(t, s, versionID, "e-1", "act-1", "act-2", model.RelHasPredecessor)

	err := s.WithTransaction(ctx, versionID, func(tx store.Tx) error {
		if err := tx.PutVersion(model.Version{
			ID: "v-2", MethodologyID: methodologyID,
			Number:          model.VersionNumber{Major: 0, Minor: 2},
			ParentVersionID: versionID,
			CreatedAt:       baseTime,
		}); err != nil {
			return err
		}
		return tx.CopyVersion(versionID, "v-2")
	})
	require.NoError(t, err)

	// Logical ids are preserved under the new version.
	n, err := s.GetNode(ctx, "v-2", "act-1")
	require.NoError(t, err)
	requireAttrsEqual(t, model.Attrs{"name": "a"}, n.Attrs)
	assert.Equal(t, "v-2", n.VersionID)

	edges, err := s.GetEdges(ctx, "v-2", "act-1", store.Outgoing)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "e-1", edges[0].ID)

	// Mutating the copy leaves the original untouched.
	err = s.WithTransaction(ctx, "v-2", func(tx store.Tx) error {
		return tx.DeleteNode("v-2", "act-2")
	})
	require.NoError(t, err)

	original, err := s.ListNodes(ctx, versionID)
	require.NoError(t, err)
	assert.Len(t, original, 2)
	copied, err := s.ListNodes(ctx, "v-2")
	require.NoError(t, err)
	assert.Len(t, copied, 1)
}

func testSetCurrentVersionCAS(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	methodologyID, versionID := seed(t, s)

	err := s.WithTransaction(ctx, versionID, func(tx store.Tx) error {
		if err := tx.PutVersion(model.Version{
			ID: "v-2", MethodologyID: methodologyID,
			Number:    model.VersionNumber{Major: 0, Minor: 2},
			CreatedAt: baseTime,
		}); err != nil {
			return err
		}
		return tx.SetCurrentVersion(methodologyID, versionID, "v-2")
	})
	require.NoError(t, err)

	m, err := s.GetMethodology(ctx, methodologyID)
	require.NoError(t, err)
	assert.Equal(t, "v-2", m.CurrentVersionID)

	// A stale expectation fails the transaction and changes nothing.
	err = s.WithTransaction(ctx, versionID, func(tx store.Tx) error {
		if err := tx.PutVersion(model.Version{
			ID: "v-3", MethodologyID: methodologyID,
			Number:    model.VersionNumber{Major: 0, Minor: 3},
			CreatedAt: baseTime,
		}); err != nil {
			return err
		}
		return tx.SetCurrentVersion(methodologyID, versionID, "v-3")
	})
	assert.True(t, store.IsConflict(err), "want CONFLICT_DETECTED, got %v", err)

	m, err = s.GetMethodology(ctx, methodologyID)
	require.NoError(t, err)
	assert.Equal(t, "v-2", m.CurrentVersionID)
	_, err = s.GetVersion(ctx, "v-3")
	assert.True(t, store.IsNotFound(err), "aborted transaction must leave no partial writes")
}

func testTransactionRollback(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	_, versionID := seed(t, s)

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, versionID, func(tx store.Tx) error {
		if err := tx.PutNode(model.Node{
			ID: "n-1", EntityType: model.EntityActivity,
			VersionID: versionID, Attrs: model.Attrs{"name": "a"}, CreatedAt: baseTime,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetNode(ctx, versionID, "n-1")
	assert.True(t, store.IsNotFound(err))
}

func testTxReadsOwnWrites(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	_, versionID := seed(t, s)

	err := s.WithTransaction(ctx, versionID, func(tx store.Tx) error {
		if err := tx.PutNode(model.Node{
			ID: "n-1", EntityType: model.EntityActivity,
			VersionID: versionID, Attrs: model.Attrs{"name": "a"}, CreatedAt: baseTime,
		}); err != nil {
			return err
		}
		n, err := tx.GetNode(versionID, "n-1")
		if err != nil {
			return err
		}
		assert.Equal(t, model.EntityActivity, n.EntityType)

		byType, err := tx.QueryByType(versionID, model.EntityActivity)
		if err != nil {
			return err
		}
		assert.Len(t, byType, 1)
		return nil
	})
	require.NoError(t, err)
}

func testProposalRoundTripAndList(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	methodologyID, versionID := seed(t, s)

	first := model.Proposal{
		ID:            "p-b",
		MethodologyID: methodologyID,
		VersionID:     versionID,
		TriggerKind:   model.TriggerManual,
		ChangeKind:    model.ChangeAdd,
		Change: model.ProposedChange{
			EntityType: model.EntityActivity,
			Attrs:      model.Attrs{"name": "contain"},
		},
		Rationale: "containment is missing",
		Status:    model.ProposalPending,
		CreatedAt: baseTime,
	}
	second := first
	second.ID = "p-a"
	second.CreatedAt = baseTime.Add(time.Hour)

	err := s.WithTransaction(ctx, versionID, func(tx store.Tx) error {
		if err := tx.PutProposal(first); err != nil {
			return err
		}
		return tx.PutProposal(second)
	})
	require.NoError(t, err)

	got, err := s.GetProposal(ctx, "p-b")
	require.NoError(t, err)
	assert.Equal(t, model.ProposalPending, got.Status)
	assert.Equal(t, model.ChangeAdd, got.ChangeKind)
	assert.Equal(t, model.EntityActivity, got.Change.EntityType)
	requireAttrsEqual(t, first.Change.Attrs, got.Change.Attrs)

	// Creation time orders the list; p-b predates p-a.
	proposals, err := s.ListProposals(ctx, methodologyID)
	require.NoError(t, err)
	require.Len(t, proposals, 2)
	assert.Equal(t, "p-b", proposals[0].ID)
	assert.Equal(t, "p-a", proposals[1].ID)

	_, err = s.GetProposal(ctx, "missing")
	assert.True(t, store.IsNotFound(err))
}

func testTouchMethodology(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	methodologyID, _ := seed(t, s)

	before, err := s.GetMethodology(ctx, methodologyID)
	require.NoError(t, err)
	assert.True(t, before.LastAccessedAt.IsZero())

	require.NoError(t, s.TouchMethodology(ctx, methodologyID))

	after, err := s.GetMethodology(ctx, methodologyID)
	require.NoError(t, err)
	assert.False(t, after.LastAccessedAt.IsZero())
}
