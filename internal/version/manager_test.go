package version

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/schema"
	"github.com/crafthaus/methodgraph/internal/store"
	"github.com/crafthaus/methodgraph/internal/store/sqlite"
	"github.com/crafthaus/methodgraph/internal/testutil"
)

func newTestManager(t *testing.T) (*Manager, store.Store) {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	validator, err := schema.New()
	require.NoError(t, err)

	m := NewManager(s, validator, slog.New(slog.NewTextHandler(io.Discard, nil)))
	clock := testutil.NewClock()
	ids := testutil.NewIDSequence("id")
	m.Now = clock.Now
	m.NewID = ids.Next
	return m, s
}

// seedMethodology creates a methodology with its initial draft and one node.
func seedMethodology(t *testing.T, m *Manager, s store.Store) (methodologyID string, initial model.Version, nodeID string) {
	t.Helper()
	methodologyID = "m-1"
	nodeID = "n-1"
	err := s.WithTransaction(context.Background(), "", func(tx store.Tx) error {
		if err := tx.PutMethodology(model.Methodology{
			ID: methodologyID, Name: "release engineering",
			AccessTier: "private", CreatedAt: m.Now(),
		}); err != nil {
			return err
		}
		v, err := m.CreateInitial(tx, methodologyID, "initial")
		if err != nil {
			return err
		}
		initial = v
		return tx.PutNode(model.Node{
			ID: nodeID, EntityType: model.EntityActivity, VersionID: v.ID,
			Attrs: model.Attrs{"name": "cut branch"}, CreatedAt: m.Now(),
		})
	})
	require.NoError(t, err)
	return methodologyID, initial, nodeID
}

func TestCreateInitial(t *testing.T) {
	m, s := newTestManager(t)
	methodologyID, initial, _ := seedMethodology(t, m, s)

	assert.Equal(t, "0.1", initial.Number.String())
	assert.False(t, initial.Released())
	assert.Empty(t, initial.ParentVersionID)

	got, err := s.GetMethodology(context.Background(), methodologyID)
	require.NoError(t, err)
	assert.Equal(t, initial.ID, got.CurrentVersionID)
}

func TestBumpDraftCarriesForward(t *testing.T) {
	m, s := newTestManager(t)
	methodologyID, initial, nodeID := seedMethodology(t, m, s)
	ctx := context.Background()

	var next model.Version
	err := s.WithTransaction(ctx, initial.ID, func(tx store.Tx) error {
		v, err := m.BumpDraft(tx, initial, "add tagging step")
		next = v
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "0.2", next.Number.String())
	assert.Equal(t, initial.ID, next.ParentVersionID)
	assert.Equal(t, "add tagging step", next.Description)
	assert.False(t, next.Released())

	// The entity set came forward under the new version, same logical id.
	n, err := s.GetNode(ctx, next.ID, nodeID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, n.VersionID)

	// The parent version still holds its own copy.
	_, err = s.GetNode(ctx, initial.ID, nodeID)
	assert.NoError(t, err)

	got, err := s.GetMethodology(ctx, methodologyID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, got.CurrentVersionID)
}

func TestBumpDraftRefusesReleased(t *testing.T) {
	m, s := newTestManager(t)
	_, initial, _ := seedMethodology(t, m, s)

	released := initial
	released.Number = model.FirstRelease()

	err := s.WithTransaction(context.Background(), initial.ID, func(tx store.Tx) error {
		_, err := m.BumpDraft(tx, released, "should fail")
		return err
	})
	require.Error(t, err)
	assert.True(t, store.IsPermissionDenied(err))
}

func TestReleasePromotesInPlace(t *testing.T) {
	m, s := newTestManager(t)
	methodologyID, initial, _ := seedMethodology(t, m, s)
	ctx := context.Background()

	released, err := m.Release(ctx, methodologyID)
	require.NoError(t, err)
	assert.Equal(t, "1.0", released.Number.String())
	assert.True(t, released.Released())
	// Promotion renumbers the current draft; no new version record appears.
	assert.Equal(t, initial.ID, released.ID)

	lineage, err := s.ListVersions(ctx, methodologyID)
	require.NoError(t, err)
	assert.Len(t, lineage, 1)

	// Releasing twice fails.
	_, err = m.Release(ctx, methodologyID)
	require.Error(t, err)
	assert.True(t, store.IsValidationFailed(err))
}

func TestReleaseUnknownMethodology(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Release(context.Background(), "missing")
	assert.True(t, store.IsNotFound(err))
}

func TestCreateFromProposalAdd(t *testing.T) {
	m, s := newTestManager(t)
	methodologyID, _, nodeID := seedMethodology(t, m, s)
	ctx := context.Background()

	released, err := m.Release(ctx, methodologyID)
	require.NoError(t, err)

	p := model.Proposal{
		ID:            "p-1",
		MethodologyID: methodologyID,
		VersionID:     released.ID,
		TriggerKind:   model.TriggerManual,
		ChangeKind:    model.ChangeAdd,
		Change: model.ProposedChange{
			EntityType: model.EntityActivity,
			Attrs:      model.Attrs{"name": "sign artifacts"},
		},
		Rationale: "unsigned artifacts shipped twice",
		Status:    model.ProposalApproved,
		CreatedAt: m.Now(),
	}

	var created model.Version
	err = s.WithTransaction(ctx, released.ID, func(tx store.Tx) error {
		v, err := m.CreateFromProposal(tx, p)
		created = v
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "1.1", created.Number.String())
	assert.Equal(t, released.ID, created.ParentVersionID)
	assert.Equal(t, "p-1", created.CreatedFromProposalID)
	assert.Equal(t, p.Rationale, created.Description)

	// The carried-forward node plus the added one.
	nodes, err := s.ListNodes(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	// The released version is untouched.
	base, err := s.ListNodes(ctx, released.ID)
	require.NoError(t, err)
	assert.Len(t, base, 1)
	assert.Equal(t, nodeID, base[0].ID)

	got, err := s.GetMethodology(ctx, methodologyID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.CurrentVersionID)
}

func TestCreateFromProposalModifyAndDelete(t *testing.T) {
	m, s := newTestManager(t)
	methodologyID, _, nodeID := seedMethodology(t, m, s)
	ctx := context.Background()

	released, err := m.Release(ctx, methodologyID)
	require.NoError(t, err)

	modify := model.Proposal{
		ID: "p-mod", MethodologyID: methodologyID, VersionID: released.ID,
		TriggerKind:  model.TriggerAutomated,
		ChangeKind:   model.ChangeModify,
		TargetNodeID: nodeID,
		Change:       model.ProposedChange{Attrs: model.Attrs{"name": "cut release branch", "effort_points": 2}},
		Rationale:    "clearer name",
		CreatedAt:    m.Now(),
	}
	var afterModify model.Version
	err = s.WithTransaction(ctx, released.ID, func(tx store.Tx) error {
		v, err := m.CreateFromProposal(tx, modify)
		afterModify = v
		return err
	})
	require.NoError(t, err)

	n, err := s.GetNode(ctx, afterModify.ID, nodeID)
	require.NoError(t, err)
	equal, err := model.AttrsEqual(modify.Change.Attrs, n.Attrs)
	require.NoError(t, err)
	assert.True(t, equal)

	del := model.Proposal{
		ID: "p-del", MethodologyID: methodologyID, VersionID: afterModify.ID,
		TriggerKind:  model.TriggerManual,
		ChangeKind:   model.ChangeDelete,
		TargetNodeID: nodeID,
		Rationale:    "step automated away",
		CreatedAt:    m.Now(),
	}
	var afterDelete model.Version
	err = s.WithTransaction(ctx, afterModify.ID, func(tx store.Tx) error {
		v, err := m.CreateFromProposal(tx, del)
		afterDelete = v
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "1.2", afterDelete.Number.String())
	_, err = s.GetNode(ctx, afterDelete.ID, nodeID)
	assert.True(t, store.IsNotFound(err))
}

func TestCreateFromProposalRefusesSupersededBase(t *testing.T) {
	m, s := newTestManager(t)
	methodologyID, _, _ := seedMethodology(t, m, s)
	ctx := context.Background()

	released, err := m.Release(ctx, methodologyID)
	require.NoError(t, err)

	first := model.Proposal{
		ID: "p-1", MethodologyID: methodologyID, VersionID: released.ID,
		TriggerKind: model.TriggerManual, ChangeKind: model.ChangeAdd,
		Change: model.ProposedChange{
			EntityType: model.EntityActivity,
			Attrs:      model.Attrs{"name": "sign artifacts"},
		},
		Rationale: "unsigned artifacts shipped twice",
	}
	err = s.WithTransaction(ctx, released.ID, func(tx store.Tx) error {
		_, err := m.CreateFromProposal(tx, first)
		return err
	})
	require.NoError(t, err)

	// A second proposal still pointing at 1.0 lost the race; applying it
	// would fork the lineage.
	second := first
	second.ID = "p-2"
	second.Rationale = "same base, different change"
	err = s.WithTransaction(ctx, released.ID, func(tx store.Tx) error {
		_, err := m.CreateFromProposal(tx, second)
		return err
	})
	require.Error(t, err)
	assert.True(t, store.IsConflict(err))

	// The chain stayed linear: exactly one 1.1, parented on 1.0.
	lineage, err := s.ListVersions(ctx, methodologyID)
	require.NoError(t, err)
	require.Len(t, lineage, 2)
	assert.Equal(t, "1.1", lineage[1].Number.String())
	assert.Equal(t, released.ID, lineage[1].ParentVersionID)
}

func TestCreateFromProposalRefusesDraftBase(t *testing.T) {
	m, s := newTestManager(t)
	methodologyID, initial, _ := seedMethodology(t, m, s)

	p := model.Proposal{
		ID: "p-1", MethodologyID: methodologyID, VersionID: initial.ID,
		TriggerKind: model.TriggerManual, ChangeKind: model.ChangeAdd,
		Change: model.ProposedChange{
			EntityType: model.EntityActivity,
			Attrs:      model.Attrs{"name": "x"},
		},
		Rationale: "r",
	}
	err := s.WithTransaction(context.Background(), initial.ID, func(tx store.Tx) error {
		_, err := m.CreateFromProposal(tx, p)
		return err
	})
	require.Error(t, err)
	assert.True(t, store.IsValidationFailed(err))
}
