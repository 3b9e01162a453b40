package gate

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crafthaus/methodgraph/internal/depgraph"
	"github.com/crafthaus/methodgraph/internal/diff"
	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/proposal"
	"github.com/crafthaus/methodgraph/internal/schema"
	"github.com/crafthaus/methodgraph/internal/store"
	badgerstore "github.com/crafthaus/methodgraph/internal/store/badger"
	"github.com/crafthaus/methodgraph/internal/store/sqlite"
	"github.com/crafthaus/methodgraph/internal/testutil"
	"github.com/crafthaus/methodgraph/internal/version"
)

// TestFullLifecycle walks the whole engine through one methodology's life on
// each backend: draft editing, dependency ordering, release, refusal of
// direct edits, and proposal-driven evolution.
func TestFullLifecycle(t *testing.T) {
	backends := map[string]func(t *testing.T) store.Store{
		"sqlite": func(t *testing.T) store.Store {
			s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
			require.NoError(t, err)
			return s
		},
		"badger": func(t *testing.T) store.Store {
			s, err := badgerstore.Open(badgerstore.Config{InMemory: true})
			require.NoError(t, err)
			return s
		},
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			runLifecycle(t, open(t))
		})
	}
}

func runLifecycle(t *testing.T, s store.Store) {
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	validator, err := schema.New()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewClock()
	ids := testutil.NewIDSequence("id")

	versions := version.NewManager(s, validator, logger)
	versions.Now = clock.Now
	versions.NewID = ids.Next
	g := New(s, versions, validator, logger)
	g.Now = clock.Now
	g.NewID = ids.Next
	proposals := proposal.New(s, versions, validator, nil, logger)
	proposals.Now = clock.Now
	proposals.NewID = ids.Next

	// Draft phase: build a small workflow.
	m, initial, err := g.CreateMethodology(ctx, "incident response", "operations", "private", "")
	require.NoError(t, err)
	require.Equal(t, "0.1", initial.Number.String())

	wf, _, err := g.CreateNode(ctx, m.ID, model.EntityWorkflow, model.Attrs{"name": "containment"})
	require.NoError(t, err)
	detect, _, err := g.CreateNode(ctx, m.ID, model.EntityActivity, model.Attrs{"name": "detect"})
	require.NoError(t, err)
	isolate, _, err := g.CreateNode(ctx, m.ID, model.EntityActivity, model.Attrs{"name": "isolate"})
	require.NoError(t, err)
	report, _, err := g.CreateNode(ctx, m.ID, model.EntityActivity, model.Attrs{"name": "report"})
	require.NoError(t, err)

	for _, act := range []string{detect.ID, isolate.ID, report.ID} {
		_, _, err = g.SetEdge(ctx, m.ID, act, wf.ID, model.RelPartOfWorkflow, nil)
		require.NoError(t, err)
	}
	_, _, err = g.SetPredecessor(ctx, m.ID, isolate.ID, detect.ID)
	require.NoError(t, err)
	_, _, err = g.SetPredecessor(ctx, m.ID, report.ID, isolate.ID)
	require.NoError(t, err)

	// Closing the loop is refused on either backend.
	_, _, err = g.SetPredecessor(ctx, m.ID, detect.ID, report.ID)
	assert.True(t, store.IsValidationFailed(err))

	// Every mutation bumped the draft by one minor.
	current, err := s.GetMethodology(ctx, m.ID)
	require.NoError(t, err)
	v, err := s.GetVersion(ctx, current.CurrentVersionID)
	require.NoError(t, err)
	assert.Equal(t, "0.10", v.Number.String())

	order, err := depgraph.TopologicalOrder(depgraph.FromReader(ctx, s), v.ID, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{detect.ID, isolate.ID, report.ID}, order)

	// Release, then verify the gate closes.
	released, err := versions.Release(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0", released.Number.String())

	_, _, err = g.CreateNode(ctx, m.ID, model.EntityActivity, model.Attrs{"name": "postmortem"})
	assert.True(t, store.IsPermissionDenied(err))

	// Proposal-driven evolution.
	p, err := proposals.Create(ctx, proposal.CreateParams{
		MethodologyID: m.ID,
		VersionID:     released.ID,
		TriggerKind:   model.TriggerAutomated,
		ChangeKind:    model.ChangeAdd,
		Change: model.ProposedChange{
			EntityType: model.EntityActivity,
			Attrs:      model.Attrs{"name": "postmortem"},
		},
		Rationale: "no learning loop after incidents",
	})
	require.NoError(t, err)

	decided, created, err := proposals.Decide(ctx, p.ID, proposal.Approve, "dana", "")
	require.NoError(t, err)
	assert.Equal(t, model.ProposalApproved, decided.Status)
	assert.Equal(t, "1.1", created.Number.String())
	assert.Equal(t, released.ID, created.ParentVersionID)
	assert.Equal(t, p.ID, created.CreatedFromProposalID)

	// The released version is untouched; the diff is exactly one added node.
	changes, err := diff.Diff(ctx, s, released.ID, created.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, diff.Added, changes[0].Kind)
	assert.Equal(t, "node", changes[0].Entity)
	assert.Equal(t, "activity", changes[0].EntityType)

	// A rejected proposal leaves the lineage alone.
	p2, err := proposals.Create(ctx, proposal.CreateParams{
		MethodologyID: m.ID,
		VersionID:     created.ID,
		TriggerKind:   model.TriggerManual,
		ChangeKind:    model.ChangeDelete,
		TargetNodeID:  report.ID,
		Rationale:     "reporting feels redundant",
	})
	require.NoError(t, err)
	lineageBefore, err := s.ListVersions(ctx, m.ID)
	require.NoError(t, err)
	_, _, err = proposals.Decide(ctx, p2.ID, proposal.Reject, "dana", "reporting is a compliance requirement")
	require.NoError(t, err)
	lineageAfter, err := s.ListVersions(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, len(lineageBefore), len(lineageAfter))

	// The full lineage reads back in version order on both backends.
	numbers := make([]string, 0, len(lineageAfter))
	for _, lv := range lineageAfter {
		numbers = append(numbers, lv.Number.String())
	}
	assert.Equal(t, "0.1", numbers[0])
	assert.Equal(t, "1.1", numbers[len(numbers)-1])
}
