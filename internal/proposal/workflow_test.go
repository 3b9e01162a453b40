package proposal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crafthaus/methodgraph/internal/gate"
	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/schema"
	"github.com/crafthaus/methodgraph/internal/store"
	"github.com/crafthaus/methodgraph/internal/store/sqlite"
	"github.com/crafthaus/methodgraph/internal/testutil"
	"github.com/crafthaus/methodgraph/internal/version"
)

// recordingTransmitter captures transmissions and optionally fails.
type recordingTransmitter struct {
	calls []string
	err   error
}

func (r *recordingTransmitter) Transmit(ctx context.Context, p model.Proposal, created model.Version) error {
	r.calls = append(r.calls, p.ID)
	return r.err
}

type fixture struct {
	store         store.Store
	workflow      *Workflow
	transmitter   *recordingTransmitter
	methodologyID string
	releasedID    string
	nodeID        string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	validator, err := schema.New()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewClock()
	ids := testutil.NewIDSequence("id")

	versions := version.NewManager(s, validator, logger)
	versions.Now = clock.Now
	versions.NewID = ids.Next

	g := gate.New(s, versions, validator, logger)
	g.Now = clock.Now
	g.NewID = ids.Next

	transmitter := &recordingTransmitter{}
	w := New(s, versions, validator, transmitter, logger)
	w.Now = clock.Now
	w.NewID = ids.Next

	ctx := context.Background()
	m, _, err := g.CreateMethodology(ctx, "incident response", "", "private", "")
	require.NoError(t, err)
	node, _, err := g.CreateNode(ctx, m.ID, model.EntityActivity, model.Attrs{"name": "triage"})
	require.NoError(t, err)
	released, err := versions.Release(ctx, m.ID)
	require.NoError(t, err)

	return &fixture{
		store:         s,
		workflow:      w,
		transmitter:   transmitter,
		methodologyID: m.ID,
		releasedID:    released.ID,
		nodeID:        node.ID,
	}
}

func (f *fixture) addParams() CreateParams {
	return CreateParams{
		MethodologyID: f.methodologyID,
		VersionID:     f.releasedID,
		TriggerKind:   model.TriggerManual,
		ChangeKind:    model.ChangeAdd,
		Change: model.ProposedChange{
			EntityType: model.EntityActivity,
			Attrs:      model.Attrs{"name": "contain"},
		},
		Rationale: "containment is missing",
	}
}

func TestCreateProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.workflow.Create(ctx, f.addParams())
	require.NoError(t, err)
	assert.Equal(t, model.ProposalPending, p.Status)
	assert.False(t, p.Status.Terminal())

	got, err := f.store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, f.releasedID, got.VersionID)
	assert.Equal(t, model.ChangeAdd, got.ChangeKind)
}

func TestCreateProposalValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	params := f.addParams()
	params.Rationale = ""
	_, err := f.workflow.Create(ctx, params)
	assert.True(t, store.IsValidationFailed(err))

	params = f.addParams()
	params.TriggerKind = "webhook"
	_, err = f.workflow.Create(ctx, params)
	assert.True(t, store.IsValidationFailed(err))

	params = f.addParams()
	params.ChangeKind = "rename"
	_, err = f.workflow.Create(ctx, params)
	assert.True(t, store.IsValidationFailed(err))

	// Invalid change payloads are refused at creation, not at review.
	params = f.addParams()
	params.Change.Attrs = model.Attrs{"name": "x", "unknown_field": 1}
	_, err = f.workflow.Create(ctx, params)
	assert.True(t, store.IsValidationFailed(err))

	params = f.addParams()
	params.ChangeKind = model.ChangeModify
	params.TargetNodeID = ""
	_, err = f.workflow.Create(ctx, params)
	assert.True(t, store.IsValidationFailed(err))

	params = f.addParams()
	params.ChangeKind = model.ChangeDelete
	params.TargetNodeID = "missing"
	_, err = f.workflow.Create(ctx, params)
	assert.True(t, store.IsNotFound(err))
}

func TestCreateProposalRefusesDraftTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The 0.x drafts that preceded the release are not proposal targets.
	lineage, err := f.store.ListVersions(ctx, f.methodologyID)
	require.NoError(t, err)
	var draftID string
	for _, v := range lineage {
		if !v.Released() {
			draftID = v.ID
			break
		}
	}
	require.NotEmpty(t, draftID)

	params := f.addParams()
	params.VersionID = draftID
	_, err = f.workflow.Create(ctx, params)
	require.Error(t, err)
	assert.True(t, store.IsValidationFailed(err))
}

func TestCreateProposalWrongMethodology(t *testing.T) {
	f := newFixture(t)

	params := f.addParams()
	params.MethodologyID = "someone-else"
	_, err := f.workflow.Create(context.Background(), params)
	assert.True(t, store.IsValidationFailed(err))
}

func TestApproveCreatesVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.workflow.Create(ctx, f.addParams())
	require.NoError(t, err)

	decided, created, err := f.workflow.Decide(ctx, p.ID, Approve, "dana", "looks right")
	require.NoError(t, err)
	assert.Equal(t, model.ProposalApproved, decided.Status)
	assert.Equal(t, "dana", decided.Reviewer)
	assert.Equal(t, "looks right", decided.ReviewNotes)
	assert.False(t, decided.ReviewedAt.IsZero())

	assert.Equal(t, "1.1", created.Number.String())
	assert.Equal(t, f.releasedID, created.ParentVersionID)
	assert.Equal(t, p.ID, created.CreatedFromProposalID)

	// The new version carries the base content plus the added activity.
	nodes, err := f.store.ListNodes(ctx, created.ID)
	require.NoError(t, err)
	baseNodes, err := f.store.ListNodes(ctx, f.releasedID)
	require.NoError(t, err)
	assert.Len(t, nodes, len(baseNodes)+1)

	m, err := f.store.GetMethodology(ctx, f.methodologyID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, m.CurrentVersionID)

	// Transmission succeeded and was recorded.
	assert.Equal(t, []string{p.ID}, f.transmitter.calls)
	got, err := f.store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Transmitted)
	assert.False(t, got.TransmittedAt.IsZero())
}

func TestApproveSupersededProposalConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.workflow.Create(ctx, f.addParams())
	require.NoError(t, err)
	params := f.addParams()
	params.Change.Attrs = model.Attrs{"name": "postmortem"}
	params.Rationale = "close the learning loop"
	second, err := f.workflow.Create(ctx, params)
	require.NoError(t, err)

	_, created, err := f.workflow.Decide(ctx, first.ID, Approve, "dana", "")
	require.NoError(t, err)
	assert.Equal(t, "1.1", created.Number.String())

	// The second proposal's base was superseded by the first approval.
	_, _, err = f.workflow.Decide(ctx, second.ID, Approve, "dana", "")
	require.Error(t, err)
	assert.True(t, store.IsConflict(err))

	// The failed decision rolled back; the proposal stays pending.
	got, err := f.store.GetProposal(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalPending, got.Status)
	assert.Empty(t, got.Reviewer)

	// No duplicate number or forked parent entered the lineage.
	lineage, err := f.store.ListVersions(ctx, f.methodologyID)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, v := range lineage {
		assert.False(t, seen[v.Number.String()], "duplicate version %s", v.Number)
		seen[v.Number.String()] = true
	}
	assert.Equal(t, created.ID, lineage[len(lineage)-1].ID)
}

func TestRejectCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.workflow.Create(ctx, f.addParams())
	require.NoError(t, err)

	lineageBefore, err := f.store.ListVersions(ctx, f.methodologyID)
	require.NoError(t, err)

	decided, created, err := f.workflow.Decide(ctx, p.ID, Reject, "dana", "duplicate of existing step")
	require.NoError(t, err)
	assert.Equal(t, model.ProposalRejected, decided.Status)
	assert.Empty(t, created.ID)

	lineageAfter, err := f.store.ListVersions(ctx, f.methodologyID)
	require.NoError(t, err)
	assert.Equal(t, len(lineageBefore), len(lineageAfter))

	// Rejections are never transmitted.
	assert.Empty(t, f.transmitter.calls)
}

func TestDecideIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.workflow.Create(ctx, f.addParams())
	require.NoError(t, err)
	_, _, err = f.workflow.Decide(ctx, p.ID, Reject, "dana", "")
	require.NoError(t, err)

	_, _, err = f.workflow.Decide(ctx, p.ID, Approve, "eli", "changed my mind")
	require.Error(t, err)
	assert.True(t, store.IsValidationFailed(err))

	got, err := f.store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalRejected, got.Status)
	assert.Equal(t, "dana", got.Reviewer)
}

func TestDecideValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.workflow.Create(ctx, f.addParams())
	require.NoError(t, err)

	_, _, err = f.workflow.Decide(ctx, p.ID, "defer", "dana", "")
	assert.True(t, store.IsValidationFailed(err))

	_, _, err = f.workflow.Decide(ctx, p.ID, Approve, "", "")
	assert.True(t, store.IsValidationFailed(err))

	_, _, err = f.workflow.Decide(ctx, "missing", Approve, "dana", "")
	assert.True(t, store.IsNotFound(err))
}

func TestTransmitterFailureDoesNotBlockApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.transmitter.err = errors.New("aggregation service unavailable")

	p, err := f.workflow.Create(ctx, f.addParams())
	require.NoError(t, err)

	decided, created, err := f.workflow.Decide(ctx, p.ID, Approve, "dana", "")
	require.NoError(t, err)
	assert.Equal(t, model.ProposalApproved, decided.Status)
	assert.NotEmpty(t, created.ID)

	// The approval committed; only the transmission flag stayed unset.
	got, err := f.store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalApproved, got.Status)
	assert.False(t, got.Transmitted)
	assert.True(t, got.TransmittedAt.IsZero())
}

func TestNilTransmitter(t *testing.T) {
	f := newFixture(t)
	f.workflow.transmitter = nil
	ctx := context.Background()

	p, err := f.workflow.Create(ctx, f.addParams())
	require.NoError(t, err)
	_, _, err = f.workflow.Decide(ctx, p.ID, Approve, "dana", "")
	require.NoError(t, err)

	got, err := f.store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Transmitted)
}
