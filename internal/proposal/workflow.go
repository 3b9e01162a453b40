// Package proposal implements the process-improvement-proposal (PIP)
// lifecycle: the only path by which released content changes.
//
// A proposal starts pending and is decided exactly once, to approved or
// rejected. Approval materializes a new version through the version manager
// inside the same transaction that records the decision; rejection records
// the review and touches nothing else. An optional downstream transmitter
// is invoked best-effort after approval and can never undo it.
package proposal

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/schema"
	"github.com/crafthaus/methodgraph/internal/store"
	"github.com/crafthaus/methodgraph/internal/version"
)

// Transmitter hands an approved proposal to an external aggregation
// service. Implementations live outside the engine; failures are logged and
// never block or roll back the approval.
type Transmitter interface {
	Transmit(ctx context.Context, p model.Proposal, created model.Version) error
}

// Workflow drives the proposal state machine.
type Workflow struct {
	store       store.Store
	versions    *version.Manager
	schema      *schema.Validator
	transmitter Transmitter // nil disables downstream transmission
	log         *slog.Logger

	// Now and NewID are injectable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// New constructs a Workflow. transmitter may be nil.
func New(s store.Store, versions *version.Manager, validator *schema.Validator, transmitter Transmitter, logger *slog.Logger) *Workflow {
	return &Workflow{
		store:       s,
		versions:    versions,
		schema:      validator,
		transmitter: transmitter,
		log:         logger,
		Now:         time.Now,
		NewID:       uuid.NewString,
	}
}

// CreateParams carries the inputs for opening a proposal.
type CreateParams struct {
	MethodologyID  string
	VersionID      string
	TriggerKind    model.TriggerKind
	TriggerContext string
	ChangeKind     model.ChangeKind
	TargetNodeID   string
	Change         model.ProposedChange
	Rationale      string
}

// Create opens a pending proposal against a released version. The change
// payload is validated up front so reviewers only ever see applicable
// proposals.
func (w *Workflow) Create(ctx context.Context, params CreateParams) (model.Proposal, error) {
	if err := model.ValidateTriggerKind(params.TriggerKind); err != nil {
		return model.Proposal{}, store.ValidationFailed(err.Error())
	}
	if err := model.ValidateChangeKind(params.ChangeKind); err != nil {
		return model.Proposal{}, store.ValidationFailed(err.Error())
	}
	if params.Rationale == "" {
		return model.Proposal{}, store.ValidationFailed("proposal rationale is required")
	}

	target, err := w.store.GetVersion(ctx, params.VersionID)
	if err != nil {
		return model.Proposal{}, err
	}
	if target.MethodologyID != params.MethodologyID {
		return model.Proposal{}, store.ValidationFailedf(
			"version %s does not belong to methodology %s", params.VersionID, params.MethodologyID)
	}
	if !target.Released() {
		return model.Proposal{}, store.ValidationFailedf(
			"version %s is a draft; edit it directly instead of proposing", target.Number)
	}

	switch params.ChangeKind {
	case model.ChangeAdd:
		if err := model.ValidateEntityType(params.Change.EntityType); err != nil {
			return model.Proposal{}, store.ValidationFailed(err.Error())
		}
		if err := w.schema.ValidateNode(params.Change.EntityType, params.Change.Attrs); err != nil {
			return model.Proposal{}, err
		}
	case model.ChangeModify:
		if params.TargetNodeID == "" {
			return model.Proposal{}, store.ValidationFailed("modify proposal requires a target node")
		}
		node, err := w.store.GetNode(ctx, params.VersionID, params.TargetNodeID)
		if err != nil {
			return model.Proposal{}, err
		}
		if err := w.schema.ValidateNode(node.EntityType, params.Change.Attrs); err != nil {
			return model.Proposal{}, err
		}
	case model.ChangeDelete:
		if params.TargetNodeID == "" {
			return model.Proposal{}, store.ValidationFailed("delete proposal requires a target node")
		}
		if _, err := w.store.GetNode(ctx, params.VersionID, params.TargetNodeID); err != nil {
			return model.Proposal{}, err
		}
	}

	p := model.Proposal{
		ID:             w.NewID(),
		MethodologyID:  params.MethodologyID,
		VersionID:      params.VersionID,
		TriggerKind:    params.TriggerKind,
		TriggerContext: params.TriggerContext,
		ChangeKind:     params.ChangeKind,
		TargetNodeID:   params.TargetNodeID,
		Change:         params.Change,
		Rationale:      params.Rationale,
		Status:         model.ProposalPending,
		CreatedAt:      w.Now().UTC(),
	}
	err = w.store.WithTransaction(ctx, params.VersionID, func(tx store.Tx) error {
		return tx.PutProposal(p)
	})
	if err != nil {
		return model.Proposal{}, err
	}
	w.log.Info("proposal opened",
		"proposal_id", p.ID, "methodology_id", p.MethodologyID,
		"target_version", target.Number.String(), "change_kind", string(p.ChangeKind))
	return p, nil
}

// Decision is a reviewer's verdict on a pending proposal.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// Decide transitions a pending proposal to its terminal state. Approval
// creates the successor version atomically with the status change; rejection
// records the review and creates nothing. A decided proposal cannot be
// re-decided.
//
// Returns the decided proposal and, for approvals, the created version.
func (w *Workflow) Decide(ctx context.Context, proposalID string, decision Decision, reviewer, notes string) (model.Proposal, model.Version, error) {
	if decision != Approve && decision != Reject {
		return model.Proposal{}, model.Version{}, store.ValidationFailedf("invalid decision %q", decision)
	}
	if reviewer == "" {
		return model.Proposal{}, model.Version{}, store.ValidationFailed("reviewer identity is required")
	}

	hint := ""
	if p, err := w.store.GetProposal(ctx, proposalID); err == nil {
		hint = p.VersionID
	}

	var decided model.Proposal
	var created model.Version
	err := w.store.WithTransaction(ctx, hint, func(tx store.Tx) error {
		p, err := tx.GetProposal(proposalID)
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			return store.ValidationFailedf(
				"proposal %s is already %s and cannot be re-decided", p.ID, p.Status)
		}

		p.Reviewer = reviewer
		p.ReviewNotes = notes
		p.ReviewedAt = w.Now().UTC()

		if decision == Approve {
			v, err := w.versions.CreateFromProposal(tx, p)
			if err != nil {
				return err
			}
			created = v
			p.Status = model.ProposalApproved
		} else {
			p.Status = model.ProposalRejected
		}

		decided = p
		return tx.PutProposal(p)
	})
	if err != nil {
		return model.Proposal{}, model.Version{}, err
	}

	if decided.Status == model.ProposalApproved {
		w.log.Info("proposal approved",
			"proposal_id", decided.ID, "new_version", created.Number.String(), "reviewer", reviewer)
		w.transmit(ctx, decided, created)
	} else {
		w.log.Info("proposal rejected", "proposal_id", decided.ID, "reviewer", reviewer)
	}
	return decided, created, nil
}

// transmit hands the approval downstream best-effort. The approval already
// committed; transmission failure is logged as an auxiliary failure and the
// flags simply stay unset for a later retry.
func (w *Workflow) transmit(ctx context.Context, p model.Proposal, created model.Version) {
	if w.transmitter == nil {
		return
	}
	if err := w.transmitter.Transmit(ctx, p, created); err != nil {
		w.log.Warn("downstream transmission failed",
			"proposal_id", p.ID, "error", store.Auxiliary("downstream transmission", err))
		return
	}

	p.Transmitted = true
	p.TransmittedAt = w.Now().UTC()
	err := w.store.WithTransaction(ctx, p.VersionID, func(tx store.Tx) error {
		return tx.PutProposal(p)
	})
	if err != nil {
		w.log.Warn("recording transmission flag failed",
			"proposal_id", p.ID, "error", store.Auxiliary("transmission flag update", err))
	}
}
