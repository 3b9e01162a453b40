// Package version manages a methodology's linear version chain: the initial
// draft, draft bumps, release promotion, and proposal-derived versions.
//
// Carry-forward is materialized: every new version copies the parent's
// nodes and edges under the new version id inside the creating transaction,
// preserving logical entity ids. Released versions are never touched again;
// their rows stay readable forever.
package version

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/schema"
	"github.com/crafthaus/methodgraph/internal/store"
)

// Manager creates and links version records. Transaction-scoped methods
// (CreateInitial, BumpDraft, CreateFromProposal) compose with the caller's
// open transaction so the version record, the carry-forward copy, the
// mutation, and the current-version pointer swap commit together.
type Manager struct {
	store  store.Store
	schema *schema.Validator
	log    *slog.Logger

	// Now and NewID are injectable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// NewManager constructs a Manager over the given store.
func NewManager(s store.Store, validator *schema.Validator, logger *slog.Logger) *Manager {
	return &Manager{
		store:  s,
		schema: validator,
		log:    logger,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

// CreateInitial creates the 0.1 draft version for a freshly created
// methodology and points the methodology at it. Runs inside the caller's
// transaction.
func (m *Manager) CreateInitial(tx store.Tx, methodologyID, description string) (model.Version, error) {
	v := model.Version{
		ID:            m.NewID(),
		MethodologyID: methodologyID,
		Number:        model.InitialDraft(),
		Description:   description,
		CreatedAt:     m.Now().UTC(),
	}
	if err := tx.PutVersion(v); err != nil {
		return model.Version{}, err
	}
	if err := tx.SetCurrentVersion(methodologyID, "", v.ID); err != nil {
		return model.Version{}, err
	}
	return v, nil
}

// BumpDraft creates the next draft version after current, carries every
// entity forward under the new version id, and swaps the methodology's
// current-version pointer with compare-and-swap semantics. The caller
// applies its mutation to the returned version inside the same transaction.
//
// Released versions cannot be bumped.
func (m *Manager) BumpDraft(tx store.Tx, current model.Version, description string) (model.Version, error) {
	if current.Released() {
		return model.Version{}, store.PermissionDenied(
			"released versions are immutable; open a proposal instead", current.ID)
	}

	next := model.Version{
		ID:              m.NewID(),
		MethodologyID:   current.MethodologyID,
		Number:          current.Number.BumpMinor(),
		ParentVersionID: current.ID,
		Description:     description,
		CreatedAt:       m.Now().UTC(),
	}
	if err := tx.PutVersion(next); err != nil {
		return model.Version{}, err
	}
	if err := tx.CopyVersion(current.ID, next.ID); err != nil {
		return model.Version{}, err
	}
	if err := tx.SetCurrentVersion(current.MethodologyID, current.ID, next.ID); err != nil {
		return model.Version{}, err
	}
	return next, nil
}

// Release promotes a methodology's current draft to 1.0. Invoked explicitly
// by the surrounding application; once released, the lineage accepts no
// further draft bumps and all changes must flow through proposals.
func (m *Manager) Release(ctx context.Context, methodologyID string) (model.Version, error) {
	var released model.Version
	err := m.store.WithTransaction(ctx, methodologyID, func(tx store.Tx) error {
		methodology, err := tx.GetMethodology(methodologyID)
		if err != nil {
			return err
		}
		current, err := tx.GetVersion(methodology.CurrentVersionID)
		if err != nil {
			return err
		}
		if current.Released() {
			return store.ValidationFailedf(
				"version %s is already released", current.Number)
		}

		// Promotion renumbers the current draft in place: the entity set is
		// already exactly what 1.0 should contain.
		current.Number = model.FirstRelease()
		if err := tx.PutVersion(current); err != nil {
			return err
		}
		released = current
		return nil
	})
	if err != nil {
		return model.Version{}, err
	}
	m.log.Info("released methodology version",
		"methodology_id", methodologyID,
		"version_id", released.ID,
		"number", released.Number.String())
	return released, nil
}

// CreateFromProposal materializes a new version from an approved proposal:
// the next minor after the proposal's released target, parent-linked to it,
// with the proposal's change payload applied on top of the carried-forward
// entity set. The target must still be the methodology's current version;
// a proposal whose base has been superseded fails with CONFLICT_DETECTED
// and must be reopened against the current version. Runs inside the
// caller's transaction so approval, version creation, and the change
// commit together.
func (m *Manager) CreateFromProposal(tx store.Tx, proposal model.Proposal) (model.Version, error) {
	base, err := tx.GetVersion(proposal.VersionID)
	if err != nil {
		return model.Version{}, err
	}
	if !base.Released() {
		return model.Version{}, store.ValidationFailedf(
			"proposal %s targets draft version %s; proposals apply to released content only",
			proposal.ID, base.Number)
	}

	methodology, err := tx.GetMethodology(base.MethodologyID)
	if err != nil {
		return model.Version{}, err
	}
	if methodology.CurrentVersionID != base.ID {
		// Applying a superseded proposal would fork the lineage with a
		// duplicate version number.
		return model.Version{}, store.Conflict(base.ID, fmt.Errorf(
			"proposal %s targets version %s, which is no longer current",
			proposal.ID, base.Number))
	}

	next := model.Version{
		ID:                    m.NewID(),
		MethodologyID:         base.MethodologyID,
		Number:                base.Number.BumpMinor(),
		ParentVersionID:       base.ID,
		CreatedFromProposalID: proposal.ID,
		Description:           proposal.Rationale,
		CreatedAt:             m.Now().UTC(),
	}
	if err := tx.PutVersion(next); err != nil {
		return model.Version{}, err
	}
	if err := tx.CopyVersion(base.ID, next.ID); err != nil {
		return model.Version{}, err
	}
	if err := m.applyChange(tx, next.ID, proposal); err != nil {
		return model.Version{}, err
	}
	if err := tx.SetCurrentVersion(base.MethodologyID, base.ID, next.ID); err != nil {
		return model.Version{}, err
	}
	return next, nil
}

// applyChange applies a proposal's payload to the new version.
func (m *Manager) applyChange(tx store.Tx, versionID string, proposal model.Proposal) error {
	switch proposal.ChangeKind {
	case model.ChangeAdd:
		if err := model.ValidateEntityType(proposal.Change.EntityType); err != nil {
			return store.ValidationFailed(err.Error())
		}
		if err := m.schema.ValidateNode(proposal.Change.EntityType, proposal.Change.Attrs); err != nil {
			return err
		}
		return tx.PutNode(model.Node{
			ID:         m.NewID(),
			EntityType: proposal.Change.EntityType,
			VersionID:  versionID,
			Attrs:      proposal.Change.Attrs.Clone(),
			CreatedAt:  m.Now().UTC(),
		})

	case model.ChangeModify:
		node, err := tx.GetNode(versionID, proposal.TargetNodeID)
		if err != nil {
			return err
		}
		if err := m.schema.ValidateNode(node.EntityType, proposal.Change.Attrs); err != nil {
			return err
		}
		node.Attrs = proposal.Change.Attrs.Clone()
		return tx.PutNode(node)

	case model.ChangeDelete:
		return tx.DeleteNode(versionID, proposal.TargetNodeID)

	default:
		return store.ValidationFailedf("unknown change kind %q", proposal.ChangeKind)
	}
}
