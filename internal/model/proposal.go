package model

import (
	"fmt"
	"time"
)

// ProposalStatus is the lifecycle state of a change proposal.
// Pending is initial; Approved and Rejected are terminal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalApproved || s == ProposalRejected
}

// TriggerKind records what originated a proposal.
type TriggerKind string

const (
	TriggerAutomated TriggerKind = "automated-suggestion"
	TriggerManual    TriggerKind = "manual"
)

// ValidateTriggerKind returns an error if k is not recognized.
func ValidateTriggerKind(k TriggerKind) error {
	if k != TriggerAutomated && k != TriggerManual {
		return fmt.Errorf("invalid trigger kind %q", k)
	}
	return nil
}

// ChangeKind is the category of change a proposal requests.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeModify ChangeKind = "modify"
	ChangeDelete ChangeKind = "delete"
)

// ValidateChangeKind returns an error if k is not recognized.
func ValidateChangeKind(k ChangeKind) error {
	if k != ChangeAdd && k != ChangeModify && k != ChangeDelete {
		return fmt.Errorf("invalid change kind %q", k)
	}
	return nil
}

// ProposedChange is the payload an approved proposal applies to produce the
// next version. Exactly one logical change per proposal.
type ProposedChange struct {
	// EntityType is required for add; ignored for modify/delete, which act on
	// the proposal's TargetNodeID.
	EntityType EntityType `json:"entity_type,omitempty"`

	// Attrs is the new attribute payload for add/modify.
	Attrs Attrs `json:"attrs,omitempty"`
}

// Proposal is a request to change released content (a PIP). Approval is the
// only event that may mutate released content, indirectly, by spawning a new
// version.
type Proposal struct {
	ID            string
	MethodologyID string

	// VersionID is the released version the proposal targets. Proposals may
	// only be opened against released versions; draft content is edited
	// directly.
	VersionID string

	TriggerKind TriggerKind

	// TriggerContext is opaque metadata describing what triggered the
	// proposal. It is stored verbatim and never validated.
	TriggerContext string

	ChangeKind ChangeKind

	// TargetNodeID identifies the node a modify/delete acts on. Empty for add.
	TargetNodeID string

	Change    ProposedChange
	Rationale string

	Status ProposalStatus

	// Review fields, populated on decision.
	Reviewer    string
	ReviewNotes string
	ReviewedAt  time.Time

	// Transmission fields record the best-effort downstream hand-off after
	// approval. TransmittedAt is zero when transmission never succeeded.
	Transmitted   bool
	TransmittedAt time.Time

	CreatedAt time.Time
}
