// Package model defines the record families of the methodology graph:
// nodes, edges, versions, methodologies, and change proposals.
//
// All identities are opaque strings (UUIDs in practice). A node or edge
// carries a logical identity that is stable across version carry-forward;
// the storage key is always the (versionID, entityID) pair.
package model

import (
	"fmt"
	"time"
)

// EntityType classifies a node in the methodology graph.
type EntityType string

const (
	EntityPlaybook EntityType = "playbook"
	EntityWorkflow EntityType = "workflow"
	EntityPhase    EntityType = "phase"
	EntityActivity EntityType = "activity"
	EntityArtifact EntityType = "artifact"
	EntityRole     EntityType = "role"
	EntityHowto    EntityType = "howto"
)

// validEntityTypes is the set of allowed node entity types.
var validEntityTypes = map[EntityType]bool{
	EntityPlaybook: true,
	EntityWorkflow: true,
	EntityPhase:    true,
	EntityActivity: true,
	EntityArtifact: true,
	EntityRole:     true,
	EntityHowto:    true,
}

// ValidateEntityType returns an error if t is not a recognized entity type.
func ValidateEntityType(t EntityType) error {
	if !validEntityTypes[t] {
		return fmt.Errorf("invalid entity type %q", t)
	}
	return nil
}

// EntityTypes returns all entity types in declaration order.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityPlaybook, EntityWorkflow, EntityPhase, EntityActivity,
		EntityArtifact, EntityRole, EntityHowto,
	}
}

// RelationshipType classifies an edge in the methodology graph.
type RelationshipType string

const (
	RelHasPredecessor   RelationshipType = "has_predecessor"
	RelHasSuccessor     RelationshipType = "has_successor"
	RelProducesArtifact RelationshipType = "produces_artifact"
	RelRequiresArtifact RelationshipType = "requires_artifact"
	RelPerformedByRole  RelationshipType = "performed_by_role"
	RelGuidedByHowto    RelationshipType = "guided_by_howto"
	RelBelongsToPhase   RelationshipType = "belongs_to_phase"
	RelPartOfWorkflow   RelationshipType = "part_of_workflow"
)

var validRelationshipTypes = map[RelationshipType]bool{
	RelHasPredecessor:   true,
	RelHasSuccessor:     true,
	RelProducesArtifact: true,
	RelRequiresArtifact: true,
	RelPerformedByRole:  true,
	RelGuidedByHowto:    true,
	RelBelongsToPhase:   true,
	RelPartOfWorkflow:   true,
}

// ValidateRelationshipType returns an error if t is not recognized.
func ValidateRelationshipType(t RelationshipType) error {
	if !validRelationshipTypes[t] {
		return fmt.Errorf("invalid relationship type %q", t)
	}
	return nil
}

// IsDependency reports whether t is a predecessor/successor dependency edge.
// Dependency edges among activities are the ones subject to cycle prevention.
func (t RelationshipType) IsDependency() bool {
	return t == RelHasPredecessor || t == RelHasSuccessor
}

// Attrs is an attribute payload attached to a node or edge.
// Payloads are validated against a closed per-type schema before any write;
// an Attrs value read back from a store has already passed validation.
type Attrs map[string]any

// Clone returns a shallow copy of the attribute map.
// Attribute values are scalars or []string after schema validation, so a
// shallow copy is sufficient to decouple the stored record from the caller.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Node is a typed entity owned by exactly one version.
type Node struct {
	// ID is the logical node identity, stable across version carry-forward.
	ID string

	// EntityType determines the attribute schema for this node.
	EntityType EntityType

	// VersionID is the owning version. A node row exists per owning version.
	VersionID string

	// Attrs is the validated attribute payload.
	Attrs Attrs

	// CreatedAt records when the logical node was first created.
	CreatedAt time.Time
}

// Edge is a typed relationship between two nodes, owned by exactly one version.
type Edge struct {
	// ID is the logical edge identity, stable across version carry-forward.
	ID string

	FromNodeID       string
	ToNodeID         string
	RelationshipType RelationshipType

	// VersionID is the owning version.
	VersionID string

	// Attrs is the validated attribute payload (often empty).
	Attrs Attrs
}

// Methodology is the top-level named container of a versioned graph.
type Methodology struct {
	ID       string
	Name     string
	Category string

	// AccessTier is the visibility of the methodology ("private" or "public").
	// Enforcement belongs to the surrounding application; the engine only
	// stores and validates the value.
	AccessTier string

	// CurrentVersionID always resolves to an existing version.
	// It is swapped only inside the transaction that creates the new version.
	CurrentVersionID string

	CreatedAt time.Time

	// LastAccessedAt is maintained best-effort; failures to update it are
	// logged and never surfaced to callers.
	LastAccessedAt time.Time
}

// AccessTiers lists the allowed methodology access tiers.
var AccessTiers = []string{"private", "public"}

// ValidateAccessTier returns an error if tier is not an allowed value.
func ValidateAccessTier(tier string) error {
	for _, t := range AccessTiers {
		if tier == t {
			return nil
		}
	}
	return fmt.Errorf("invalid access tier %q: must be one of %v", tier, AccessTiers)
}

// Version is one link in a methodology's linear version chain.
type Version struct {
	ID            string
	MethodologyID string
	Number        VersionNumber

	// ParentVersionID is empty for the initial 0.1 version.
	ParentVersionID string

	// CreatedFromProposalID is set only for versions materialized by an
	// approved proposal.
	CreatedFromProposalID string

	Description string
	CreatedAt   time.Time
}

// Released reports whether this version is immutable released content.
func (v Version) Released() bool {
	return v.Number.Released()
}
