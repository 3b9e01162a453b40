package badger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/crafthaus/methodgraph/internal/model"
)

// Wire records. Attribute payloads are stored pre-canonicalized so equal
// payloads encode to identical bytes in both backends.

type nodeRecord struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entity_type"`
	VersionID  string          `json:"version_id"`
	Attrs      json.RawMessage `json:"attrs"`
	CreatedAt  time.Time       `json:"created_at"`
}

type edgeRecord struct {
	ID               string          `json:"id"`
	FromNodeID       string          `json:"from_node_id"`
	ToNodeID         string          `json:"to_node_id"`
	RelationshipType string          `json:"relationship_type"`
	VersionID        string          `json:"version_id"`
	Attrs            json.RawMessage `json:"attrs"`
}

type versionRecord struct {
	ID                    string    `json:"id"`
	MethodologyID         string    `json:"methodology_id"`
	Major                 int       `json:"major"`
	Minor                 int       `json:"minor"`
	ParentVersionID       string    `json:"parent_version_id,omitempty"`
	CreatedFromProposalID string    `json:"created_from_proposal_id,omitempty"`
	Description           string    `json:"description,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

type methodologyRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Category         string    `json:"category,omitempty"`
	AccessTier       string    `json:"access_tier"`
	CurrentVersionID string    `json:"current_version_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	LastAccessedAt   time.Time `json:"last_accessed_at,omitempty"`
}

type proposalRecord struct {
	ID             string               `json:"id"`
	MethodologyID  string               `json:"methodology_id"`
	VersionID      string               `json:"version_id"`
	TriggerKind    string               `json:"trigger_kind"`
	TriggerContext string               `json:"trigger_context,omitempty"`
	ChangeKind     string               `json:"change_kind"`
	TargetNodeID   string               `json:"target_node_id,omitempty"`
	Change         model.ProposedChange `json:"change"`
	Rationale      string               `json:"rationale,omitempty"`
	Status         string               `json:"status"`
	Reviewer       string               `json:"reviewer,omitempty"`
	ReviewNotes    string               `json:"review_notes,omitempty"`
	ReviewedAt     time.Time            `json:"reviewed_at,omitempty"`
	Transmitted    bool                 `json:"transmitted,omitempty"`
	TransmittedAt  time.Time            `json:"transmitted_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

func encodeNode(n model.Node) ([]byte, error) {
	attrs, err := model.MarshalCanonical(n.Attrs)
	if err != nil {
		return nil, fmt.Errorf("encode node attrs: %w", err)
	}
	return json.Marshal(nodeRecord{
		ID:         n.ID,
		EntityType: string(n.EntityType),
		VersionID:  n.VersionID,
		Attrs:      attrs,
		CreatedAt:  n.CreatedAt.UTC(),
	})
}

func decodeNode(data []byte) (model.Node, error) {
	var rec nodeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Node{}, fmt.Errorf("decode node: %w", err)
	}
	attrs, err := model.UnmarshalAttrs(rec.Attrs)
	if err != nil {
		return model.Node{}, fmt.Errorf("decode node attrs: %w", err)
	}
	return model.Node{
		ID:         rec.ID,
		EntityType: model.EntityType(rec.EntityType),
		VersionID:  rec.VersionID,
		Attrs:      attrs,
		CreatedAt:  rec.CreatedAt,
	}, nil
}

func encodeEdge(e model.Edge) ([]byte, error) {
	attrs, err := model.MarshalCanonical(e.Attrs)
	if err != nil {
		return nil, fmt.Errorf("encode edge attrs: %w", err)
	}
	return json.Marshal(edgeRecord{
		ID:               e.ID,
		FromNodeID:       e.FromNodeID,
		ToNodeID:         e.ToNodeID,
		RelationshipType: string(e.RelationshipType),
		VersionID:        e.VersionID,
		Attrs:            attrs,
	})
}

func decodeEdge(data []byte) (model.Edge, error) {
	var rec edgeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Edge{}, fmt.Errorf("decode edge: %w", err)
	}
	attrs, err := model.UnmarshalAttrs(rec.Attrs)
	if err != nil {
		return model.Edge{}, fmt.Errorf("decode edge attrs: %w", err)
	}
	return model.Edge{
		ID:               rec.ID,
		FromNodeID:       rec.FromNodeID,
		ToNodeID:         rec.ToNodeID,
		RelationshipType: model.RelationshipType(rec.RelationshipType),
		VersionID:        rec.VersionID,
		Attrs:            attrs,
	}, nil
}

func encodeVersion(v model.Version) ([]byte, error) {
	return json.Marshal(versionRecord{
		ID:                    v.ID,
		MethodologyID:         v.MethodologyID,
		Major:                 v.Number.Major,
		Minor:                 v.Number.Minor,
		ParentVersionID:       v.ParentVersionID,
		CreatedFromProposalID: v.CreatedFromProposalID,
		Description:           v.Description,
		CreatedAt:             v.CreatedAt.UTC(),
	})
}

func decodeVersion(data []byte) (model.Version, error) {
	var rec versionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Version{}, fmt.Errorf("decode version: %w", err)
	}
	return model.Version{
		ID:                    rec.ID,
		MethodologyID:         rec.MethodologyID,
		Number:                model.VersionNumber{Major: rec.Major, Minor: rec.Minor},
		ParentVersionID:       rec.ParentVersionID,
		CreatedFromProposalID: rec.CreatedFromProposalID,
		Description:           rec.Description,
		CreatedAt:             rec.CreatedAt,
	}, nil
}

func encodeMethodology(m model.Methodology) ([]byte, error) {
	return json.Marshal(methodologyRecord{
		ID:               m.ID,
		Name:             m.Name,
		Category:         m.Category,
		AccessTier:       m.AccessTier,
		CurrentVersionID: m.CurrentVersionID,
		CreatedAt:        m.CreatedAt.UTC(),
		LastAccessedAt:   m.LastAccessedAt,
	})
}

func decodeMethodology(data []byte) (model.Methodology, error) {
	var rec methodologyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Methodology{}, fmt.Errorf("decode methodology: %w", err)
	}
	return model.Methodology{
		ID:               rec.ID,
		Name:             rec.Name,
		Category:         rec.Category,
		AccessTier:       rec.AccessTier,
		CurrentVersionID: rec.CurrentVersionID,
		CreatedAt:        rec.CreatedAt,
		LastAccessedAt:   rec.LastAccessedAt,
	}, nil
}

func encodeProposal(p model.Proposal) ([]byte, error) {
	return json.Marshal(proposalRecord{
		ID:             p.ID,
		MethodologyID:  p.MethodologyID,
		VersionID:      p.VersionID,
		TriggerKind:    string(p.TriggerKind),
		TriggerContext: p.TriggerContext,
		ChangeKind:     string(p.ChangeKind),
		TargetNodeID:   p.TargetNodeID,
		Change:         p.Change,
		Rationale:      p.Rationale,
		Status:         string(p.Status),
		Reviewer:       p.Reviewer,
		ReviewNotes:    p.ReviewNotes,
		ReviewedAt:     p.ReviewedAt,
		Transmitted:    p.Transmitted,
		TransmittedAt:  p.TransmittedAt,
		CreatedAt:      p.CreatedAt.UTC(),
	})
}

func decodeProposal(data []byte) (model.Proposal, error) {
	var rec proposalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Proposal{}, fmt.Errorf("decode proposal: %w", err)
	}
	return model.Proposal{
		ID:             rec.ID,
		MethodologyID:  rec.MethodologyID,
		VersionID:      rec.VersionID,
		TriggerKind:    model.TriggerKind(rec.TriggerKind),
		TriggerContext: rec.TriggerContext,
		ChangeKind:     model.ChangeKind(rec.ChangeKind),
		TargetNodeID:   rec.TargetNodeID,
		Change:         rec.Change,
		Rationale:      rec.Rationale,
		Status:         model.ProposalStatus(rec.Status),
		Reviewer:       rec.Reviewer,
		ReviewNotes:    rec.ReviewNotes,
		ReviewedAt:     rec.ReviewedAt,
		Transmitted:    rec.Transmitted,
		TransmittedAt:  rec.TransmittedAt,
		CreatedAt:      rec.CreatedAt,
	}, nil
}
