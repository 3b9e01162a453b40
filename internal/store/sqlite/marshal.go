package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/crafthaus/methodgraph/internal/model"
)

// scanner covers *sql.Row and *sql.Rows so scan helpers serve both paths.
type scanner interface {
	Scan(dest ...any) error
}

// timeText is the stored timestamp format. Zero times store as the empty
// string so "never" is distinguishable without NULL handling.
const timeText = time.RFC3339Nano

func timeToText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeText)
}

func textToTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeText, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// attrsToText serializes an attribute payload as canonical JSON so stored
// bytes are identical for canonically equal payloads.
func attrsToText(a model.Attrs) (string, error) {
	data, err := model.MarshalCanonical(a)
	if err != nil {
		return "", fmt.Errorf("marshal attrs: %w", err)
	}
	return string(data), nil
}

func textToAttrs(s string) (model.Attrs, error) {
	if s == "" || s == "{}" {
		return model.Attrs{}, nil
	}
	return model.UnmarshalAttrs([]byte(s))
}

func changeToText(c model.ProposedChange) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal proposed change: %w", err)
	}
	return string(data), nil
}

func textToChange(s string) (model.ProposedChange, error) {
	var c model.ProposedChange
	if s == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return c, fmt.Errorf("unmarshal proposed change: %w", err)
	}
	return c, nil
}

func scanNode(sc scanner) (model.Node, error) {
	var n model.Node
	var entityType, attrs, createdAt string
	if err := sc.Scan(&n.VersionID, &n.ID, &entityType, &attrs, &createdAt); err != nil {
		return model.Node{}, err
	}
	n.EntityType = model.EntityType(entityType)
	var err error
	if n.Attrs, err = textToAttrs(attrs); err != nil {
		return model.Node{}, err
	}
	if n.CreatedAt, err = textToTime(createdAt); err != nil {
		return model.Node{}, err
	}
	return n, nil
}

func scanNodeRows(sc scanner) (model.Node, error) { return scanNode(sc) }

func scanEdgeRows(sc scanner) (model.Edge, error) {
	var e model.Edge
	var relType, attrs string
	if err := sc.Scan(&e.VersionID, &e.ID, &e.FromNodeID, &e.ToNodeID, &relType, &attrs); err != nil {
		return model.Edge{}, err
	}
	e.RelationshipType = model.RelationshipType(relType)
	var err error
	if e.Attrs, err = textToAttrs(attrs); err != nil {
		return model.Edge{}, err
	}
	return e, nil
}

func scanVersion(sc scanner) (model.Version, error) {
	var v model.Version
	var createdAt string
	if err := sc.Scan(&v.ID, &v.MethodologyID, &v.Number.Major, &v.Number.Minor,
		&v.ParentVersionID, &v.CreatedFromProposalID, &v.Description, &createdAt); err != nil {
		return model.Version{}, err
	}
	var err error
	if v.CreatedAt, err = textToTime(createdAt); err != nil {
		return model.Version{}, err
	}
	return v, nil
}

func scanVersionRows(sc scanner) (model.Version, error) { return scanVersion(sc) }

func scanMethodology(sc scanner) (model.Methodology, error) {
	var m model.Methodology
	var createdAt, lastAccessedAt string
	if err := sc.Scan(&m.ID, &m.Name, &m.Category, &m.AccessTier,
		&m.CurrentVersionID, &createdAt, &lastAccessedAt); err != nil {
		return model.Methodology{}, err
	}
	var err error
	if m.CreatedAt, err = textToTime(createdAt); err != nil {
		return model.Methodology{}, err
	}
	if m.LastAccessedAt, err = textToTime(lastAccessedAt); err != nil {
		return model.Methodology{}, err
	}
	return m, nil
}

func scanMethodologyRows(sc scanner) (model.Methodology, error) { return scanMethodology(sc) }

func scanProposal(sc scanner) (model.Proposal, error) {
	var p model.Proposal
	var triggerKind, changeKind, change, status string
	var reviewedAt, transmittedAt, createdAt string
	var transmitted int
	if err := sc.Scan(&p.ID, &p.MethodologyID, &p.VersionID, &triggerKind, &p.TriggerContext,
		&changeKind, &p.TargetNodeID, &change, &p.Rationale, &status, &p.Reviewer,
		&p.ReviewNotes, &reviewedAt, &transmitted, &transmittedAt, &createdAt); err != nil {
		return model.Proposal{}, err
	}
	p.TriggerKind = model.TriggerKind(triggerKind)
	p.ChangeKind = model.ChangeKind(changeKind)
	p.Status = model.ProposalStatus(status)
	p.Transmitted = transmitted != 0
	var err error
	if p.Change, err = textToChange(change); err != nil {
		return model.Proposal{}, err
	}
	if p.ReviewedAt, err = textToTime(reviewedAt); err != nil {
		return model.Proposal{}, err
	}
	if p.TransmittedAt, err = textToTime(transmittedAt); err != nil {
		return model.Proposal{}, err
	}
	if p.CreatedAt, err = textToTime(createdAt); err != nil {
		return model.Proposal{}, err
	}
	return p, nil
}

func scanProposalRows(sc scanner) (model.Proposal, error) { return scanProposal(sc) }
