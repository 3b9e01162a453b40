// Package diff computes entity-level differences between two versions of a
// methodology graph.
//
// Entities are matched by logical id: carry-forward preserves ids, so the
// id sets of two versions set-compare directly. Attribute payloads compare
// canonically (sorted keys, NFC-normalized strings), so cosmetic encoding
// differences never show up as modifications.
package diff

import (
	"context"
	"fmt"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/store"
)

// Kind classifies a change record.
type Kind string

const (
	Added    Kind = "added"
	Removed  Kind = "removed"
	Modified Kind = "modified"
)

// Change is one entity-level difference between two versions.
type Change struct {
	// EntityID is the logical node or edge id.
	EntityID string `json:"entity_id"`

	// Entity is "node" or "edge".
	Entity string `json:"entity"`

	// EntityType is the node entity type or edge relationship type.
	EntityType string `json:"entity_type"`

	Kind Kind `json:"kind"`

	// Before is nil for added entities; After is nil for removed ones.
	Before model.Attrs `json:"before,omitempty"`
	After  model.Attrs `json:"after,omitempty"`
}

// Diff returns the ordered change list from versionA to versionB: node
// changes first, then edge changes, each sorted by entity id.
//
// Diff(V, V) is empty. Diff(A, B) and Diff(B, A) are mirror images: added
// and removed swap, and modified entries swap before/after.
func Diff(ctx context.Context, r store.Reader, versionAID, versionBID string) ([]Change, error) {
	if _, err := r.GetVersion(ctx, versionAID); err != nil {
		return nil, err
	}
	if _, err := r.GetVersion(ctx, versionBID); err != nil {
		return nil, err
	}

	nodesA, err := r.ListNodes(ctx, versionAID)
	if err != nil {
		return nil, err
	}
	nodesB, err := r.ListNodes(ctx, versionBID)
	if err != nil {
		return nil, err
	}
	changes, err := diffNodes(nodesA, nodesB)
	if err != nil {
		return nil, err
	}

	edgesA, err := r.ListEdges(ctx, versionAID)
	if err != nil {
		return nil, err
	}
	edgesB, err := r.ListEdges(ctx, versionBID)
	if err != nil {
		return nil, err
	}
	edgeChanges, err := diffEdges(edgesA, edgesB)
	if err != nil {
		return nil, err
	}

	return append(changes, edgeChanges...), nil
}

// diffNodes set-compares two node lists. Inputs arrive sorted by id from
// the store, so a two-pointer merge keeps the output ordered.
func diffNodes(a, b []model.Node) ([]Change, error) {
	changes := []Change{}
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i].ID < b[j].ID):
			changes = append(changes, Change{
				EntityID:   a[i].ID,
				Entity:     "node",
				EntityType: string(a[i].EntityType),
				Kind:       Removed,
				Before:     a[i].Attrs,
			})
			i++
		case i >= len(a) || b[j].ID < a[i].ID:
			changes = append(changes, Change{
				EntityID:   b[j].ID,
				Entity:     "node",
				EntityType: string(b[j].EntityType),
				Kind:       Added,
				After:      b[j].Attrs,
			})
			j++
		default:
			equal, err := nodeEqual(a[i], b[j])
			if err != nil {
				return nil, err
			}
			if !equal {
				changes = append(changes, Change{
					EntityID:   b[j].ID,
					Entity:     "node",
					EntityType: string(b[j].EntityType),
					Kind:       Modified,
					Before:     a[i].Attrs,
					After:      b[j].Attrs,
				})
			}
			i++
			j++
		}
	}
	return changes, nil
}

func diffEdges(a, b []model.Edge) ([]Change, error) {
	changes := []Change{}
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i].ID < b[j].ID):
			changes = append(changes, Change{
				EntityID:   a[i].ID,
				Entity:     "edge",
				EntityType: string(a[i].RelationshipType),
				Kind:       Removed,
				Before:     a[i].Attrs,
			})
			i++
		case i >= len(a) || b[j].ID < a[i].ID:
			changes = append(changes, Change{
				EntityID:   b[j].ID,
				Entity:     "edge",
				EntityType: string(b[j].RelationshipType),
				Kind:       Added,
				After:      b[j].Attrs,
			})
			j++
		default:
			equal, err := edgeEqual(a[i], b[j])
			if err != nil {
				return nil, err
			}
			if !equal {
				changes = append(changes, Change{
					EntityID:   b[j].ID,
					Entity:     "edge",
					EntityType: string(b[j].RelationshipType),
					Kind:       Modified,
					Before:     a[i].Attrs,
					After:      b[j].Attrs,
				})
			}
			i++
			j++
		}
	}
	return changes, nil
}

func nodeEqual(a, b model.Node) (bool, error) {
	if a.EntityType != b.EntityType {
		return false, nil
	}
	equal, err := model.AttrsEqual(a.Attrs, b.Attrs)
	if err != nil {
		return false, fmt.Errorf("compare node %s: %w", a.ID, err)
	}
	return equal, nil
}

func edgeEqual(a, b model.Edge) (bool, error) {
	if a.FromNodeID != b.FromNodeID || a.ToNodeID != b.ToNodeID ||
		a.RelationshipType != b.RelationshipType {
		return false, nil
	}
	equal, err := model.AttrsEqual(a.Attrs, b.Attrs)
	if err != nil {
		return false, fmt.Errorf("compare edge %s: %w", a.ID, err)
	}
	return equal, nil
}
