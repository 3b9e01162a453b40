// Package gate is the change-control gate: the single entry point for every
// graph mutation. It authorizes against the target version's lifecycle
// status before anything touches storage.
//
// Draft versions (major 0) are edited directly: the gate bumps the draft to
// the next minor, carries the entity set forward, and applies the mutation,
// all in one transaction. Released versions (major >= 1) refuse direct
// mutation with PERMISSION_DENIED; callers open a proposal instead.
//
// No other code path may write graph entities for already-created
// methodologies.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crafthaus/methodgraph/internal/depgraph"
	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/schema"
	"github.com/crafthaus/methodgraph/internal/store"
	"github.com/crafthaus/methodgraph/internal/version"
)

// Gate authorizes and applies mutations.
type Gate struct {
	store    store.Store
	versions *version.Manager
	schema   *schema.Validator
	log      *slog.Logger

	// Now and NewID are injectable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// New constructs a Gate.
func New(s store.Store, versions *version.Manager, validator *schema.Validator, logger *slog.Logger) *Gate {
	return &Gate{
		store:    s,
		versions: versions,
		schema:   validator,
		log:      logger,
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

// CreateMethodology creates a methodology with its 0.1 draft version and a
// root playbook node carrying the descriptive attributes.
func (g *Gate) CreateMethodology(ctx context.Context, name, category, accessTier, description string) (model.Methodology, model.Version, error) {
	if name == "" {
		return model.Methodology{}, model.Version{}, store.ValidationFailed("methodology name is required")
	}
	if err := model.ValidateAccessTier(accessTier); err != nil {
		return model.Methodology{}, model.Version{}, store.ValidationFailed(err.Error())
	}

	playbookAttrs := model.Attrs{"name": name, "visibility": accessTier}
	if category != "" {
		playbookAttrs["category"] = category
	}
	if description != "" {
		playbookAttrs["description"] = description
	}
	if err := g.schema.ValidateNode(model.EntityPlaybook, playbookAttrs); err != nil {
		return model.Methodology{}, model.Version{}, err
	}

	methodology := model.Methodology{
		ID:         g.NewID(),
		Name:       name,
		Category:   category,
		AccessTier: accessTier,
		CreatedAt:  g.Now().UTC(),
	}
	var initial model.Version
	err := g.store.WithTransaction(ctx, "", func(tx store.Tx) error {
		// Names are unique. The guard reads through the creating transaction,
		// so two concurrent creates of the same name cannot both pass.
		if _, err := tx.GetMethodologyByName(name); err == nil {
			return store.ValidationFailedf("a methodology named %q already exists", name)
		} else if !store.IsNotFound(err) {
			return err
		}
		if err := tx.PutMethodology(methodology); err != nil {
			return err
		}
		v, err := g.versions.CreateInitial(tx, methodology.ID, description)
		if err != nil {
			return err
		}
		initial = v
		methodology.CurrentVersionID = v.ID
		return tx.PutNode(model.Node{
			ID:         g.NewID(),
			EntityType: model.EntityPlaybook,
			VersionID:  v.ID,
			Attrs:      playbookAttrs,
			CreatedAt:  g.Now().UTC(),
		})
	})
	if err != nil {
		return model.Methodology{}, model.Version{}, err
	}
	g.log.Info("created methodology",
		"methodology_id", methodology.ID, "name", name, "version", initial.Number.String())
	return methodology, initial, nil
}

// CreateNode adds a node to the methodology's current draft.
func (g *Gate) CreateNode(ctx context.Context, methodologyID string, entityType model.EntityType, attrs model.Attrs) (model.Node, model.Version, error) {
	if err := model.ValidateEntityType(entityType); err != nil {
		return model.Node{}, model.Version{}, store.ValidationFailed(err.Error())
	}
	if err := g.schema.ValidateNode(entityType, attrs); err != nil {
		return model.Node{}, model.Version{}, err
	}

	node := model.Node{
		ID:         g.NewID(),
		EntityType: entityType,
		Attrs:      attrs.Clone(),
		CreatedAt:  g.Now().UTC(),
	}
	next, err := g.mutate(ctx, methodologyID, "create "+string(entityType)+" node", func(tx store.Tx, versionID string) error {
		node.VersionID = versionID
		return tx.PutNode(node)
	})
	if err != nil {
		return model.Node{}, model.Version{}, err
	}
	return node, next, nil
}

// UpdateNode replaces a node's attribute payload in the current draft.
func (g *Gate) UpdateNode(ctx context.Context, methodologyID, nodeID string, attrs model.Attrs) (model.Node, model.Version, error) {
	var updated model.Node
	next, err := g.mutate(ctx, methodologyID, "update node", func(tx store.Tx, versionID string) error {
		node, err := tx.GetNode(versionID, nodeID)
		if err != nil {
			return err
		}
		if err := g.schema.ValidateNode(node.EntityType, attrs); err != nil {
			return err
		}
		node.Attrs = attrs.Clone()
		updated = node
		return tx.PutNode(node)
	})
	if err != nil {
		return model.Node{}, model.Version{}, err
	}
	return updated, next, nil
}

// DeleteNode removes a node from the current draft. Deleting a workflow
// also deletes its member activities; every removed node cascades to the
// edges touching it, all in one transaction.
func (g *Gate) DeleteNode(ctx context.Context, methodologyID, nodeID string) (model.Version, error) {
	return g.mutate(ctx, methodologyID, "delete node", func(tx store.Tx, versionID string) error {
		node, err := tx.GetNode(versionID, nodeID)
		if err != nil {
			return err
		}
		if node.EntityType == model.EntityWorkflow {
			members, err := tx.GetEdges(versionID, nodeID, store.Incoming, model.RelPartOfWorkflow)
			if err != nil {
				return err
			}
			for _, e := range members {
				if err := tx.DeleteNode(versionID, e.FromNodeID); err != nil {
					return err
				}
			}
		}
		return tx.DeleteNode(versionID, nodeID)
	})
}

// SetEdge creates a relationship edge in the current draft. Dependency
// edges are cycle-checked before the write; setting an edge that already
// exists with identical endpoints and type is a no-op upsert of its
// attributes.
func (g *Gate) SetEdge(ctx context.Context, methodologyID, fromNodeID, toNodeID string, relType model.RelationshipType, attrs model.Attrs) (model.Edge, model.Version, error) {
	if err := model.ValidateRelationshipType(relType); err != nil {
		return model.Edge{}, model.Version{}, store.ValidationFailed(err.Error())
	}
	if err := g.schema.ValidateEdge(relType, attrs); err != nil {
		return model.Edge{}, model.Version{}, err
	}

	var edge model.Edge
	next, err := g.mutate(ctx, methodologyID, "set "+string(relType)+" edge", func(tx store.Tx, versionID string) error {
		from, err := tx.GetNode(versionID, fromNodeID)
		if err != nil {
			return err
		}
		to, err := tx.GetNode(versionID, toNodeID)
		if err != nil {
			return err
		}

		if relType.IsDependency() {
			if from.EntityType != model.EntityActivity || to.EntityType != model.EntityActivity {
				return store.ValidationFailedf(
					"%s edges connect activities, got %s -> %s", relType, from.EntityType, to.EntityType)
			}
			dependent, dependency := fromNodeID, toNodeID
			if relType == model.RelHasSuccessor {
				dependent, dependency = toNodeID, fromNodeID
			}
			if err := depgraph.ValidateNewDependency(tx, versionID, dependent, dependency); err != nil {
				return err
			}
		}

		// Reuse the logical edge id when the same relationship already
		// exists so re-setting is an attribute upsert, not a duplicate.
		existing, err := tx.GetEdges(versionID, fromNodeID, store.Outgoing, relType)
		if err != nil {
			return err
		}
		edgeID := g.NewID()
		for _, e := range existing {
			if e.ToNodeID == toNodeID {
				edgeID = e.ID
				break
			}
		}

		edge = model.Edge{
			ID:               edgeID,
			FromNodeID:       fromNodeID,
			ToNodeID:         toNodeID,
			RelationshipType: relType,
			VersionID:        versionID,
			Attrs:            attrs.Clone(),
		}
		return tx.PutEdge(edge)
	})
	if err != nil {
		return model.Edge{}, model.Version{}, err
	}
	return edge, next, nil
}

// ClearEdge removes the edge with the given endpoints and type from the
// current draft.
func (g *Gate) ClearEdge(ctx context.Context, methodologyID, fromNodeID, toNodeID string, relType model.RelationshipType) (model.Version, error) {
	return g.mutate(ctx, methodologyID, "clear "+string(relType)+" edge", func(tx store.Tx, versionID string) error {
		edges, err := tx.GetEdges(versionID, fromNodeID, store.Outgoing, relType)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.ToNodeID == toNodeID {
				return tx.DeleteEdge(versionID, e.ID)
			}
		}
		return store.NotFound("edge", fromNodeID+" -"+string(relType)+"-> "+toNodeID)
	})
}

// SetPredecessor records that activity depends on predecessor.
func (g *Gate) SetPredecessor(ctx context.Context, methodologyID, activityID, predecessorID string) (model.Edge, model.Version, error) {
	return g.SetEdge(ctx, methodologyID, activityID, predecessorID, model.RelHasPredecessor, nil)
}

// SetSuccessor records that successor depends on activity.
func (g *Gate) SetSuccessor(ctx context.Context, methodologyID, activityID, successorID string) (model.Edge, model.Version, error) {
	return g.SetEdge(ctx, methodologyID, activityID, successorID, model.RelHasSuccessor, nil)
}

// mutate is the shared authorize-bump-apply skeleton for draft mutations.
// The status check, the version bump, the carry-forward, and fn all run in
// one transaction: any failure leaves the store untouched, any success
// produces exactly one new draft version.
func (g *Gate) mutate(ctx context.Context, methodologyID, description string, fn func(tx store.Tx, versionID string) error) (model.Version, error) {
	// The hint scopes conflict reporting; the authoritative read happens
	// inside the transaction.
	hint := ""
	if m, err := g.store.GetMethodology(ctx, methodologyID); err == nil {
		hint = m.CurrentVersionID
	}

	var next model.Version
	err := g.store.WithTransaction(ctx, hint, func(tx store.Tx) error {
		methodology, err := tx.GetMethodology(methodologyID)
		if err != nil {
			return err
		}
		current, err := tx.GetVersion(methodology.CurrentVersionID)
		if err != nil {
			return err
		}
		if current.Released() {
			return store.PermissionDenied(
				"version "+current.Number.String()+" is released; open a proposal instead", current.ID)
		}

		next, err = g.versions.BumpDraft(tx, current, description)
		if err != nil {
			return err
		}
		return fn(tx, next.ID)
	})
	if err != nil {
		return model.Version{}, err
	}

	g.touch(ctx, methodologyID)
	g.log.Debug("draft mutation applied",
		"methodology_id", methodologyID, "version", next.Number.String(), "op", description)
	return next, nil
}

// touch records methodology access best-effort; failure is logged and never
// propagated.
func (g *Gate) touch(ctx context.Context, methodologyID string) {
	if err := g.store.TouchMethodology(ctx, methodologyID); err != nil {
		g.log.Warn("access tracking failed",
			"methodology_id", methodologyID, "error", err)
	}
}
