// Package schema validates node and edge attribute payloads against closed
// per-type CUE definitions before they reach storage.
//
// The schemas live in schema.cue, embedded at build time and compiled once
// per Validator. Validation failures surface as VALIDATION_FAILED errors so
// malformed payloads never abort a transaction halfway through.
package schema

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// nodeDefs maps entity types to their CUE definition names.
var nodeDefs = map[model.EntityType]string{
	model.EntityPlaybook: "#Playbook",
	model.EntityWorkflow: "#Workflow",
	model.EntityPhase:    "#Phase",
	model.EntityActivity: "#Activity",
	model.EntityArtifact: "#Artifact",
	model.EntityRole:     "#Role",
	model.EntityHowto:    "#Howto",
}

// edgeDefs maps relationship types to their CUE definition names.
var edgeDefs = map[model.RelationshipType]string{
	model.RelHasPredecessor:   "#DependencyEdge",
	model.RelHasSuccessor:     "#DependencyEdge",
	model.RelProducesArtifact: "#PlainEdge",
	model.RelRequiresArtifact: "#PlainEdge",
	model.RelPerformedByRole:  "#PlainEdge",
	model.RelGuidedByHowto:    "#PlainEdge",
	model.RelBelongsToPhase:   "#OrderedEdge",
	model.RelPartOfWorkflow:   "#OrderedEdge",
}

// Validator checks attribute payloads against the embedded schemas.
// A Validator is safe for concurrent use after construction.
type Validator struct {
	ctx   *cue.Context
	nodes map[model.EntityType]cue.Value
	edges map[model.RelationshipType]cue.Value
}

// New compiles the embedded schema file and resolves one definition per
// entity and relationship type.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile attribute schemas: %w", err)
	}

	v := &Validator{
		ctx:   ctx,
		nodes: make(map[model.EntityType]cue.Value, len(nodeDefs)),
		edges: make(map[model.RelationshipType]cue.Value, len(edgeDefs)),
	}
	for entityType, def := range nodeDefs {
		val := root.LookupPath(cue.ParsePath(def))
		if err := val.Err(); err != nil {
			return nil, fmt.Errorf("lookup %s: %w", def, err)
		}
		v.nodes[entityType] = val
	}
	for relType, def := range edgeDefs {
		val := root.LookupPath(cue.ParsePath(def))
		if err := val.Err(); err != nil {
			return nil, fmt.Errorf("lookup %s: %w", def, err)
		}
		v.edges[relType] = val
	}
	return v, nil
}

// ValidateNode checks a node attribute payload against the schema for its
// entity type. Returns a VALIDATION_FAILED error on any mismatch, including
// unknown fields.
func (v *Validator) ValidateNode(entityType model.EntityType, attrs model.Attrs) error {
	def, ok := v.nodes[entityType]
	if !ok {
		return store.ValidationFailedf("no attribute schema for entity type %q", entityType)
	}
	return v.validate(string(entityType), def, attrs)
}

// ValidateEdge checks an edge attribute payload against the schema for its
// relationship type.
func (v *Validator) ValidateEdge(relType model.RelationshipType, attrs model.Attrs) error {
	def, ok := v.edges[relType]
	if !ok {
		return store.ValidationFailedf("no attribute schema for relationship type %q", relType)
	}
	return v.validate(string(relType), def, attrs)
}

// validate unifies the payload with the closed definition and reports the
// first constraint violation.
func (v *Validator) validate(label string, def cue.Value, attrs model.Attrs) error {
	data, err := model.MarshalCanonical(attrs)
	if err != nil {
		return store.ValidationFailedf("%s attributes: %v", label, err)
	}

	// JSON is a subset of CUE, so the canonical payload compiles directly.
	val := v.ctx.CompileBytes(data, cue.Filename(label+".json"))
	if err := val.Err(); err != nil {
		return store.ValidationFailedf("%s attributes: %s", label, cueerrors.Details(err, nil))
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return store.ValidationFailedf("%s attributes: %s", label, cueerrors.Details(err, nil))
	}
	return nil
}
