package depgraph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/store"
)

// memEdges is an in-memory EdgeSource for testing the traversal logic
// without a database.
type memEdges struct {
	edges []model.Edge
}

func (m *memEdges) add(from, to string, relType model.RelationshipType) {
	m.edges = append(m.edges, model.Edge{
		ID:               fmt.Sprintf("e-%03d", len(m.edges)+1),
		FromNodeID:       from,
		ToNodeID:         to,
		RelationshipType: relType,
		VersionID:        "v-1",
	})
}

func (m *memEdges) GetEdges(versionID, nodeID string, dir store.Direction, relTypes ...model.RelationshipType) ([]model.Edge, error) {
	var out []model.Edge
	for _, e := range m.edges {
		if e.VersionID != versionID {
			continue
		}
		if dir == store.Outgoing && e.FromNodeID != nodeID {
			continue
		}
		if dir == store.Incoming && e.ToNodeID != nodeID {
			continue
		}
		if len(relTypes) > 0 {
			match := false
			for _, rt := range relTypes {
				if e.RelationshipType == rt {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func TestValidateNewDependencySelf(t *testing.T) {
	src := &memEdges{}
	err := ValidateNewDependency(src, "v-1", "a", "a")
	assert.True(t, store.IsValidationFailed(err))
}

func TestValidateNewDependencyAllowsChain(t *testing.T) {
	src := &memEdges{}
	// a depends on b, b depends on c.
	src.add("a", "b", model.RelHasPredecessor)
	src.add("b", "c", model.RelHasPredecessor)

	// c depending on an unrelated node is fine.
	assert.NoError(t, ValidateNewDependency(src, "v-1", "c", "d"))
	// a gaining a second dependency is fine.
	assert.NoError(t, ValidateNewDependency(src, "v-1", "a", "c"))
}

func TestValidateNewDependencyRefusesCycle(t *testing.T) {
	src := &memEdges{}
	src.add("a", "b", model.RelHasPredecessor)
	src.add("b", "c", model.RelHasPredecessor)

	// c depending on a would close a -> b -> c -> a.
	err := ValidateNewDependency(src, "v-1", "c", "a")
	require.Error(t, err)
	assert.True(t, store.IsValidationFailed(err))

	// Direct two-node cycle.
	err = ValidateNewDependency(src, "v-1", "b", "a")
	assert.True(t, store.IsValidationFailed(err))
}

func TestValidateNewDependencyMixedEdgeFamilies(t *testing.T) {
	src := &memEdges{}
	// b -has_successor-> a means a depends on b.
	src.add("b", "a", model.RelHasSuccessor)
	// b depends on d.
	src.add("b", "d", model.RelHasPredecessor)

	// b depending on a would close a cycle through the successor edge.
	err := ValidateNewDependency(src, "v-1", "b", "a")
	assert.True(t, store.IsValidationFailed(err))

	// d depending on a would close a -> b -> d -> a across both families.
	err = ValidateNewDependency(src, "v-1", "d", "a")
	assert.True(t, store.IsValidationFailed(err))

	// a gaining another dependency stays acyclic.
	assert.NoError(t, ValidateNewDependency(src, "v-1", "a", "c"))
}

func TestDependsOnAndDependents(t *testing.T) {
	src := &memEdges{}
	src.add("a", "b", model.RelHasPredecessor) // a depends on b
	src.add("c", "a", model.RelHasSuccessor)   // a depends on c
	src.add("d", "a", model.RelHasPredecessor) // d depends on a

	deps, err := DependsOn(src, "v-1", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, deps)

	dependents, err := Dependents(src, "v-1", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, dependents)
}

func TestTopologicalOrder(t *testing.T) {
	src := &memEdges{}
	for _, id := range []string{"act-a", "act-b", "act-c", "act-d"} {
		src.add(id, "wf-1", model.RelPartOfWorkflow)
	}
	// d depends on b and c; b and c depend on a.
	src.add("act-d", "act-b", model.RelHasPredecessor)
	src.add("act-d", "act-c", model.RelHasPredecessor)
	src.add("act-b", "act-a", model.RelHasPredecessor)
	src.add("act-a", "act-c", model.RelHasSuccessor) // c depends on a

	order, err := TopologicalOrder(src, "v-1", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"act-a", "act-b", "act-c", "act-d"}, order)
}

func TestTopologicalOrderIgnoresOutsideDependencies(t *testing.T) {
	src := &memEdges{}
	src.add("act-a", "wf-1", model.RelPartOfWorkflow)
	src.add("act-b", "wf-1", model.RelPartOfWorkflow)
	// A dependency on an activity outside the workflow does not constrain
	// the member ordering.
	src.add("act-a", "other", model.RelHasPredecessor)
	src.add("act-b", "act-a", model.RelHasPredecessor)

	order, err := TopologicalOrder(src, "v-1", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"act-a", "act-b"}, order)
}

func TestTopologicalOrderEmptyWorkflow(t *testing.T) {
	src := &memEdges{}
	order, err := TopologicalOrder(src, "v-1", "wf-1")
	require.NoError(t, err)
	assert.Empty(t, order)
}

func TestTopologicalOrderReportsCycle(t *testing.T) {
	src := &memEdges{}
	src.add("act-a", "wf-1", model.RelPartOfWorkflow)
	src.add("act-b", "wf-1", model.RelPartOfWorkflow)
	// Cycle written directly, bypassing ValidateNewDependency.
	src.add("act-a", "act-b", model.RelHasPredecessor)
	src.add("act-b", "act-a", model.RelHasPredecessor)

	_, err := TopologicalOrder(src, "v-1", "wf-1")
	require.Error(t, err)
	assert.True(t, store.IsValidationFailed(err))
}
