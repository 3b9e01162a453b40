// Package depgraph guards the integrity of predecessor/successor dependency
// edges among a workflow's activities.
//
// Both predecessor and successor edges express the same underlying relation,
// "X depends on Y" (Y must come before X):
//
//	A -has_predecessor-> B   means A depends on B
//	B -has_successor->   A   means A depends on B
//
// A new dependency is refused when the dependency already transitively
// depends on the dependent, which would close a cycle. The check runs inside
// the same transaction that writes the edge, so a refused edge writes
// nothing.
package depgraph

import (
	"context"
	"sort"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/store"
)

// EdgeSource is the slice of the store the dependency checks need.
// store.Tx satisfies it directly; use FromReader to adapt the read-only
// surface.
type EdgeSource interface {
	GetEdges(versionID, nodeID string, dir store.Direction, relTypes ...model.RelationshipType) ([]model.Edge, error)
}

// readerSource adapts store.Reader to EdgeSource for out-of-transaction
// queries (topological ordering for display, direct edge listings).
type readerSource struct {
	ctx context.Context
	r   store.Reader
}

func (s readerSource) GetEdges(versionID, nodeID string, dir store.Direction, relTypes ...model.RelationshipType) ([]model.Edge, error) {
	return s.r.GetEdges(s.ctx, versionID, nodeID, dir, relTypes...)
}

// FromReader wraps a read-only store surface as an EdgeSource.
func FromReader(ctx context.Context, r store.Reader) EdgeSource {
	return readerSource{ctx: ctx, r: r}
}

// ValidateNewDependency checks that making dependentID depend on
// dependencyID would not close a cycle. Returns VALIDATION_FAILED (and
// writes nothing) if it would; the caller only writes the edge on nil.
func ValidateNewDependency(src EdgeSource, versionID, dependentID, dependencyID string) error {
	if dependentID == dependencyID {
		return store.ValidationFailedf("activity %s cannot depend on itself", dependentID)
	}
	reaches, err := reachable(src, versionID, dependencyID, dependentID)
	if err != nil {
		return err
	}
	if reaches {
		return store.ValidationFailedf(
			"dependency cycle: activity %s already depends on activity %s", dependencyID, dependentID)
	}
	return nil
}

// DependsOn returns the ids of the activities nodeID directly depends on,
// in deterministic order.
func DependsOn(src EdgeSource, versionID, nodeID string) ([]string, error) {
	// Outgoing has_predecessor edges point at dependencies...
	out, err := src.GetEdges(versionID, nodeID, store.Outgoing, model.RelHasPredecessor)
	if err != nil {
		return nil, err
	}
	// ...and incoming has_successor edges point from them.
	in, err := src.GetEdges(versionID, nodeID, store.Incoming, model.RelHasSuccessor)
	if err != nil {
		return nil, err
	}

	deps := make([]string, 0, len(out)+len(in))
	for _, e := range out {
		deps = append(deps, e.ToNodeID)
	}
	for _, e := range in {
		deps = append(deps, e.FromNodeID)
	}
	sort.Strings(deps)
	return deps, nil
}

// Dependents returns the ids of the activities that directly depend on
// nodeID, in deterministic order.
func Dependents(src EdgeSource, versionID, nodeID string) ([]string, error) {
	in, err := src.GetEdges(versionID, nodeID, store.Incoming, model.RelHasPredecessor)
	if err != nil {
		return nil, err
	}
	out, err := src.GetEdges(versionID, nodeID, store.Outgoing, model.RelHasSuccessor)
	if err != nil {
		return nil, err
	}

	deps := make([]string, 0, len(in)+len(out))
	for _, e := range in {
		deps = append(deps, e.FromNodeID)
	}
	for _, e := range out {
		deps = append(deps, e.ToNodeID)
	}
	sort.Strings(deps)
	return deps, nil
}

// Predecessors returns the direct predecessor edges of an activity, without
// transitive closure.
func Predecessors(src EdgeSource, versionID, activityID string) ([]model.Edge, error) {
	return src.GetEdges(versionID, activityID, store.Outgoing, model.RelHasPredecessor)
}

// Successors returns the direct successor edges of an activity.
func Successors(src EdgeSource, versionID, activityID string) ([]model.Edge, error) {
	return src.GetEdges(versionID, activityID, store.Outgoing, model.RelHasSuccessor)
}

// reachable reports whether goal is reachable from start by walking
// depends-on edges.
func reachable(src EdgeSource, versionID, start, goal string) (bool, error) {
	if start == goal {
		return true, nil
	}
	visited := map[string]bool{start: true}
	frontier := []string{start}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		deps, err := DependsOn(src, versionID, current)
		if err != nil {
			return false, err
		}
		for _, dep := range deps {
			if dep == goal {
				return true, nil
			}
			if !visited[dep] {
				visited[dep] = true
				frontier = append(frontier, dep)
			}
		}
	}
	return false, nil
}

// TopologicalOrder returns the workflow's activities in a deterministic
// linear order consistent with every dependency edge: dependencies first,
// ties broken by node id. A cycle (impossible when ValidateNewDependency
// guards every edge write) is reported as VALIDATION_FAILED.
func TopologicalOrder(src EdgeSource, versionID, workflowID string) ([]string, error) {
	members, err := workflowMembers(src, versionID, workflowID)
	if err != nil {
		return nil, err
	}
	inWorkflow := make(map[string]bool, len(members))
	for _, id := range members {
		inWorkflow[id] = true
	}

	// Kahn's algorithm restricted to the workflow's member set.
	indegree := make(map[string]int, len(members))
	dependents := make(map[string][]string, len(members))
	for _, id := range members {
		deps, err := DependsOn(src, versionID, id)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if !inWorkflow[dep] {
				continue
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	ready := []string{}
	for _, id := range members {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(members))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		released := []string{}
		for _, dep := range dependents[current] {
			indegree[dep]--
			if indegree[dep] == 0 {
				released = append(released, dep)
			}
		}
		// Keep the ready set sorted so the ordering is deterministic.
		if len(released) > 0 {
			ready = append(ready, released...)
			sort.Strings(ready)
		}
	}

	if len(order) != len(members) {
		return nil, store.ValidationFailedf(
			"dependency cycle detected among activities of workflow %s", workflowID)
	}
	return order, nil
}

// workflowMembers returns the ids of the activities attached to a workflow
// via part_of_workflow edges, in deterministic order.
func workflowMembers(src EdgeSource, versionID, workflowID string) ([]string, error) {
	edges, err := src.GetEdges(versionID, workflowID, store.Incoming, model.RelPartOfWorkflow)
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(edges))
	for _, e := range edges {
		members = append(members, e.FromNodeID)
	}
	sort.Strings(members)
	return members, nil
}
