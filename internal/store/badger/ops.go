package badger

import (
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/store"
)

// Read and write primitives shared by the Reader (View transactions) and Tx
// (Update transactions) surfaces. Both run on *badger.Txn.

func fetch(txn *badger.Txn, key []byte, entity, id string) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.NotFound(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", entity, err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("read %s value: %w", entity, err)
	}
	return data, nil
}

// scanKeys returns the final key segment of every key under prefix, in key
// order.
func scanKeys(txn *badger.Txn, prefix []byte) []string {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Rewind(); it.Valid(); it.Next() {
		ids = append(ids, lastSegment(it.Item().Key()))
	}
	return ids
}

// scanValues returns a copy of every value under prefix, in key order.
func scanValues(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var values [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		data, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		values = append(values, data)
	}
	return values, nil
}

func getNode(txn *badger.Txn, versionID, nodeID string) (model.Node, error) {
	data, err := fetch(txn, nodeKey(versionID, nodeID), "node", nodeID)
	if err != nil {
		return model.Node{}, err
	}
	return decodeNode(data)
}

func getEdge(txn *badger.Txn, versionID, edgeID string) (model.Edge, error) {
	data, err := fetch(txn, edgeKey(versionID, edgeID), "edge", edgeID)
	if err != nil {
		return model.Edge{}, err
	}
	return decodeEdge(data)
}

func getEdges(txn *badger.Txn, versionID, nodeID string, dir store.Direction, relTypes []model.RelationshipType) ([]model.Edge, error) {
	var prefixes [][]byte
	if len(relTypes) == 0 {
		if dir == store.Incoming {
			prefixes = append(prefixes, adjacencyInNodePrefix(versionID, nodeID))
		} else {
			prefixes = append(prefixes, adjacencyOutNodePrefix(versionID, nodeID))
		}
	} else {
		for _, rt := range relTypes {
			if dir == store.Incoming {
				prefixes = append(prefixes, adjacencyInPrefix(versionID, nodeID, string(rt)))
			} else {
				prefixes = append(prefixes, adjacencyOutPrefix(versionID, nodeID, string(rt)))
			}
		}
	}

	var edgeIDs []string
	for _, prefix := range prefixes {
		edgeIDs = append(edgeIDs, scanKeys(txn, prefix)...)
	}
	sort.Strings(edgeIDs)

	edges := []model.Edge{}
	for _, id := range edgeIDs {
		edge, err := getEdge(txn, versionID, id)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func queryByType(txn *badger.Txn, versionID string, entityType model.EntityType) ([]model.Node, error) {
	nodes := []model.Node{}
	for _, id := range scanKeys(txn, nodeTypePrefix(versionID, string(entityType))) {
		node, err := getNode(txn, versionID, id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func listNodes(txn *badger.Txn, versionID string) ([]model.Node, error) {
	values, err := scanValues(txn, nodePrefix(versionID))
	if err != nil {
		return nil, err
	}
	nodes := []model.Node{}
	for _, data := range values {
		node, err := decodeNode(data)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func listEdges(txn *badger.Txn, versionID string) ([]model.Edge, error) {
	values, err := scanValues(txn, edgePrefix(versionID))
	if err != nil {
		return nil, err
	}
	edges := []model.Edge{}
	for _, data := range values {
		edge, err := decodeEdge(data)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func putNode(txn *badger.Txn, node model.Node) error {
	// Upserts may change the entity type; drop the stale type index entry.
	if existing, err := getNode(txn, node.VersionID, node.ID); err == nil {
		if existing.EntityType != node.EntityType {
			if err := txn.Delete(nodeTypeKey(node.VersionID, string(existing.EntityType), node.ID)); err != nil {
				return fmt.Errorf("drop stale node type index: %w", err)
			}
		}
	} else if !store.IsNotFound(err) {
		return err
	}

	data, err := encodeNode(node)
	if err != nil {
		return err
	}
	if err := txn.Set(nodeKey(node.VersionID, node.ID), data); err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	if err := txn.Set(nodeTypeKey(node.VersionID, string(node.EntityType), node.ID), nil); err != nil {
		return fmt.Errorf("put node type index: %w", err)
	}
	return nil
}

func putEdge(txn *badger.Txn, edge model.Edge) error {
	// Upserts may rewire endpoints or change type; drop stale adjacency
	// entries before writing the new ones.
	if existing, err := getEdge(txn, edge.VersionID, edge.ID); err == nil {
		if err := deleteAdjacency(txn, existing); err != nil {
			return err
		}
	} else if !store.IsNotFound(err) {
		return err
	}

	data, err := encodeEdge(edge)
	if err != nil {
		return err
	}
	if err := txn.Set(edgeKey(edge.VersionID, edge.ID), data); err != nil {
		return fmt.Errorf("put edge: %w", err)
	}
	rel := string(edge.RelationshipType)
	if err := txn.Set(adjacencyOutKey(edge.VersionID, edge.FromNodeID, rel, edge.ID), nil); err != nil {
		return fmt.Errorf("put outgoing adjacency: %w", err)
	}
	if err := txn.Set(adjacencyInKey(edge.VersionID, edge.ToNodeID, rel, edge.ID), nil); err != nil {
		return fmt.Errorf("put incoming adjacency: %w", err)
	}
	return nil
}

func deleteAdjacency(txn *badger.Txn, edge model.Edge) error {
	rel := string(edge.RelationshipType)
	if err := txn.Delete(adjacencyOutKey(edge.VersionID, edge.FromNodeID, rel, edge.ID)); err != nil {
		return fmt.Errorf("delete outgoing adjacency: %w", err)
	}
	if err := txn.Delete(adjacencyInKey(edge.VersionID, edge.ToNodeID, rel, edge.ID)); err != nil {
		return fmt.Errorf("delete incoming adjacency: %w", err)
	}
	return nil
}

func deleteEdgeByID(txn *badger.Txn, versionID, edgeID string) error {
	edge, err := getEdge(txn, versionID, edgeID)
	if err != nil {
		return err
	}
	if err := txn.Delete(edgeKey(versionID, edgeID)); err != nil {
		return fmt.Errorf("delete edge: %w", err)
	}
	return deleteAdjacency(txn, edge)
}

func deleteNode(txn *badger.Txn, versionID, nodeID string) error {
	node, err := getNode(txn, versionID, nodeID)
	if err != nil {
		return err
	}

	// Cascade: every edge touching this node goes with it. Adjacency scans
	// find both directions without a full edge iteration.
	touching := scanKeys(txn, adjacencyOutNodePrefix(versionID, nodeID))
	touching = append(touching, scanKeys(txn, adjacencyInNodePrefix(versionID, nodeID))...)
	seen := make(map[string]bool, len(touching))
	for _, edgeID := range touching {
		if seen[edgeID] {
			continue
		}
		seen[edgeID] = true
		if err := deleteEdgeByID(txn, versionID, edgeID); err != nil {
			return err
		}
	}

	if err := txn.Delete(nodeKey(versionID, nodeID)); err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	if err := txn.Delete(nodeTypeKey(versionID, string(node.EntityType), nodeID)); err != nil {
		return fmt.Errorf("delete node type index: %w", err)
	}
	return nil
}

func copyVersion(txn *badger.Txn, fromVersionID, toVersionID string) error {
	nodes, err := listNodes(txn, fromVersionID)
	if err != nil {
		return fmt.Errorf("copy version: %w", err)
	}
	for _, node := range nodes {
		node.VersionID = toVersionID
		if err := putNode(txn, node); err != nil {
			return fmt.Errorf("copy node %s: %w", node.ID, err)
		}
	}
	edges, err := listEdges(txn, fromVersionID)
	if err != nil {
		return fmt.Errorf("copy version: %w", err)
	}
	for _, edge := range edges {
		edge.VersionID = toVersionID
		if err := putEdge(txn, edge); err != nil {
			return fmt.Errorf("copy edge %s: %w", edge.ID, err)
		}
	}
	return nil
}

func getVersion(txn *badger.Txn, versionID string) (model.Version, error) {
	data, err := fetch(txn, versionKey(versionID), "version", versionID)
	if err != nil {
		return model.Version{}, err
	}
	return decodeVersion(data)
}

func putVersion(txn *badger.Txn, v model.Version) error {
	data, err := encodeVersion(v)
	if err != nil {
		return fmt.Errorf("put version: %w", err)
	}
	if err := txn.Set(versionKey(v.ID), data); err != nil {
		return fmt.Errorf("put version: %w", err)
	}
	if err := txn.Set(versionIndexKey(v.MethodologyID, v.ID), nil); err != nil {
		return fmt.Errorf("put version index: %w", err)
	}
	return nil
}

func listVersions(txn *badger.Txn, methodologyID string) ([]model.Version, error) {
	versions := []model.Version{}
	for _, id := range scanKeys(txn, versionIndexPrefix(methodologyID)) {
		v, err := getVersion(txn, id)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		if versions[i].Number != versions[j].Number {
			return versions[i].Number.Less(versions[j].Number)
		}
		return versions[i].ID < versions[j].ID
	})
	return versions, nil
}

func getMethodology(txn *badger.Txn, methodologyID string) (model.Methodology, error) {
	data, err := fetch(txn, methodologyKey(methodologyID), "methodology", methodologyID)
	if err != nil {
		return model.Methodology{}, err
	}
	return decodeMethodology(data)
}

func putMethodology(txn *badger.Txn, m model.Methodology) error {
	data, err := encodeMethodology(m)
	if err != nil {
		return fmt.Errorf("put methodology: %w", err)
	}
	if err := txn.Set(methodologyKey(m.ID), data); err != nil {
		return fmt.Errorf("put methodology: %w", err)
	}
	if err := txn.Set(methodologyNameKey(m.Name), []byte(m.ID)); err != nil {
		return fmt.Errorf("put methodology name index: %w", err)
	}
	return nil
}

// getMethodologyByName resolves the name index. Reading the index key inside
// a write transaction makes two same-name creates collide at commit.
func getMethodologyByName(txn *badger.Txn, name string) (model.Methodology, error) {
	id, err := fetch(txn, methodologyNameKey(name), "methodology", name)
	if err != nil {
		return model.Methodology{}, err
	}
	return getMethodology(txn, string(id))
}

func listMethodologies(txn *badger.Txn) ([]model.Methodology, error) {
	values, err := scanValues(txn, []byte("m:"))
	if err != nil {
		return nil, err
	}
	methodologies := []model.Methodology{}
	for _, data := range values {
		m, err := decodeMethodology(data)
		if err != nil {
			return nil, err
		}
		methodologies = append(methodologies, m)
	}
	sort.Slice(methodologies, func(i, j int) bool {
		if methodologies[i].Name != methodologies[j].Name {
			return methodologies[i].Name < methodologies[j].Name
		}
		return methodologies[i].ID < methodologies[j].ID
	})
	return methodologies, nil
}

// setCurrentVersion applies compare-and-swap semantics on the pointer. The
// serializable transaction makes the read-compare-write atomic.
func setCurrentVersion(txn *badger.Txn, methodologyID, expectVersionID, newVersionID string) error {
	m, err := getMethodology(txn, methodologyID)
	if err != nil {
		return err
	}
	if m.CurrentVersionID != expectVersionID {
		return store.Conflict(expectVersionID, nil)
	}
	m.CurrentVersionID = newVersionID
	return putMethodology(txn, m)
}

func getProposal(txn *badger.Txn, proposalID string) (model.Proposal, error) {
	data, err := fetch(txn, proposalKey(proposalID), "proposal", proposalID)
	if err != nil {
		return model.Proposal{}, err
	}
	return decodeProposal(data)
}

func putProposal(txn *badger.Txn, p model.Proposal) error {
	data, err := encodeProposal(p)
	if err != nil {
		return fmt.Errorf("put proposal: %w", err)
	}
	if err := txn.Set(proposalKey(p.ID), data); err != nil {
		return fmt.Errorf("put proposal: %w", err)
	}
	if err := txn.Set(proposalIndexKey(p.MethodologyID, p.ID), nil); err != nil {
		return fmt.Errorf("put proposal index: %w", err)
	}
	return nil
}

func listProposals(txn *badger.Txn, methodologyID string) ([]model.Proposal, error) {
	proposals := []model.Proposal{}
	for _, id := range scanKeys(txn, proposalIndexPrefix(methodologyID)) {
		p, err := getProposal(txn, id)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	sort.Slice(proposals, func(i, j int) bool {
		if !proposals[i].CreatedAt.Equal(proposals[j].CreatedAt) {
			return proposals[i].CreatedAt.Before(proposals[j].CreatedAt)
		}
		return proposals[i].ID < proposals[j].ID
	})
	return proposals, nil
}
