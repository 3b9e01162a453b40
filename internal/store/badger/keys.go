package badger

import "strings"

// Key layout. Identities are UUIDs and type names contain no colon, so ":"
// is a safe separator. Graph entities live under version-scoped prefixes;
// edges additionally maintain adjacency indexes on both endpoints so
// traversal is a prefix scan, not a full iteration.
//
//	m:<methodologyID>                       methodology record
//	mn:<name>                               methodology-by-name index
//	v:<versionID>                           version record
//	vm:<methodologyID>:<versionID>          version-by-methodology index
//	n:<versionID>:<nodeID>                  node record
//	nt:<versionID>:<entityType>:<nodeID>    node-by-type index
//	e:<versionID>:<edgeID>                  edge record
//	ef:<versionID>:<fromID>:<rel>:<edgeID>  outgoing adjacency index
//	et:<versionID>:<toID>:<rel>:<edgeID>    incoming adjacency index
//	p:<proposalID>                          proposal record
//	pm:<methodologyID>:<proposalID>         proposal-by-methodology index

func methodologyKey(id string) []byte { return []byte("m:" + id) }
func versionKey(id string) []byte     { return []byte("v:" + id) }

// methodologyNameKey is only ever resolved by exact Get, so names containing
// the separator are safe.
func methodologyNameKey(name string) []byte { return []byte("mn:" + name) }

func versionIndexKey(methodologyID, versionID string) []byte {
	return []byte("vm:" + methodologyID + ":" + versionID)
}

func versionIndexPrefix(methodologyID string) []byte {
	return []byte("vm:" + methodologyID + ":")
}

func nodeKey(versionID, nodeID string) []byte {
	return []byte("n:" + versionID + ":" + nodeID)
}

func nodePrefix(versionID string) []byte {
	return []byte("n:" + versionID + ":")
}

func nodeTypeKey(versionID, entityType, nodeID string) []byte {
	return []byte("nt:" + versionID + ":" + entityType + ":" + nodeID)
}

func nodeTypePrefix(versionID, entityType string) []byte {
	return []byte("nt:" + versionID + ":" + entityType + ":")
}

func edgeKey(versionID, edgeID string) []byte {
	return []byte("e:" + versionID + ":" + edgeID)
}

func edgePrefix(versionID string) []byte {
	return []byte("e:" + versionID + ":")
}

func adjacencyOutKey(versionID, fromID, rel, edgeID string) []byte {
	return []byte("ef:" + versionID + ":" + fromID + ":" + rel + ":" + edgeID)
}

func adjacencyOutPrefix(versionID, fromID, rel string) []byte {
	return []byte("ef:" + versionID + ":" + fromID + ":" + rel + ":")
}

func adjacencyOutNodePrefix(versionID, fromID string) []byte {
	return []byte("ef:" + versionID + ":" + fromID + ":")
}

func adjacencyInKey(versionID, toID, rel, edgeID string) []byte {
	return []byte("et:" + versionID + ":" + toID + ":" + rel + ":" + edgeID)
}

func adjacencyInPrefix(versionID, toID, rel string) []byte {
	return []byte("et:" + versionID + ":" + toID + ":" + rel + ":")
}

func adjacencyInNodePrefix(versionID, toID string) []byte {
	return []byte("et:" + versionID + ":" + toID + ":")
}

func proposalKey(id string) []byte { return []byte("p:" + id) }

func proposalIndexKey(methodologyID, proposalID string) []byte {
	return []byte("pm:" + methodologyID + ":" + proposalID)
}

func proposalIndexPrefix(methodologyID string) []byte {
	return []byte("pm:" + methodologyID + ":")
}

// lastSegment returns the substring after the final colon of an index key.
func lastSegment(key []byte) string {
	s := string(key)
	idx := strings.LastIndexByte(s, ':')
	return s[idx+1:]
}
