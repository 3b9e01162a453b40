package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/store"
)

// querier abstracts over *sql.DB (plain reads) and *sql.Conn (inside an open
// transaction) so read and write paths share one set of query functions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getNode(ctx context.Context, q querier, versionID, nodeID string) (model.Node, error) {
	row := q.QueryRowContext(ctx, `
		SELECT version_id, id, entity_type, attrs, created_at
		FROM nodes
		WHERE version_id = ? AND id = ?
	`, versionID, nodeID)
	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return model.Node{}, store.NotFound("node", nodeID)
	}
	if err != nil {
		return model.Node{}, fmt.Errorf("get node: %w", err)
	}
	return node, nil
}

func getEdges(ctx context.Context, q querier, versionID, nodeID string, dir store.Direction, relTypes []model.RelationshipType) ([]model.Edge, error) {
	endpoint := "from_node_id"
	if dir == store.Incoming {
		endpoint = "to_node_id"
	}

	query := `
		SELECT version_id, id, from_node_id, to_node_id, relationship_type, attrs
		FROM edges
		WHERE version_id = ? AND ` + endpoint + ` = ?`
	args := []any{versionID, nodeID}

	if len(relTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(relTypes)), ",")
		query += " AND relationship_type IN (" + placeholders + ")"
		for _, rt := range relTypes {
			args = append(args, string(rt))
		}
	}

	// Deterministic ordering so traversals replay identically.
	query += " ORDER BY id COLLATE BINARY ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()
	return collectEdges(rows)
}

func queryByType(ctx context.Context, q querier, versionID string, entityType model.EntityType) ([]model.Node, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT version_id, id, entity_type, attrs, created_at
		FROM nodes
		WHERE version_id = ? AND entity_type = ?
		ORDER BY id COLLATE BINARY ASC
	`, versionID, string(entityType))
	if err != nil {
		return nil, fmt.Errorf("query nodes by type: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

func listNodes(ctx context.Context, q querier, versionID string) ([]model.Node, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT version_id, id, entity_type, attrs, created_at
		FROM nodes
		WHERE version_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

func listEdges(ctx context.Context, q querier, versionID string) ([]model.Edge, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT version_id, id, from_node_id, to_node_id, relationship_type, attrs
		FROM edges
		WHERE version_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()
	return collectEdges(rows)
}

func putNode(ctx context.Context, q querier, node model.Node) error {
	attrs, err := attrsToText(node.Attrs)
	if err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO nodes (version_id, id, entity_type, attrs, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(version_id, id) DO UPDATE SET
			entity_type = excluded.entity_type,
			attrs = excluded.attrs
	`, node.VersionID, node.ID, string(node.EntityType), attrs, timeToText(node.CreatedAt))
	if err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	return nil
}

func putEdge(ctx context.Context, q querier, edge model.Edge) error {
	attrs, err := attrsToText(edge.Attrs)
	if err != nil {
		return fmt.Errorf("put edge: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO edges (version_id, id, from_node_id, to_node_id, relationship_type, attrs)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(version_id, id) DO UPDATE SET
			from_node_id = excluded.from_node_id,
			to_node_id = excluded.to_node_id,
			relationship_type = excluded.relationship_type,
			attrs = excluded.attrs
	`, edge.VersionID, edge.ID, edge.FromNodeID, edge.ToNodeID, string(edge.RelationshipType), attrs)
	if err != nil {
		return fmt.Errorf("put edge: %w", err)
	}
	return nil
}

// deleteNode removes the node and cascades to every edge referencing it in
// the same version.
func deleteNode(ctx context.Context, q querier, versionID, nodeID string) error {
	res, err := q.ExecContext(ctx, `
		DELETE FROM nodes WHERE version_id = ? AND id = ?
	`, versionID, nodeID)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete node: rows affected: %w", err)
	}
	if affected == 0 {
		return store.NotFound("node", nodeID)
	}
	_, err = q.ExecContext(ctx, `
		DELETE FROM edges
		WHERE version_id = ? AND (from_node_id = ? OR to_node_id = ?)
	`, versionID, nodeID, nodeID)
	if err != nil {
		return fmt.Errorf("delete node edges: %w", err)
	}
	return nil
}

func deleteEdge(ctx context.Context, q querier, versionID, edgeID string) error {
	res, err := q.ExecContext(ctx, `
		DELETE FROM edges WHERE version_id = ? AND id = ?
	`, versionID, edgeID)
	if err != nil {
		return fmt.Errorf("delete edge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete edge: rows affected: %w", err)
	}
	if affected == 0 {
		return store.NotFound("edge", edgeID)
	}
	return nil
}

// copyVersion carries every node and edge forward under a new version id.
// Logical ids and creation timestamps are preserved.
func copyVersion(ctx context.Context, q querier, fromVersionID, toVersionID string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO nodes (version_id, id, entity_type, attrs, created_at)
		SELECT ?, id, entity_type, attrs, created_at
		FROM nodes WHERE version_id = ?
	`, toVersionID, fromVersionID)
	if err != nil {
		return fmt.Errorf("copy nodes: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO edges (version_id, id, from_node_id, to_node_id, relationship_type, attrs)
		SELECT ?, id, from_node_id, to_node_id, relationship_type, attrs
		FROM edges WHERE version_id = ?
	`, toVersionID, fromVersionID)
	if err != nil {
		return fmt.Errorf("copy edges: %w", err)
	}
	return nil
}

func getVersion(ctx context.Context, q querier, versionID string) (model.Version, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, methodology_id, major, minor, parent_version_id, created_from_proposal_id, description, created_at
		FROM versions
		WHERE id = ?
	`, versionID)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return model.Version{}, store.NotFound("version", versionID)
	}
	if err != nil {
		return model.Version{}, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

func listVersions(ctx context.Context, q querier, methodologyID string) ([]model.Version, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, methodology_id, major, minor, parent_version_id, created_from_proposal_id, description, created_at
		FROM versions
		WHERE methodology_id = ?
		ORDER BY major ASC, minor ASC, id COLLATE BINARY ASC
	`, methodologyID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := []model.Version{}
	for rows.Next() {
		v, err := scanVersionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

func putVersion(ctx context.Context, q querier, v model.Version) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO versions (id, methodology_id, major, minor, parent_version_id, created_from_proposal_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			major = excluded.major,
			minor = excluded.minor,
			description = excluded.description
	`, v.ID, v.MethodologyID, v.Number.Major, v.Number.Minor, v.ParentVersionID,
		v.CreatedFromProposalID, v.Description, timeToText(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("put version: %w", err)
	}
	return nil
}

func getMethodology(ctx context.Context, q querier, methodologyID string) (model.Methodology, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, category, access_tier, current_version_id, created_at, last_accessed_at
		FROM methodologies
		WHERE id = ?
	`, methodologyID)
	m, err := scanMethodology(row)
	if err == sql.ErrNoRows {
		return model.Methodology{}, store.NotFound("methodology", methodologyID)
	}
	if err != nil {
		return model.Methodology{}, fmt.Errorf("get methodology: %w", err)
	}
	return m, nil
}

func getMethodologyByName(ctx context.Context, q querier, name string) (model.Methodology, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, category, access_tier, current_version_id, created_at, last_accessed_at
		FROM methodologies
		WHERE name = ?
	`, name)
	m, err := scanMethodology(row)
	if err == sql.ErrNoRows {
		return model.Methodology{}, store.NotFound("methodology", name)
	}
	if err != nil {
		return model.Methodology{}, fmt.Errorf("get methodology by name: %w", err)
	}
	return m, nil
}

func listMethodologies(ctx context.Context, q querier) ([]model.Methodology, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, category, access_tier, current_version_id, created_at, last_accessed_at
		FROM methodologies
		ORDER BY name ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list methodologies: %w", err)
	}
	defer rows.Close()

	methodologies := []model.Methodology{}
	for rows.Next() {
		m, err := scanMethodologyRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan methodology: %w", err)
		}
		methodologies = append(methodologies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate methodologies: %w", err)
	}
	return methodologies, nil
}

func putMethodology(ctx context.Context, q querier, m model.Methodology) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO methodologies (id, name, category, access_tier, current_version_id, created_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			access_tier = excluded.access_tier,
			current_version_id = excluded.current_version_id
	`, m.ID, m.Name, m.Category, m.AccessTier, m.CurrentVersionID,
		timeToText(m.CreatedAt), timeToText(m.LastAccessedAt))
	if err != nil {
		return fmt.Errorf("put methodology: %w", err)
	}
	return nil
}

// setCurrentVersion swaps the current-version pointer only if it still holds
// the expected value. Zero rows affected means another writer won the race.
func setCurrentVersion(ctx context.Context, q querier, methodologyID, expectVersionID, newVersionID string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE methodologies
		SET current_version_id = ?
		WHERE id = ? AND current_version_id = ?
	`, newVersionID, methodologyID, expectVersionID)
	if err != nil {
		return fmt.Errorf("set current version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set current version: rows affected: %w", err)
	}
	if affected == 0 {
		// Either the methodology is gone or the pointer moved under us.
		if _, getErr := getMethodology(ctx, q, methodologyID); getErr != nil {
			return getErr
		}
		return store.Conflict(expectVersionID, nil)
	}
	return nil
}

func getProposal(ctx context.Context, q querier, proposalID string) (model.Proposal, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, methodology_id, version_id, trigger_kind, trigger_context, change_kind,
		       target_node_id, change, rationale, status, reviewer, review_notes, reviewed_at,
		       transmitted, transmitted_at, created_at
		FROM proposals
		WHERE id = ?
	`, proposalID)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return model.Proposal{}, store.NotFound("proposal", proposalID)
	}
	if err != nil {
		return model.Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

func listProposals(ctx context.Context, q querier, methodologyID string) ([]model.Proposal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, methodology_id, version_id, trigger_kind, trigger_context, change_kind,
		       target_node_id, change, rationale, status, reviewer, review_notes, reviewed_at,
		       transmitted, transmitted_at, created_at
		FROM proposals
		WHERE methodology_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, methodologyID)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	proposals := []model.Proposal{}
	for rows.Next() {
		p, err := scanProposalRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return proposals, nil
}

func putProposal(ctx context.Context, q querier, p model.Proposal) error {
	change, err := changeToText(p.Change)
	if err != nil {
		return fmt.Errorf("put proposal: %w", err)
	}
	transmitted := 0
	if p.Transmitted {
		transmitted = 1
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO proposals (id, methodology_id, version_id, trigger_kind, trigger_context,
			change_kind, target_node_id, change, rationale, status, reviewer, review_notes,
			reviewed_at, transmitted, transmitted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			reviewer = excluded.reviewer,
			review_notes = excluded.review_notes,
			reviewed_at = excluded.reviewed_at,
			transmitted = excluded.transmitted,
			transmitted_at = excluded.transmitted_at
	`, p.ID, p.MethodologyID, p.VersionID, string(p.TriggerKind), p.TriggerContext,
		string(p.ChangeKind), p.TargetNodeID, change, p.Rationale, string(p.Status),
		p.Reviewer, p.ReviewNotes, timeToText(p.ReviewedAt), transmitted,
		timeToText(p.TransmittedAt), timeToText(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("put proposal: %w", err)
	}
	return nil
}

func collectNodes(rows *sql.Rows) ([]model.Node, error) {
	nodes := []model.Node{}
	for rows.Next() {
		n, err := scanNodeRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func collectEdges(rows *sql.Rows) ([]model.Edge, error) {
	edges := []model.Edge{}
	for rows.Next() {
		e, err := scanEdgeRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}
