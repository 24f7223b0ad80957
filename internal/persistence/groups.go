package persistence

import "context"

// GroupRecord is a persisted group definition, independent of the live
// model.Group (which owns a mutex and the change-timestamp watermark).
type GroupRecord struct {
	Name           string
	IntervalMillis int64
}

// StoreGroup upserts a single group record under node.
func (s *Store) StoreGroup(ctx context.Context, node string, g GroupRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (node_name, name, interval_ms)
		VALUES ($1, $2, $3)
		ON CONFLICT (node_name, name) DO UPDATE SET interval_ms = $3
	`, node, g.Name, g.IntervalMillis)
	return err
}

// DeleteGroup removes a group record; cascades to its tags.
func (s *Store) DeleteGroup(ctx context.Context, node, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE node_name = $1 AND name = $2`, node, name)
	return err
}

// LoadGroups returns every persisted group record for node.
func (s *Store) LoadGroups(ctx context.Context, node string) ([]GroupRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, interval_ms FROM groups WHERE node_name = $1 ORDER BY name
	`, node)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GroupRecord
	for rows.Next() {
		var g GroupRecord
		if err := rows.Scan(&g.Name, &g.IntervalMillis); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
