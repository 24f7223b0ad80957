package persistence

import (
	"context"

	"github.com/neuron-gateway/gateway/internal/model"
)

// NodeRecord is the persisted shape of a node, independent of the live
// model.Node (which owns a mutex and its in-memory group tree). Running
// records whether the node was RUNNING at the time it was last persisted;
// the manager uses it at startup to decide which nodes to auto-start
// once their adapters reach READY.
type NodeRecord struct {
	Name       string
	PluginName string
	Type       model.NodeType
	Static     bool
	Display    bool
	Single     bool
	IsMonitor  bool
	Address    string
	Running    bool
}

// StoreNode upserts a single node record.
func (s *Store) StoreNode(ctx context.Context, n NodeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (name, plugin_name, node_type, is_static, display, single, is_monitor, address, running)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE SET
			plugin_name = $2, node_type = $3, is_static = $4, display = $5,
			single = $6, is_monitor = $7, address = $8, running = $9
	`, n.Name, n.PluginName, int(n.Type), n.Static, n.Display, n.Single, n.IsMonitor, n.Address, n.Running)
	return err
}

// DeleteNode removes a node record; cascades to settings/groups/tags via
// foreign-key ON DELETE CASCADE.
func (s *Store) DeleteNode(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE name = $1`, name)
	return err
}

// LoadNodes returns every persisted node record.
func (s *Store) LoadNodes(ctx context.Context) ([]NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, plugin_name, node_type, is_static, display, single, is_monitor, address, running
		FROM nodes ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NodeRecord
	for rows.Next() {
		var n NodeRecord
		var nodeType int
		if err := rows.Scan(&n.Name, &n.PluginName, &nodeType, &n.Static, &n.Display, &n.Single, &n.IsMonitor, &n.Address, &n.Running); err != nil {
			return nil, err
		}
		n.Type = model.NodeType(nodeType)
		out = append(out, n)
	}
	return out, rows.Err()
}

// StoreNodeSetting upserts a node's opaque settings blob.
func (s *Store) StoreNodeSetting(ctx context.Context, node string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO node_settings (node_name, blob)
		VALUES ($1, $2)
		ON CONFLICT (node_name) DO UPDATE SET blob = $2
	`, node, string(blob))
	return err
}

// LoadNodeSetting returns a node's settings blob, or sql.ErrNoRows if
// none was ever persisted.
func (s *Store) LoadNodeSetting(ctx context.Context, node string) ([]byte, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM node_settings WHERE node_name = $1`, node).Scan(&blob)
	if err != nil {
		return nil, err
	}
	return []byte(blob), nil
}
