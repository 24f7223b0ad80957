package persistence

import (
	"context"

	"github.com/neuron-gateway/gateway/internal/model"
)

// StorePlugins upserts every entry in list, matching the spec's
// store_plugins(list) contract.
func (s *Store) StorePlugins(ctx context.Context, list []*model.PluginEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range list {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plugins
			(module_name, description, library_path, kind, node_type, version_major, version_minor, version_patch, schema, display, single, single_name, supports_template)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (module_name) DO UPDATE SET
				description = $2, library_path = $3, kind = $4, node_type = $5,
				version_major = $6, version_minor = $7, version_patch = $8, schema = $9,
				display = $10, single = $11, single_name = $12, supports_template = $13
		`, p.ModuleName, p.Description, p.LibraryPath, int(p.Kind), int(p.Type),
			p.Version.Major, p.Version.Minor, p.Version.Patch, p.Schema,
			p.Display, p.Single, p.SingleName, p.SupportsTemplate)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeletePlugin removes a single plugin entry, used when a plugin is
// unloaded.
func (s *Store) DeletePlugin(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM plugins WHERE module_name = $1`, name)
	return err
}

// LoadPlugins returns every persisted plugin entry.
func (s *Store) LoadPlugins(ctx context.Context) ([]*model.PluginEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT module_name, description, library_path, kind, node_type,
		       version_major, version_minor, version_patch, schema, display, single, single_name, supports_template
		FROM plugins ORDER BY module_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PluginEntry
	for rows.Next() {
		p := &model.PluginEntry{}
		var kind, nodeType int
		if err := rows.Scan(&p.ModuleName, &p.Description, &p.LibraryPath, &kind, &nodeType,
			&p.Version.Major, &p.Version.Minor, &p.Version.Patch, &p.Schema,
			&p.Display, &p.Single, &p.SingleName, &p.SupportsTemplate); err != nil {
			return nil, err
		}
		p.Kind = model.PluginKind(kind)
		p.Type = model.NodeType(nodeType)
		out = append(out, p)
	}
	return out, rows.Err()
}
