package persistence

import (
	"context"

	"github.com/neuron-gateway/gateway/internal/model"
)

// StoreTag inserts a new tag record under (node, group).
func (s *Store) StoreTag(ctx context.Context, node, group string, tag *model.TagDef) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (node_name, group_name, name, address, description, tag_type, attribute, precision, decimal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, node, group, tag.Name, tag.Address, tag.Description, int(tag.Type), int(tag.Attribute), tag.Precision, tag.Decimal)
	return err
}

// UpdateTag replaces an existing tag record in place.
func (s *Store) UpdateTag(ctx context.Context, node, group string, tag *model.TagDef) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tags SET address = $4, description = $5, tag_type = $6, attribute = $7, precision = $8, decimal = $9
		WHERE node_name = $1 AND group_name = $2 AND name = $3
	`, node, group, tag.Name, tag.Address, tag.Description, int(tag.Type), int(tag.Attribute), tag.Precision, tag.Decimal)
	return err
}

// DeleteTag removes a single tag record.
func (s *Store) DeleteTag(ctx context.Context, node, group, name string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM tags WHERE node_name = $1 AND group_name = $2 AND name = $3
	`, node, group, name)
	return err
}

// LoadTags returns every persisted tag record for (node, group).
func (s *Store) LoadTags(ctx context.Context, node, group string) ([]*model.TagDef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, address, description, tag_type, attribute, precision, decimal
		FROM tags WHERE node_name = $1 AND group_name = $2 ORDER BY name
	`, node, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TagDef
	for rows.Next() {
		t := &model.TagDef{}
		var tagType, attribute int
		if err := rows.Scan(&t.Name, &t.Address, &t.Description, &tagType, &attribute, &t.Precision, &t.Decimal); err != nil {
			return nil, err
		}
		t.Type = model.TagType(tagType)
		t.Attribute = model.TagAttribute(attribute)
		out = append(out, t)
	}
	return out, rows.Err()
}
