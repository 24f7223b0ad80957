package persistence

import (
	"context"
	"encoding/json"

	"github.com/neuron-gateway/gateway/internal/subscription"
)

// StoreSubscriptions replaces app's entire persisted subscription set
// with list, matching the spec's store_subscriptions(app, list) contract.
func (s *Store) StoreSubscriptions(ctx context.Context, app string, list []subscription.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE app_name = $1`, app); err != nil {
		return err
	}

	for _, e := range list {
		params := e.Params
		if params == nil {
			params = json.RawMessage("{}")
		}
		staticTags, err := json.Marshal(e.StaticTags)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO subscriptions (app_name, driver_name, group_name, params, static_tags, addr)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, app, e.Driver, e.Group, []byte(params), staticTags, e.Addr)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadSubscriptions returns every persisted subscription belonging to app.
func (s *Store) LoadSubscriptions(ctx context.Context, app string) ([]subscription.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT driver_name, group_name, params, static_tags, addr
		FROM subscriptions WHERE app_name = $1 ORDER BY driver_name, group_name
	`, app)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []subscription.Entry
	for rows.Next() {
		var e subscription.Entry
		var params, staticTags []byte
		e.AppName = app
		if err := rows.Scan(&e.Driver, &e.Group, &params, &staticTags, &e.Addr); err != nil {
			return nil, err
		}
		e.Params = json.RawMessage(params)
		if len(staticTags) > 0 {
			if err := json.Unmarshal(staticTags, &e.StaticTags); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
