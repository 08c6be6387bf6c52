package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/cscportal/portal-backend/pkg/database"
)

// SettingsRepository handles site_settings rows
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

type row struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// All returns every stored setting
func (r *SettingsRepository) All(ctx context.Context) (map[string]string, error) {
	rows := []row{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT key, value FROM site_settings ORDER BY key`); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(rows))
	for _, rw := range rows {
		out[rw.Key] = rw.Value
	}
	return out, nil
}

// Count returns the number of stored settings
func (r *SettingsRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM site_settings`); err != nil {
		return 0, err
	}
	return n, nil
}

// Upsert writes every pair in one transaction
func (r *SettingsRepository) Upsert(ctx context.Context, values map[string]string) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for key, value := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO site_settings (key, value, updated_at)
				VALUES ($1, $2, NOW())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
				key, value)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
