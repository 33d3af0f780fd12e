package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/saleswire/agentsync/internal/types"
)

func (s *Store) SyncSettings(ctx context.Context) (map[types.SyncKind]types.SyncSetting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sync_type, interval_minutes, enabled, updated_at FROM system.sync_settings
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[types.SyncKind]types.SyncSetting)
	for rows.Next() {
		var setting types.SyncSetting
		if err := rows.Scan(&setting.Kind, &setting.IntervalMinutes, &setting.Enabled, &setting.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync setting: %w", err)
		}
		settings[setting.Kind] = setting
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync settings: %w", err)
	}
	return settings, nil
}

func (s *Store) GetSyncSetting(ctx context.Context, kind types.SyncKind) (types.SyncSetting, error) {
	var setting types.SyncSetting
	err := s.pool.QueryRow(ctx, `
		SELECT sync_type, interval_minutes, enabled, updated_at
		FROM system.sync_settings
		WHERE sync_type = $1
	`, string(kind)).Scan(&setting.Kind, &setting.IntervalMinutes, &setting.Enabled, &setting.UpdatedAt)
	if err != nil {
		return types.SyncSetting{}, notFound(err)
	}
	return setting, nil
}

func (s *Store) UpdateSyncInterval(ctx context.Context, kind types.SyncKind, minutes int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO system.sync_settings (sync_type, interval_minutes, enabled, updated_at)
		VALUES ($1, $2, true, $3)
		ON CONFLICT (sync_type) DO UPDATE SET
			interval_minutes = EXCLUDED.interval_minutes, updated_at = EXCLUDED.updated_at
	`, string(kind), minutes, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to update sync interval for %s: %w", kind, err)
	}
	return nil
}

// SetSyncEnabled toggles a kind without touching its interval. A missing
// row is created with the default interval.
func (s *Store) SetSyncEnabled(ctx context.Context, kind types.SyncKind, enabled bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO system.sync_settings (sync_type, interval_minutes, enabled, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sync_type) DO UPDATE SET
			enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at
	`, string(kind), types.DefaultIntervalMinutes(kind), enabled, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set sync enabled for %s: %w", kind, err)
	}
	return nil
}
