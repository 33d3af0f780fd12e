package postgres

import (
	"context"
	"fmt"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

const userColumns = `id, username, role, whitelisted, last_login, last_customer_sync, last_order_sync, created_at`

func (s *Store) ListWhitelistedUsers(ctx context.Context) ([]*types.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM agents.users
		WHERE whitelisted
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list whitelisted users: %w", err)
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.Whitelisted,
			&u.LastLogin, &u.LastCustomerSync, &u.LastOrderSync, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*types.User, error) {
	var u types.User
	err := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM agents.users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.Role, &u.Whitelisted,
		&u.LastLogin, &u.LastCustomerSync, &u.LastOrderSync, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) UpsertUser(ctx context.Context, user *types.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents.users (id, username, role, whitelisted, last_login, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			role = EXCLUDED.role,
			whitelisted = EXCLUDED.whitelisted,
			last_login = EXCLUDED.last_login
	`, user.ID, user.Username, string(user.Role), user.Whitelisted, user.LastLogin, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", user.ID, err)
	}
	return nil
}

func (s *Store) SetUserWhitelisted(ctx context.Context, id string, whitelisted bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents.users SET whitelisted = $2 WHERE id = $1
	`, id, whitelisted)
	if err != nil {
		return fmt.Errorf("failed to set whitelist for user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// TouchUserSync records the completion timestamp of a tenant sync. Only
// customer and order syncs are tracked on the user row.
func (s *Store) TouchUserSync(ctx context.Context, userID string, kind types.SyncKind, ts int64) error {
	var column string
	switch kind {
	case types.SyncCustomers:
		column = "last_customer_sync"
	case types.SyncOrders:
		column = "last_order_sync"
	default:
		return nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents.users SET `+column+` = $2 WHERE id = $1
	`, userID, ts)
	if err != nil {
		return fmt.Errorf("failed to touch %s for user %s: %w", column, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
