package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

const productColumns = `id, code, name, description, category, subcategory, unit, price, vat,
	ean, image_url, image_local_path, available, deleted_at, hash, last_sync, created_at`

func scanProduct(row interface{ Scan(...any) error }) (*types.Product, error) {
	var p types.Product
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Description, &p.Category, &p.Subcategory, &p.Unit,
		&p.Price, &p.VAT, &p.EAN, &p.ImageURL, &p.ImageLocalPath, &p.Available,
		&p.DeletedAt, &p.Hash, &p.LastSync, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ProductSyncStates returns hash and deletion state for every product,
// soft-deleted rows included, so the pipeline can resurrect reappearances.
func (s *Store) ProductSyncStates(ctx context.Context) (map[string]storage.ProductSyncState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, hash, deleted_at IS NOT NULL FROM shared.products
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load product sync states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]storage.ProductSyncState)
	for rows.Next() {
		var id string
		var st storage.ProductSyncState
		if err := rows.Scan(&id, &st.Hash, &st.Deleted); err != nil {
			return nil, fmt.Errorf("failed to scan product state: %w", err)
		}
		states[id] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product states: %w", err)
	}
	return states, nil
}

// UpsertProduct inserts or rewrites a product. Every upsert clears the
// soft-delete marker; created_at survives across updates.
func (s *Store) UpsertProduct(ctx context.Context, p *types.Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shared.products (
			id, code, name, description, category, subcategory, unit, price, vat,
			ean, image_url, image_local_path, available, deleted_at, hash, last_sync, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULL, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code, name = EXCLUDED.name, description = EXCLUDED.description,
			category = EXCLUDED.category, subcategory = EXCLUDED.subcategory,
			unit = EXCLUDED.unit, price = EXCLUDED.price, vat = EXCLUDED.vat,
			ean = EXCLUDED.ean, image_url = EXCLUDED.image_url,
			image_local_path = EXCLUDED.image_local_path, available = EXCLUDED.available,
			deleted_at = NULL, hash = EXCLUDED.hash, last_sync = EXCLUDED.last_sync
	`, p.ID, p.Code, p.Name, p.Description, p.Category, p.Subcategory, p.Unit, p.Price, p.VAT,
		p.EAN, p.ImageURL, p.ImageLocalPath, p.Available, p.Hash, p.LastSync, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) RefreshProductSync(ctx context.Context, id string, ts int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE shared.products SET last_sync = $2, deleted_at = NULL WHERE id = $1
	`, id, ts)
	if err != nil {
		return fmt.Errorf("failed to refresh product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SoftDeleteProductsNotIn marks live products absent from keep as deleted.
// Already soft-deleted rows are left alone so their original deletion time
// survives repeated syncs.
func (s *Store) SoftDeleteProductsNotIn(ctx context.Context, keep []string, now int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE shared.products SET deleted_at = $1
		WHERE deleted_at IS NULL AND NOT (id = ANY($2))
		RETURNING id
	`, now, keep)
	if err != nil {
		return nil, fmt.Errorf("failed to soft-delete products: %w", err)
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan soft-deleted product: %w", err)
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate soft-deleted products: %w", err)
	}
	sort.Strings(deleted)
	return deleted, nil
}

// DeleteAllProducts empties the catalog. Only the forced product sync uses
// this, immediately before a full re-import.
func (s *Store) DeleteAllProducts(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM shared.products`); err != nil {
		return fmt.Errorf("failed to delete products: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*types.Product, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+productColumns+` FROM shared.products WHERE id = $1
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s *Store) SearchProducts(ctx context.Context, query string, includeDeleted bool) ([]*types.Product, error) {
	sql := `SELECT ` + productColumns + ` FROM shared.products WHERE ($1 = '' OR name ILIKE $2 OR code ILIKE $2 OR description ILIKE $2)`
	if !includeDeleted {
		sql += ` AND deleted_at IS NULL`
	}
	sql += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, sql, query, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	var products []*types.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

func (s *Store) InsertProductChange(ctx context.Context, ch *types.ProductChange) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO shared.product_changes (product_id, change_type, changed_at, sync_session_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, ch.ProductID, string(ch.ChangeType), ch.ChangedAt, ch.SyncSessionID).Scan(&ch.ID)
	if err != nil {
		return fmt.Errorf("failed to insert product change: %w", err)
	}
	return nil
}

func (s *Store) ListProductChanges(ctx context.Context, since int64) ([]*types.ProductChange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, change_type, changed_at, sync_session_id
		FROM shared.product_changes
		WHERE changed_at >= $1
		ORDER BY id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list product changes: %w", err)
	}
	defer rows.Close()

	var changes []*types.ProductChange
	for rows.Next() {
		var ch types.ProductChange
		if err := rows.Scan(&ch.ID, &ch.ProductID, &ch.ChangeType, &ch.ChangedAt, &ch.SyncSessionID); err != nil {
			return nil, fmt.Errorf("failed to scan product change: %w", err)
		}
		changes = append(changes, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product changes: %w", err)
	}
	return changes, nil
}
