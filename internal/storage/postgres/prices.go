package postgres

import (
	"context"
	"fmt"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

const priceColumns = `id, product_id, item_selection, unit_price, price_valid_from,
	price_valid_to, price_qty_from, price_qty_to, hash, last_sync, created_at`

func scanPrice(row interface{ Scan(...any) error }) (*types.Price, error) {
	var p types.Price
	err := row.Scan(
		&p.ID, &p.ProductID, &p.ItemSelection, &p.UnitPrice, &p.PriceValidFrom,
		&p.PriceValidTo, &p.PriceQtyFrom, &p.PriceQtyTo, &p.Hash, &p.LastSync, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PriceSyncStates returns hash and current unit price keyed by canonical
// price identity. Null item_selection and price_qty_from coerce to "" and
// "0", the same coercion the identity index applies.
func (s *Store) PriceSyncStates(ctx context.Context) (map[storage.PriceKey]storage.PriceSyncState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, COALESCE(item_selection, ''), price_valid_from,
			COALESCE(price_qty_from, '0'), hash, unit_price
		FROM shared.prices
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load price sync states: %w", err)
	}
	defer rows.Close()

	states := make(map[storage.PriceKey]storage.PriceSyncState)
	for rows.Next() {
		var key storage.PriceKey
		var st storage.PriceSyncState
		if err := rows.Scan(&key.ProductID, &key.ItemSelection, &key.ValidFrom,
			&key.QtyFrom, &st.Hash, &st.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan price state: %w", err)
		}
		states[key] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price states: %w", err)
	}
	return states, nil
}

func (s *Store) InsertPrice(ctx context.Context, p *types.Price) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO shared.prices (
			product_id, item_selection, unit_price, price_valid_from,
			price_valid_to, price_qty_from, price_qty_to, hash, last_sync, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, p.ProductID, p.ItemSelection, p.UnitPrice, p.PriceValidFrom,
		p.PriceValidTo, p.PriceQtyFrom, p.PriceQtyTo, p.Hash, p.LastSync, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert price for product %s: %w", p.ProductID, err)
	}
	return nil
}

// UpdatePrice overwrites the non-identity columns of the row matching p's
// canonical identity. Identity columns never change on update.
func (s *Store) UpdatePrice(ctx context.Context, p *types.Price) error {
	key := storage.PriceKeyFor(p)
	tag, err := s.pool.Exec(ctx, `
		UPDATE shared.prices SET
			unit_price = $5, price_valid_to = $6, price_qty_to = $7, hash = $8, last_sync = $9
		WHERE product_id = $1 AND COALESCE(item_selection, '') = $2
			AND price_valid_from = $3 AND COALESCE(price_qty_from, '0') = $4
	`, key.ProductID, key.ItemSelection, key.ValidFrom, key.QtyFrom,
		p.UnitPrice, p.PriceValidTo, p.PriceQtyTo, p.Hash, p.LastSync)
	if err != nil {
		return fmt.Errorf("failed to update price for product %s: %w", p.ProductID, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) RefreshPriceSync(ctx context.Context, key storage.PriceKey, ts int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE shared.prices SET last_sync = $5
		WHERE product_id = $1 AND COALESCE(item_selection, '') = $2
			AND price_valid_from = $3 AND COALESCE(price_qty_from, '0') = $4
	`, key.ProductID, key.ItemSelection, key.ValidFrom, key.QtyFrom, ts)
	if err != nil {
		return fmt.Errorf("failed to refresh price for product %s: %w", key.ProductID, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// NullifyAllPrices blanks every unit price and hash. The blank hash can
// never equal a computed digest, so the next sync rewrites every row.
func (s *Store) NullifyAllPrices(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE shared.prices SET unit_price = NULL, hash = ''
	`); err != nil {
		return fmt.Errorf("failed to nullify prices: %w", err)
	}
	return nil
}

func (s *Store) ListPricesForProduct(ctx context.Context, productID string) ([]*types.Price, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+priceColumns+`
		FROM shared.prices
		WHERE product_id = $1
		ORDER BY price_valid_from
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer rows.Close()

	var prices []*types.Price
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prices: %w", err)
	}
	return prices, nil
}

func (s *Store) InsertPriceHistory(ctx context.Context, e *types.PriceHistoryEntry) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO shared.price_history (
			product_id, variant_id, old_price, new_price, percentage_change,
			change_type, sync_date, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, e.ProductID, e.VariantID, e.OldPrice, e.NewPrice, e.PercentageChange,
		string(e.ChangeType), e.SyncDate, e.Source).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert price history: %w", err)
	}
	return nil
}

func (s *Store) ListPriceHistory(ctx context.Context, since int64) ([]*types.PriceHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, variant_id, old_price, new_price, percentage_change,
			change_type, sync_date, source
		FROM shared.price_history
		WHERE sync_date >= $1
		ORDER BY id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	defer rows.Close()

	var entries []*types.PriceHistoryEntry
	for rows.Next() {
		var e types.PriceHistoryEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.VariantID, &e.OldPrice, &e.NewPrice,
			&e.PercentageChange, &e.ChangeType, &e.SyncDate, &e.Source); err != nil {
			return nil, fmt.Errorf("failed to scan price history entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price history: %w", err)
	}
	return entries, nil
}
