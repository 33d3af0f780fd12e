package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

const orderColumns = `id, user_id, order_number, customer_profile, customer_name, order_date,
	sales_status, document_status, transfer_status, total_amount, taxable_amount, vat_amount,
	currency, agent_code, warehouse_code,
	ddt_number, ddt_date, ddt_delivered_at, ddt_carrier,
	invoice_number, invoice_date, invoice_amount, invoice_paid,
	current_state, hash, last_sync, created_at`

func scanOrder(row interface{ Scan(...any) error }) (*types.Order, error) {
	var o types.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &o.CustomerProfile, &o.CustomerName, &o.OrderDate,
		&o.SalesStatus, &o.DocumentStatus, &o.TransferStatus, &o.TotalAmount, &o.TaxableAmount, &o.VATAmount,
		&o.Currency, &o.AgentCode, &o.WarehouseCode,
		&o.DDTNumber, &o.DDTDate, &o.DDTDeliveredAt, &o.DDTCarrier,
		&o.InvoiceNumber, &o.InvoiceDate, &o.InvoiceAmount, &o.InvoicePaid,
		&o.CurrentState, &o.Hash, &o.LastSync, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) OrderSyncStates(ctx context.Context, userID string) (map[string]storage.OrderSyncState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, hash, order_number FROM agents.order_records WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order sync states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]storage.OrderSyncState)
	for rows.Next() {
		var id string
		var st storage.OrderSyncState
		if err := rows.Scan(&id, &st.Hash, &st.OrderNumber); err != nil {
			return nil, fmt.Errorf("failed to scan order state: %w", err)
		}
		states[id] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order states: %w", err)
	}
	return states, nil
}

func (s *Store) InsertOrder(ctx context.Context, o *types.Order) error {
	state := o.CurrentState
	if state == "" {
		state = types.DefaultOrderState
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents.order_records (
			id, user_id, order_number, customer_profile, customer_name, order_date,
			sales_status, document_status, transfer_status, total_amount, taxable_amount,
			vat_amount, currency, agent_code, warehouse_code,
			current_state, hash, last_sync, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, o.ID, o.UserID, o.OrderNumber, o.CustomerProfile, o.CustomerName, o.OrderDate,
		o.SalesStatus, o.DocumentStatus, o.TransferStatus, o.TotalAmount, o.TaxableAmount,
		o.VATAmount, o.Currency, o.AgentCode, o.WarehouseCode,
		state, o.Hash, o.LastSync, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
	}
	return nil
}

// UpdateOrder rewrites the snapshot-sourced columns of an order. Lifecycle
// state, DDT and invoice columns, and created_at are owned by other writers
// and are left untouched.
func (s *Store) UpdateOrder(ctx context.Context, o *types.Order) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents.order_records SET
			order_number = $3, customer_profile = $4, customer_name = $5, order_date = $6,
			sales_status = $7, document_status = $8, transfer_status = $9,
			total_amount = $10, taxable_amount = $11, vat_amount = $12,
			currency = $13, agent_code = $14, warehouse_code = $15,
			hash = $16, last_sync = $17
		WHERE id = $1 AND user_id = $2
	`, o.ID, o.UserID, o.OrderNumber, o.CustomerProfile, o.CustomerName, o.OrderDate,
		o.SalesStatus, o.DocumentStatus, o.TransferStatus,
		o.TotalAmount, o.TaxableAmount, o.VATAmount,
		o.Currency, o.AgentCode, o.WarehouseCode,
		o.Hash, o.LastSync)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) RefreshOrderSync(ctx context.Context, id, userID string, ts int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents.order_records SET last_sync = $3 WHERE id = $1 AND user_id = $2
	`, id, userID, ts)
	if err != nil {
		return fmt.Errorf("failed to refresh order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateOrderNumber handles the rename-only case: the upstream changed the
// order number but nothing else, so the row keeps its content and gets the
// new number plus the hash computed over it.
func (s *Store) UpdateOrderNumber(ctx context.Context, id, userID, orderNumber, hash string, ts int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents.order_records SET order_number = $3, hash = $4, last_sync = $5
		WHERE id = $1 AND user_id = $2
	`, id, userID, orderNumber, hash, ts)
	if err != nil {
		return fmt.Errorf("failed to update order number for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteOrdersNotIn prunes orders absent from keep together with their line
// items and state history, all in one transaction. Children go first so a
// failure mid-way never leaves orphan rows behind a deleted order.
func (s *Store) DeleteOrdersNotIn(ctx context.Context, userID string, keep []string) ([]string, error) {
	var deleted []string
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id FROM agents.order_records
			WHERE user_id = $1 AND NOT (id = ANY($2))
			ORDER BY id
		`, userID, keep)
		if err != nil {
			return fmt.Errorf("failed to select orders to prune: %w", err)
		}
		deleted = nil
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan order id: %w", err)
			}
			deleted = append(deleted, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate orders to prune: %w", err)
		}
		if len(deleted) == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			DELETE FROM agents.order_articles WHERE user_id = $1 AND order_id = ANY($2)
		`, userID, deleted); err != nil {
			return fmt.Errorf("failed to delete order articles: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM agents.order_state_history WHERE user_id = $1 AND order_id = ANY($2)
		`, userID, deleted); err != nil {
			return fmt.Errorf("failed to delete order state history: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM agents.order_records WHERE user_id = $1 AND id = ANY($2)
		`, userID, deleted); err != nil {
			return fmt.Errorf("failed to delete orders: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *Store) GetOrder(ctx context.Context, id, userID string) (*types.Order, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM agents.order_records
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	o, err := scanOrder(row)
	if err != nil {
		return nil, notFound(err)
	}
	return o, nil
}

func (s *Store) InsertOrderArticle(ctx context.Context, a *types.OrderArticle) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO agents.order_articles (
			order_id, user_id, line_number, article_code, description, unit,
			quantity, unit_price, discount, vat_rate, total, created_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		WHERE EXISTS (
			SELECT 1 FROM agents.order_records WHERE id = $1 AND user_id = $2
		)
	`, a.OrderID, a.UserID, a.LineNumber, a.ArticleCode, a.Description, a.Unit,
		a.Quantity, a.UnitPrice, a.Discount, a.VATRate, a.Total, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order article: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) GetOrderArticles(ctx context.Context, orderID, userID string) ([]*types.OrderArticle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, user_id, line_number, article_code, description, unit,
			quantity, unit_price, discount, vat_rate, total, created_at
		FROM agents.order_articles
		WHERE order_id = $1 AND user_id = $2
		ORDER BY line_number
	`, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order articles: %w", err)
	}
	defer rows.Close()

	var articles []*types.OrderArticle
	for rows.Next() {
		var a types.OrderArticle
		if err := rows.Scan(&a.OrderID, &a.UserID, &a.LineNumber, &a.ArticleCode,
			&a.Description, &a.Unit, &a.Quantity, &a.UnitPrice, &a.Discount,
			&a.VATRate, &a.Total, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order article: %w", err)
		}
		articles = append(articles, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order articles: %w", err)
	}
	return articles, nil
}

// UpdateOrderState moves an order to newState and appends the transition to
// order_state_history, both inside one transaction so the history never
// disagrees with current_state.
func (s *Store) UpdateOrderState(ctx context.Context, id, userID, newState, actor, notes string, confidence *float64, source string) error {
	now := time.Now().Unix()
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var oldState string
		err := tx.QueryRow(ctx, `
			SELECT current_state FROM agents.order_records
			WHERE id = $1 AND user_id = $2
			FOR UPDATE
		`, id, userID).Scan(&oldState)
		if err != nil {
			return notFound(err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE agents.order_records SET current_state = $3, last_sync = $4
			WHERE id = $1 AND user_id = $2
		`, id, userID, newState, now); err != nil {
			return fmt.Errorf("failed to update order state: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO agents.order_state_history (
				order_id, user_id, old_state, new_state, actor, notes, confidence, source, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, id, userID, oldState, newState, actor, notes, confidence, source, now); err != nil {
			return fmt.Errorf("failed to record state transition: %w", err)
		}
		return nil
	})
}

func (s *Store) GetOrderStateHistory(ctx context.Context, orderID, userID string) ([]*types.OrderStateEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, user_id, old_state, new_state, actor, notes, confidence, source, created_at
		FROM agents.order_state_history
		WHERE order_id = $1 AND user_id = $2
		ORDER BY id
	`, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list state history: %w", err)
	}
	defer rows.Close()

	var entries []*types.OrderStateEntry
	for rows.Next() {
		var e types.OrderStateEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.UserID, &e.OldState, &e.NewState,
			&e.Actor, &e.Notes, &e.Confidence, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan state entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate state history: %w", err)
	}
	return entries, nil
}

func (s *Store) FindOrderIDByNumber(ctx context.Context, userID, orderNumber string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM agents.order_records
		WHERE user_id = $1 AND order_number = $2
		LIMIT 1
	`, userID, orderNumber).Scan(&id)
	if err != nil {
		return "", notFound(err)
	}
	return id, nil
}

func (s *Store) UpdateOrderDDT(ctx context.Context, id, userID string, f types.DDTFields, ts int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents.order_records SET
			ddt_number = $3, ddt_date = $4, ddt_delivered_at = $5, ddt_carrier = $6, last_sync = $7
		WHERE id = $1 AND user_id = $2
	`, id, userID, f.Number, f.Date, f.DeliveredAt, nullIfEmpty(f.Carrier), ts)
	if err != nil {
		return fmt.Errorf("failed to update order DDT fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateOrderInvoice(ctx context.Context, id, userID string, f types.InvoiceFields, ts int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents.order_records SET
			invoice_number = $3, invoice_date = $4, invoice_amount = $5, invoice_paid = $6, last_sync = $7
		WHERE id = $1 AND user_id = $2
	`, id, userID, f.Number, f.Date, f.Amount, f.Paid, ts)
	if err != nil {
		return fmt.Errorf("failed to update order invoice fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) LastSalesForArticle(ctx context.Context, userID, articleCode string, limit int) ([]*types.ArticleSale, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.order_number, o.order_date, o.customer_name,
			a.article_code, a.quantity, a.unit_price, a.discount, a.created_at
		FROM agents.order_articles a
		JOIN agents.order_records o ON o.id = a.order_id AND o.user_id = a.user_id
		WHERE a.user_id = $1 AND a.article_code = $2
		ORDER BY a.created_at DESC
		LIMIT $3
	`, userID, articleCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales for article: %w", err)
	}
	defer rows.Close()

	var sales []*types.ArticleSale
	for rows.Next() {
		var sale types.ArticleSale
		if err := rows.Scan(&sale.OrderID, &sale.OrderNumber, &sale.OrderDate, &sale.CustomerName,
			&sale.ArticleCode, &sale.Quantity, &sale.UnitPrice, &sale.Discount, &sale.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan article sale: %w", err)
		}
		sales = append(sales, &sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate article sales: %w", err)
	}
	return sales, nil
}
