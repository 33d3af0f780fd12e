package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

// customerColumns is the single place the column order is defined; scans
// and argument builders must stay aligned with it.
const customerColumns = `customer_profile, user_id, company_name, vat_number, fiscal_code,
	address, city, province, postal_code, country, phone, mobile, fax, email, pec,
	website, contact_person, customer_type, sales_zone, price_list, discount_class,
	payment_code, payment_description, iban, sdi_code, delivery_address, delivery_city,
	delivery_province, delivery_postal_code, notes, latitude, longitude,
	hash, last_sync, created_at`

func customerArgs(c *types.Customer) []any {
	return []any{
		c.CustomerProfile, c.UserID, c.CompanyName, c.VATNumber, c.FiscalCode,
		c.Address, c.City, c.Province, c.PostalCode, c.Country, c.Phone, c.Mobile, c.Fax, c.Email, c.PEC,
		c.Website, c.ContactPerson, c.CustomerType, c.SalesZone, c.PriceList, c.DiscountClass,
		c.PaymentCode, c.PaymentDescription, c.IBAN, c.SDICode, c.DeliveryAddress, c.DeliveryCity,
		c.DeliveryProvince, c.DeliveryPostalCode, c.Notes, c.Latitude, c.Longitude,
		c.Hash, c.LastSync, c.CreatedAt,
	}
}

func scanCustomer(row interface{ Scan(...any) error }) (*types.Customer, error) {
	var c types.Customer
	err := row.Scan(
		&c.CustomerProfile, &c.UserID, &c.CompanyName, &c.VATNumber, &c.FiscalCode,
		&c.Address, &c.City, &c.Province, &c.PostalCode, &c.Country, &c.Phone, &c.Mobile, &c.Fax, &c.Email, &c.PEC,
		&c.Website, &c.ContactPerson, &c.CustomerType, &c.SalesZone, &c.PriceList, &c.DiscountClass,
		&c.PaymentCode, &c.PaymentDescription, &c.IBAN, &c.SDICode, &c.DeliveryAddress, &c.DeliveryCity,
		&c.DeliveryProvince, &c.DeliveryPostalCode, &c.Notes, &c.Latitude, &c.Longitude,
		&c.Hash, &c.LastSync, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

func (s *Store) CustomerSyncStates(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT customer_profile, hash FROM agents.customers WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer sync states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]string)
	for rows.Next() {
		var profile, hash string
		if err := rows.Scan(&profile, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan customer state: %w", err)
		}
		states[profile] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customer states: %w", err)
	}
	return states, nil
}

func (s *Store) InsertCustomer(ctx context.Context, c *types.Customer) error {
	args := customerArgs(c)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents.customers (`+customerColumns+`)
		VALUES (`+placeholders(len(args))+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to insert customer %s: %w", c.CustomerProfile, err)
	}
	return nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c *types.Customer) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents.customers SET
			company_name = $3, vat_number = $4, fiscal_code = $5, address = $6,
			city = $7, province = $8, postal_code = $9, country = $10, phone = $11,
			mobile = $12, fax = $13, email = $14, pec = $15, website = $16,
			contact_person = $17, customer_type = $18, sales_zone = $19,
			price_list = $20, discount_class = $21, payment_code = $22,
			payment_description = $23, iban = $24, sdi_code = $25,
			delivery_address = $26, delivery_city = $27, delivery_province = $28,
			delivery_postal_code = $29, notes = $30, latitude = $31, longitude = $32,
			hash = $33, last_sync = $34
		WHERE customer_profile = $1 AND user_id = $2
	`, c.CustomerProfile, c.UserID, c.CompanyName, c.VATNumber, c.FiscalCode,
		c.Address, c.City, c.Province, c.PostalCode, c.Country, c.Phone,
		c.Mobile, c.Fax, c.Email, c.PEC, c.Website,
		c.ContactPerson, c.CustomerType, c.SalesZone,
		c.PriceList, c.DiscountClass, c.PaymentCode,
		c.PaymentDescription, c.IBAN, c.SDICode,
		c.DeliveryAddress, c.DeliveryCity, c.DeliveryProvince,
		c.DeliveryPostalCode, c.Notes, c.Latitude, c.Longitude,
		c.Hash, c.LastSync)
	if err != nil {
		return fmt.Errorf("failed to update customer %s: %w", c.CustomerProfile, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) RefreshCustomerSync(ctx context.Context, profile, userID string, ts int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents.customers SET last_sync = $3
		WHERE customer_profile = $1 AND user_id = $2
	`, profile, userID, ts)
	if err != nil {
		return fmt.Errorf("failed to refresh customer %s: %w", profile, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteCustomersNotIn prunes every customer of the user whose profile is
// absent from keep, in a single statement. Customers are roots: no cascade.
func (s *Store) DeleteCustomersNotIn(ctx context.Context, userID string, keep []string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM agents.customers
		WHERE user_id = $1 AND NOT (customer_profile = ANY($2))
		RETURNING customer_profile
	`, userID, keep)
	if err != nil {
		return nil, fmt.Errorf("failed to prune customers: %w", err)
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var profile string
		if err := rows.Scan(&profile); err != nil {
			return nil, fmt.Errorf("failed to scan pruned customer: %w", err)
		}
		deleted = append(deleted, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pruned customers: %w", err)
	}
	sort.Strings(deleted)
	return deleted, nil
}

func (s *Store) GetCustomer(ctx context.Context, profile, userID string) (*types.Customer, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM agents.customers
		WHERE customer_profile = $1 AND user_id = $2
	`, profile, userID)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context, userID string, filter types.CustomerFilter) ([]*types.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM agents.customers WHERE user_id = $1`
	args := []any{userID}

	if filter.City != "" {
		args = append(args, filter.City)
		query += fmt.Sprintf(` AND city ILIKE $%d`, len(args))
	}
	if filter.Province != "" {
		args = append(args, filter.Province)
		query += fmt.Sprintf(` AND province ILIKE $%d`, len(args))
	}
	if filter.SalesZone != "" {
		args = append(args, filter.SalesZone)
		query += fmt.Sprintf(` AND sales_zone ILIKE $%d`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND (company_name ILIKE $%d OR customer_profile ILIKE $%d OR city ILIKE $%d)`,
			len(args), len(args), len(args))
	}
	query += ` ORDER BY company_name`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []*types.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customers: %w", err)
	}
	return customers, nil
}
