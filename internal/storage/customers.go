package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/insureai/internal/model"
)

const customerColumns = `customer_id, nric, first_name, last_name, email, phone,
	COALESCE(date_of_birth::text, ''), COALESCE(address, ''), COALESCE(postal_code, ''), COALESCE(region, '')`

func scanCustomer(row pgx.Row) (model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.CustomerID, &c.NRIC, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.DateOfBirth, &c.Address, &c.PostalCode, &c.Region)
	return c, err
}

// FindCustomer returns the first customer matching any of the lookup's identifiers.
func (db *DB) FindCustomer(ctx context.Context, lookup model.CustomerLookup) (model.Customer, error) {
	if lookup.IsEmpty() {
		return model.Customer{}, fmt.Errorf("storage: find customer: no identifier")
	}

	var conds []string
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("customer_id", lookup.CustomerID)
	add("nric", lookup.NRIC)
	add("lower(email)", strings.ToLower(lookup.Email))

	query := `SELECT ` + customerColumns + ` FROM customers WHERE ` +
		strings.Join(conds, " OR ") + ` ORDER BY customer_id LIMIT 1`

	c, err := scanCustomer(db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Customer{}, ErrNotFound
		}
		return model.Customer{}, fmt.Errorf("storage: find customer: %w", err)
	}
	return c, nil
}

// ListUsers returns the login directory: one row per customer holding at least one policy.
func (db *DB) ListUsers(ctx context.Context, limit int) ([]model.UserSummary, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT c.email, c.first_name || ' ' || c.last_name, MIN(p.policy_type), c.customer_id,
		       COALESCE(EXTRACT(YEAR FROM age(c.date_of_birth))::int, 0)
		FROM customers c
		JOIN policies p ON p.customer_id = c.customer_id
		GROUP BY c.customer_id, c.email, c.first_name, c.last_name, c.date_of_birth
		ORDER BY c.customer_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.UserSummary, error) {
		var u model.UserSummary
		err := row.Scan(&u.Email, &u.DisplayName, &u.PolicyType, &u.CustomerID, &u.Age)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: scan users: %w", err)
	}
	return users, nil
}

// CountCustomers returns the number of customer rows. Used to decide whether to seed.
func (db *DB) CountCustomers(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count customers: %w", err)
	}
	return n, nil
}
