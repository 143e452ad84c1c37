// Package sqlite is the embedded single-file store used for local development,
// the insurectl CLI and unit tests. It implements the same query surface as the
// Postgres store and returns the same storage sentinel errors.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/seed"
	"github.com/ashita-ai/insureai/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	customer_id   TEXT PRIMARY KEY,
	nric          TEXT NOT NULL,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	phone         TEXT NOT NULL,
	date_of_birth TEXT,
	address       TEXT,
	postal_code   TEXT,
	region        TEXT
);

CREATE TABLE IF NOT EXISTS policies (
	policy_number     TEXT PRIMARY KEY,
	customer_id       TEXT NOT NULL REFERENCES customers(customer_id),
	policy_type       TEXT NOT NULL,
	start_date        TEXT NOT NULL,
	premium_amount    REAL NOT NULL,
	billing_frequency TEXT NOT NULL,
	status            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS auto_policy_details (
	policy_number   TEXT PRIMARY KEY REFERENCES policies(policy_number),
	vehicle_vin     TEXT NOT NULL,
	vehicle_make    TEXT NOT NULL,
	vehicle_model   TEXT NOT NULL,
	vehicle_year    INTEGER NOT NULL,
	license_plate   TEXT,
	coverage_type   TEXT,
	deductible      REAL,
	liability_limit REAL
);

CREATE TABLE IF NOT EXISTS billing (
	bill_id       TEXT PRIMARY KEY,
	policy_number TEXT NOT NULL REFERENCES policies(policy_number),
	billing_date  TEXT NOT NULL,
	due_date      TEXT NOT NULL,
	amount        REAL NOT NULL,
	status        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS payments (
	payment_id     TEXT PRIMARY KEY,
	bill_id        TEXT NOT NULL UNIQUE REFERENCES billing(bill_id),
	payment_date   TEXT NOT NULL,
	amount         REAL NOT NULL,
	status         TEXT NOT NULL,
	payment_method TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS claims (
	claim_id      TEXT PRIMARY KEY,
	policy_number TEXT NOT NULL REFERENCES policies(policy_number),
	claim_date    TEXT NOT NULL,
	claim_amount  REAL NOT NULL,
	status        TEXT NOT NULL,
	description   TEXT
);

CREATE INDEX IF NOT EXISTS idx_policies_customer ON policies(customer_id);
CREATE INDEX IF NOT EXISTS idx_billing_policy ON billing(policy_number);
CREATE INDEX IF NOT EXISTS idx_claims_policy ON claims(policy_number);
CREATE INDEX IF NOT EXISTS idx_customers_nric ON customers(nric);
`

// Store is a SQLite-backed customer data store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) a SQLite database at path and applies the schema.
// A single connection is used so writes never contend for the file lock.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("sqlite: %s: %w", what, err)
}

// FindCustomer returns the first customer matching any of the lookup's identifiers.
func (s *Store) FindCustomer(ctx context.Context, lookup model.CustomerLookup) (model.Customer, error) {
	if lookup.IsEmpty() {
		return model.Customer{}, fmt.Errorf("sqlite: find customer: no identifier")
	}
	var conds []string
	var args []any
	if lookup.CustomerID != "" {
		conds, args = append(conds, "customer_id = ?"), append(args, lookup.CustomerID)
	}
	if lookup.NRIC != "" {
		conds, args = append(conds, "nric = ?"), append(args, lookup.NRIC)
	}
	if lookup.Email != "" {
		conds, args = append(conds, "lower(email) = ?"), append(args, strings.ToLower(lookup.Email))
	}

	var c model.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT customer_id, nric, first_name, last_name, email, phone,
		       COALESCE(date_of_birth, ''), COALESCE(address, ''), COALESCE(postal_code, ''), COALESCE(region, '')
		FROM customers WHERE `+strings.Join(conds, " OR ")+` ORDER BY customer_id LIMIT 1`, args...,
	).Scan(&c.CustomerID, &c.NRIC, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.DateOfBirth, &c.Address, &c.PostalCode, &c.Region)
	if err != nil {
		return model.Customer{}, notFound(err, "find customer")
	}
	return c, nil
}

// ListUsers returns the login directory: one row per customer holding at least one policy.
func (s *Store) ListUsers(ctx context.Context, limit int) ([]model.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.email, c.first_name || ' ' || c.last_name, MIN(p.policy_type), c.customer_id,
		       COALESCE(c.date_of_birth, '')
		FROM customers c
		JOIN policies p ON p.customer_id = c.customer_id
		GROUP BY c.customer_id
		ORDER BY c.customer_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	now := s.now()
	var users []model.UserSummary
	for rows.Next() {
		var u model.UserSummary
		var dob string
		if err := rows.Scan(&u.Email, &u.DisplayName, &u.PolicyType, &u.CustomerID, &dob); err != nil {
			return nil, fmt.Errorf("sqlite: scan user: %w", err)
		}
		u.Age = ageAt(dob, now)
		users = append(users, u)
	}
	return users, rows.Err()
}

// ageAt returns whole years between a YYYY-MM-DD birth date and now, or 0 if unparsable.
func ageAt(dob string, now time.Time) int {
	born, err := time.Parse(time.DateOnly, dob)
	if err != nil {
		return 0
	}
	age := now.Year() - born.Year()
	if now.YearDay() < born.YearDay() {
		age--
	}
	return age
}

// CountCustomers returns the number of customer rows.
func (s *Store) CountCustomers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM customers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count customers: %w", err)
	}
	return n, nil
}

const policyColumns = `policy_number, customer_id, policy_type, start_date, premium_amount, billing_frequency, status`

type scanner interface{ Scan(dest ...any) error }

func scanPolicy(row scanner) (model.Policy, error) {
	var p model.Policy
	err := row.Scan(&p.PolicyNumber, &p.CustomerID, &p.PolicyType, &p.StartDate,
		&p.PremiumAmount, &p.BillingFrequency, &p.Status)
	return p, err
}

// ListPolicies returns a customer's policies, newest first.
func (s *Store) ListPolicies(ctx context.Context, customerID string) ([]model.Policy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE customer_id = ? ORDER BY start_date DESC, policy_number`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list policies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var policies []model.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// GetPolicy returns one policy by number.
func (s *Store) GetPolicy(ctx context.Context, policyNumber string) (model.Policy, error) {
	p, err := scanPolicy(s.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE policy_number = ?`, policyNumber))
	if err != nil {
		return model.Policy{}, notFound(err, "get policy")
	}
	return p, nil
}

// PolicyOwner returns the customer ID that owns a policy.
func (s *Store) PolicyOwner(ctx context.Context, policyNumber string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx,
		`SELECT customer_id FROM policies WHERE policy_number = ?`, policyNumber).Scan(&owner)
	if err != nil {
		return "", notFound(err, "policy owner")
	}
	return owner, nil
}

// GetVehicle returns the vehicle record of a Motor policy.
func (s *Store) GetVehicle(ctx context.Context, policyNumber string) (model.VehicleDetail, error) {
	var v model.VehicleDetail
	err := s.db.QueryRowContext(ctx, `
		SELECT policy_number, vehicle_vin, vehicle_make, vehicle_model, vehicle_year,
		       COALESCE(license_plate, ''), COALESCE(coverage_type, ''),
		       COALESCE(deductible, 0), COALESCE(liability_limit, 0)
		FROM auto_policy_details WHERE policy_number = ?`, policyNumber,
	).Scan(&v.PolicyNumber, &v.VIN, &v.Make, &v.Model, &v.Year,
		&v.LicensePlate, &v.CoverageType, &v.Deductible, &v.LiabilityLimit)
	if err != nil {
		return model.VehicleDetail{}, notFound(err, "get vehicle")
	}
	return v, nil
}

// BillingHistory joins a customer's bills with their policies and payments, latest due date first.
func (s *Store) BillingHistory(ctx context.Context, customerID string) ([]model.BillingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.bill_id, p.policy_number, p.policy_type, b.due_date, b.amount, b.status,
		       COALESCE(pay.status, ''), COALESCE(pay.payment_date, ''), COALESCE(pay.payment_method, '')
		FROM billing b
		JOIN policies p ON b.policy_number = p.policy_number
		LEFT JOIN payments pay ON b.bill_id = pay.bill_id
		WHERE p.customer_id = ?
		ORDER BY b.due_date DESC, b.bill_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: billing history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.BillingEntry
	for rows.Next() {
		var e model.BillingEntry
		if err := rows.Scan(&e.BillID, &e.PolicyNumber, &e.PolicyType, &e.DueDate, &e.Amount, &e.BillStatus,
			&e.PaymentStatus, &e.PaymentDate, &e.PaymentMethod); err != nil {
			return nil, fmt.Errorf("sqlite: scan billing entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListBills returns every bill on a customer's policies, latest due date first.
func (s *Store) ListBills(ctx context.Context, customerID string) ([]model.Bill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.bill_id, b.policy_number, b.billing_date, b.due_date, b.amount, b.status
		FROM billing b
		JOIN policies p ON b.policy_number = p.policy_number
		WHERE p.customer_id = ?
		ORDER BY b.due_date DESC, b.bill_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list bills: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bills []model.Bill
	for rows.Next() {
		var b model.Bill
		if err := rows.Scan(&b.BillID, &b.PolicyNumber, &b.BillingDate, &b.DueDate, &b.Amount, &b.Status); err != nil {
			return nil, fmt.Errorf("sqlite: scan bill: %w", err)
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// ListClaims returns every claim on a customer's policies, newest first.
func (s *Store) ListClaims(ctx context.Context, customerID string) ([]model.ClaimSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.claim_id, c.policy_number, c.claim_date, c.claim_amount, c.status,
		       COALESCE(c.description, ''), p.policy_type
		FROM claims c
		JOIN policies p ON c.policy_number = p.policy_number
		WHERE p.customer_id = ?
		ORDER BY c.claim_date DESC, c.claim_id DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list claims: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var claims []model.ClaimSummary
	for rows.Next() {
		var c model.ClaimSummary
		if err := rows.Scan(&c.ClaimID, &c.PolicyNumber, &c.ClaimDate, &c.ClaimAmount, &c.Status,
			&c.Description, &c.PolicyType); err != nil {
			return nil, fmt.Errorf("sqlite: scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// GetClaim returns one claim by ID.
func (s *Store) GetClaim(ctx context.Context, claimID string) (model.Claim, error) {
	var c model.Claim
	err := s.db.QueryRowContext(ctx, `
		SELECT claim_id, policy_number, claim_date, claim_amount, status, COALESCE(description, '')
		FROM claims WHERE claim_id = ?`, claimID,
	).Scan(&c.ClaimID, &c.PolicyNumber, &c.ClaimDate, &c.ClaimAmount, &c.Status, &c.Description)
	if err != nil {
		return model.Claim{}, notFound(err, "get claim")
	}
	return c, nil
}

// FileClaim records a new Pending claim against a policy the principal owns.
// The owner check, ID allocation and insert share one transaction.
func (s *Store) FileClaim(ctx context.Context, in model.NewClaim, owner model.Principal) (model.Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Claim{}, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var policyOwner string
	if err := tx.QueryRowContext(ctx,
		`SELECT customer_id FROM policies WHERE policy_number = ?`, in.PolicyNumber,
	).Scan(&policyOwner); err != nil {
		return model.Claim{}, notFound(err, "check policy owner")
	}
	if policyOwner != string(owner) {
		return model.Claim{}, storage.ErrNotOwner
	}

	var maxSeq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(CAST(substr(claim_id, 4) AS INTEGER)), 0) FROM claims WHERE claim_id LIKE 'CLM%'`,
	).Scan(&maxSeq); err != nil {
		return model.Claim{}, fmt.Errorf("sqlite: next claim id: %w", err)
	}

	filed := model.Claim{
		ClaimID:      fmt.Sprintf("CLM%06d", maxSeq+1),
		PolicyNumber: in.PolicyNumber,
		ClaimDate:    in.IncidentDate,
		ClaimAmount:  in.Amount,
		Status:       model.ClaimStatusPending,
		Description:  in.Description,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO claims (claim_id, policy_number, claim_date, claim_amount, status, description)
		VALUES (?, ?, ?, ?, ?, ?)`,
		filed.ClaimID, filed.PolicyNumber, filed.ClaimDate, filed.ClaimAmount, filed.Status, filed.Description,
	); err != nil {
		return model.Claim{}, fmt.Errorf("sqlite: insert claim: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Claim{}, fmt.Errorf("sqlite: commit claim: %w", err)
	}
	s.logger.Info("sqlite: claim filed", "claim_id", filed.ClaimID, "policy_number", filed.PolicyNumber)
	return filed, nil
}

// LoadDataset inserts a generated dataset in one transaction, skipping rows that already exist.
func (s *Store) LoadDataset(ctx context.Context, ds seed.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := func(query string, rows int, args func(i int) []any) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("sqlite: prepare: %w", err)
		}
		defer func() { _ = stmt.Close() }()
		for i := range rows {
			if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
				return fmt.Errorf("sqlite: load row: %w", err)
			}
		}
		return nil
	}

	steps := []struct {
		query string
		rows  int
		args  func(i int) []any
	}{
		{`INSERT OR IGNORE INTO customers VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, len(ds.Customers), func(i int) []any {
			c := ds.Customers[i]
			return []any{c.CustomerID, c.NRIC, c.FirstName, c.LastName, c.Email, c.Phone, c.DateOfBirth, c.Address, c.PostalCode, c.Region}
		}},
		{`INSERT OR IGNORE INTO policies VALUES (?, ?, ?, ?, ?, ?, ?)`, len(ds.Policies), func(i int) []any {
			p := ds.Policies[i]
			return []any{p.PolicyNumber, p.CustomerID, p.PolicyType, p.StartDate, p.PremiumAmount, p.BillingFrequency, p.Status}
		}},
		{`INSERT OR IGNORE INTO auto_policy_details VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, len(ds.Vehicles), func(i int) []any {
			v := ds.Vehicles[i]
			return []any{v.PolicyNumber, v.VIN, v.Make, v.Model, v.Year, v.LicensePlate, v.CoverageType, v.Deductible, v.LiabilityLimit}
		}},
		{`INSERT OR IGNORE INTO billing VALUES (?, ?, ?, ?, ?, ?)`, len(ds.Bills), func(i int) []any {
			b := ds.Bills[i]
			return []any{b.BillID, b.PolicyNumber, b.BillingDate, b.DueDate, b.Amount, b.Status}
		}},
		{`INSERT OR IGNORE INTO payments VALUES (?, ?, ?, ?, ?, ?)`, len(ds.Payments), func(i int) []any {
			p := ds.Payments[i]
			return []any{p.PaymentID, p.BillID, p.PaymentDate, p.Amount, p.Status, p.PaymentMethod}
		}},
		{`INSERT OR IGNORE INTO claims VALUES (?, ?, ?, ?, ?, ?)`, len(ds.Claims), func(i int) []any {
			c := ds.Claims[i]
			return []any{c.ClaimID, c.PolicyNumber, c.ClaimDate, c.ClaimAmount, c.Status, c.Description}
		}},
	}
	for _, step := range steps {
		if err := insert(step.query, step.rows, step.args); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit dataset: %w", err)
	}
	s.logger.Info("sqlite: dataset loaded",
		"customers", len(ds.Customers), "policies", len(ds.Policies), "claims", len(ds.Claims))
	return nil
}
