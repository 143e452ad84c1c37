package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/insureai/internal/model"
)

const policyColumns = `policy_number, customer_id, policy_type, start_date::text,
	premium_amount::float8, billing_frequency, status`

func scanPolicy(row pgx.Row) (model.Policy, error) {
	var p model.Policy
	err := row.Scan(&p.PolicyNumber, &p.CustomerID, &p.PolicyType, &p.StartDate,
		&p.PremiumAmount, &p.BillingFrequency, &p.Status)
	return p, err
}

// ListPolicies returns a customer's policies, newest first.
func (db *DB) ListPolicies(ctx context.Context, customerID string) ([]model.Policy, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE customer_id = $1
		 ORDER BY start_date DESC, policy_number`, customerID)
	if err != nil {
		return nil, fmt.Errorf("storage: list policies: %w", err)
	}
	policies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Policy, error) {
		return scanPolicy(row)
	})
	if err != nil {
		return nil, fmt.Errorf("storage: scan policies: %w", err)
	}
	return policies, nil
}

// GetPolicy returns one policy by number.
func (db *DB) GetPolicy(ctx context.Context, policyNumber string) (model.Policy, error) {
	p, err := scanPolicy(db.pool.QueryRow(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE policy_number = $1`, policyNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Policy{}, ErrNotFound
		}
		return model.Policy{}, fmt.Errorf("storage: get policy: %w", err)
	}
	return p, nil
}

// PolicyOwner returns the customer ID that owns a policy.
func (db *DB) PolicyOwner(ctx context.Context, policyNumber string) (string, error) {
	var owner string
	err := db.pool.QueryRow(ctx,
		`SELECT customer_id FROM policies WHERE policy_number = $1`, policyNumber).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("storage: policy owner: %w", err)
	}
	return owner, nil
}

// GetVehicle returns the vehicle record of a Motor policy.
func (db *DB) GetVehicle(ctx context.Context, policyNumber string) (model.VehicleDetail, error) {
	var v model.VehicleDetail
	err := db.pool.QueryRow(ctx, `
		SELECT policy_number, vehicle_vin, vehicle_make, vehicle_model, vehicle_year,
		       COALESCE(license_plate, ''), COALESCE(coverage_type, ''),
		       COALESCE(deductible, 0)::float8, COALESCE(liability_limit, 0)::float8
		FROM auto_policy_details WHERE policy_number = $1`, policyNumber,
	).Scan(&v.PolicyNumber, &v.VIN, &v.Make, &v.Model, &v.Year,
		&v.LicensePlate, &v.CoverageType, &v.Deductible, &v.LiabilityLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.VehicleDetail{}, ErrNotFound
		}
		return model.VehicleDetail{}, fmt.Errorf("storage: get vehicle: %w", err)
	}
	return v, nil
}
