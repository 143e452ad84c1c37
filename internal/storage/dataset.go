package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/insureai/internal/seed"
)

// LoadDataset inserts a generated dataset in one transaction. Existing rows with
// the same keys are left untouched so a partial earlier load can be completed.
func (db *DB) LoadDataset(ctx context.Context, ds seed.Dataset) error {
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range ds.Customers {
			batch.Queue(`INSERT INTO customers (customer_id, nric, first_name, last_name, email, phone,
				date_of_birth, address, postal_code, region)
				VALUES ($1, $2, $3, $4, $5, $6, $7::text::date, $8, $9, $10) ON CONFLICT DO NOTHING`,
				c.CustomerID, c.NRIC, c.FirstName, c.LastName, c.Email, c.Phone,
				c.DateOfBirth, c.Address, c.PostalCode, c.Region)
		}
		for _, p := range ds.Policies {
			batch.Queue(`INSERT INTO policies (policy_number, customer_id, policy_type, start_date,
				premium_amount, billing_frequency, status)
				VALUES ($1, $2, $3, $4::text::date, $5, $6, $7) ON CONFLICT DO NOTHING`,
				p.PolicyNumber, p.CustomerID, p.PolicyType, p.StartDate,
				p.PremiumAmount, p.BillingFrequency, p.Status)
		}
		for _, v := range ds.Vehicles {
			batch.Queue(`INSERT INTO auto_policy_details (policy_number, vehicle_vin, vehicle_make,
				vehicle_model, vehicle_year, license_plate, coverage_type, deductible, liability_limit)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT DO NOTHING`,
				v.PolicyNumber, v.VIN, v.Make, v.Model, v.Year, v.LicensePlate, v.CoverageType,
				v.Deductible, v.LiabilityLimit)
		}
		for _, b := range ds.Bills {
			batch.Queue(`INSERT INTO billing (bill_id, policy_number, billing_date, due_date, amount, status)
				VALUES ($1, $2, $3::text::date, $4::text::date, $5, $6) ON CONFLICT DO NOTHING`,
				b.BillID, b.PolicyNumber, b.BillingDate, b.DueDate, b.Amount, b.Status)
		}
		for _, p := range ds.Payments {
			batch.Queue(`INSERT INTO payments (payment_id, bill_id, payment_date, amount, status, payment_method)
				VALUES ($1, $2, $3::text::date, $4, $5, $6) ON CONFLICT DO NOTHING`,
				p.PaymentID, p.BillID, p.PaymentDate, p.Amount, p.Status, p.PaymentMethod)
		}
		for _, c := range ds.Claims {
			batch.Queue(`INSERT INTO claims (claim_id, policy_number, claim_date, claim_amount, status, description)
				VALUES ($1, $2, $3::text::date, $4, $5, $6) ON CONFLICT DO NOTHING`,
				c.ClaimID, c.PolicyNumber, c.ClaimDate, c.ClaimAmount, c.Status, c.Description)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("storage: load dataset: %w", err)
		}
		db.logger.Info("storage: dataset loaded",
			"customers", len(ds.Customers), "policies", len(ds.Policies), "claims", len(ds.Claims))
		return nil
	})
}
