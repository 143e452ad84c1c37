package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/insureai/internal/model"
)

// BillingHistory joins a customer's bills with their policies and payments, latest due date first.
func (db *DB) BillingHistory(ctx context.Context, customerID string) ([]model.BillingEntry, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT b.bill_id, p.policy_number, p.policy_type, b.due_date::text, b.amount::float8, b.status,
		       COALESCE(pay.status, ''), COALESCE(pay.payment_date::text, ''), COALESCE(pay.payment_method, '')
		FROM billing b
		JOIN policies p ON b.policy_number = p.policy_number
		LEFT JOIN payments pay ON b.bill_id = pay.bill_id
		WHERE p.customer_id = $1
		ORDER BY b.due_date DESC, b.bill_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("storage: billing history: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BillingEntry, error) {
		var e model.BillingEntry
		err := row.Scan(&e.BillID, &e.PolicyNumber, &e.PolicyType, &e.DueDate, &e.Amount, &e.BillStatus,
			&e.PaymentStatus, &e.PaymentDate, &e.PaymentMethod)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: scan billing history: %w", err)
	}
	return entries, nil
}

// ListBills returns every bill on a customer's policies, latest due date first.
func (db *DB) ListBills(ctx context.Context, customerID string) ([]model.Bill, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT b.bill_id, b.policy_number, b.billing_date::text, b.due_date::text, b.amount::float8, b.status
		FROM billing b
		JOIN policies p ON b.policy_number = p.policy_number
		WHERE p.customer_id = $1
		ORDER BY b.due_date DESC, b.bill_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("storage: list bills: %w", err)
	}
	bills, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Bill, error) {
		var b model.Bill
		err := row.Scan(&b.BillID, &b.PolicyNumber, &b.BillingDate, &b.DueDate, &b.Amount, &b.Status)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: scan bills: %w", err)
	}
	return bills, nil
}
