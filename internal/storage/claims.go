package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/insureai/internal/model"
)

// claimIDLockKey serializes claim ID allocation across connections.
const claimIDLockKey = 0x1A5C_C1A1

// ListClaims returns every claim on a customer's policies, newest first.
func (db *DB) ListClaims(ctx context.Context, customerID string) ([]model.ClaimSummary, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT c.claim_id, c.policy_number, c.claim_date::text, c.claim_amount::float8, c.status,
		       COALESCE(c.description, ''), p.policy_type
		FROM claims c
		JOIN policies p ON c.policy_number = p.policy_number
		WHERE p.customer_id = $1
		ORDER BY c.claim_date DESC, c.claim_id DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("storage: list claims: %w", err)
	}
	claims, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ClaimSummary, error) {
		var c model.ClaimSummary
		err := row.Scan(&c.ClaimID, &c.PolicyNumber, &c.ClaimDate, &c.ClaimAmount, &c.Status,
			&c.Description, &c.PolicyType)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: scan claims: %w", err)
	}
	return claims, nil
}

// GetClaim returns one claim by ID.
func (db *DB) GetClaim(ctx context.Context, claimID string) (model.Claim, error) {
	var c model.Claim
	err := db.pool.QueryRow(ctx, `
		SELECT claim_id, policy_number, claim_date::text, claim_amount::float8, status, COALESCE(description, '')
		FROM claims WHERE claim_id = $1`, claimID,
	).Scan(&c.ClaimID, &c.PolicyNumber, &c.ClaimDate, &c.ClaimAmount, &c.Status, &c.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Claim{}, ErrNotFound
		}
		return model.Claim{}, fmt.Errorf("storage: get claim: %w", err)
	}
	return c, nil
}

// FileClaim records a new Pending claim against a policy the principal owns.
// Ownership check, ID allocation and insert run in one transaction; on
// ErrNotFound or ErrNotOwner nothing is written.
func (db *DB) FileClaim(ctx context.Context, in model.NewClaim, owner model.Principal) (model.Claim, error) {
	var filed model.Claim
	err := WithRetry(ctx, writeRetries, writeBaseDelay, func() error {
		return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(claimIDLockKey)); err != nil {
				return fmt.Errorf("storage: lock claim ids: %w", err)
			}

			var policyOwner string
			err := tx.QueryRow(ctx,
				`SELECT customer_id FROM policies WHERE policy_number = $1 FOR SHARE`, in.PolicyNumber,
			).Scan(&policyOwner)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("storage: check policy owner: %w", err)
			}
			if policyOwner != string(owner) {
				return ErrNotOwner
			}

			var maxSeq int
			if err := tx.QueryRow(ctx,
				`SELECT COALESCE(MAX(substring(claim_id FROM 4)::int), 0) FROM claims WHERE claim_id ~ '^CLM[0-9]+$'`,
			).Scan(&maxSeq); err != nil {
				return fmt.Errorf("storage: next claim id: %w", err)
			}

			filed = model.Claim{
				ClaimID:      fmt.Sprintf("CLM%06d", maxSeq+1),
				PolicyNumber: in.PolicyNumber,
				ClaimDate:    in.IncidentDate,
				ClaimAmount:  in.Amount,
				Status:       model.ClaimStatusPending,
				Description:  in.Description,
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO claims (claim_id, policy_number, claim_date, claim_amount, status, description)
				VALUES ($1, $2, $3::text::date, $4, $5, $6)`,
				filed.ClaimID, filed.PolicyNumber, filed.ClaimDate, filed.ClaimAmount, filed.Status, filed.Description,
			); err != nil {
				return fmt.Errorf("storage: insert claim: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return model.Claim{}, err
	}
	db.logger.Info("storage: claim filed", "claim_id", filed.ClaimID, "policy_number", filed.PolicyNumber)
	return filed, nil
}
