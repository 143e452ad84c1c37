package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/storage"
	"github.com/ashita-ai/insureai/internal/storage/sqlite"
	"github.com/ashita-ai/insureai/internal/testutil"
)

func firstPolicyOf(t *testing.T, customerID string) model.Policy {
	t.Helper()
	for _, p := range testutil.Dataset().Policies {
		if p.CustomerID == customerID {
			return p
		}
	}
	t.Fatalf("no policy for %s", customerID)
	return model.Policy{}
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "x.db")

	s1, err := sqlite.Open(ctx, path, testutil.TestLogger())
	require.NoError(t, err)
	require.NoError(t, s1.LoadDataset(ctx, testutil.Dataset()))
	require.NoError(t, s1.Close())

	s2, err := sqlite.Open(ctx, path, testutil.TestLogger())
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	// Reloading the same dataset is a no-op.
	require.NoError(t, s2.LoadDataset(ctx, testutil.Dataset()))
	n, err := s2.CountCustomers(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.FixtureCustomers, n)
	require.NoError(t, s2.Ping(ctx))
}

func TestFindCustomer(t *testing.T) {
	store := testutil.SeededSQLite(t)
	ctx := context.Background()
	want := testutil.Dataset().Customers[41]

	tests := []struct {
		name   string
		lookup model.CustomerLookup
	}{
		{"by id", model.CustomerLookup{CustomerID: "CUST00042"}},
		{"by email case-insensitive", model.CustomerLookup{Email: "Customer42@Email.com"}},
		{"by nric", model.CustomerLookup{NRIC: want.NRIC}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindCustomer(ctx, tt.lookup)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := store.FindCustomer(ctx, model.CustomerLookup{CustomerID: "CUST99999"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.FindCustomer(ctx, model.CustomerLookup{})
	assert.Error(t, err)
}

func TestListUsers(t *testing.T) {
	store := testutil.SeededSQLite(t)
	users, err := store.ListUsers(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, users, 10)
	assert.Equal(t, "CUST00001", users[0].CustomerID)
	assert.Equal(t, "customer1@email.com", users[0].Email)
	assert.NotEmpty(t, users[0].PolicyType)
	assert.Greater(t, users[0].Age, 0)
}

func TestPolicyQueries(t *testing.T) {
	store := testutil.SeededSQLite(t)
	ctx := context.Background()
	ds := testutil.Dataset()

	policies, err := store.ListPolicies(ctx, "CUST00042")
	require.NoError(t, err)
	require.NotEmpty(t, policies)
	for i := 1; i < len(policies); i++ {
		assert.GreaterOrEqual(t, policies[i-1].StartDate, policies[i].StartDate)
	}

	got, err := store.GetPolicy(ctx, policies[0].PolicyNumber)
	require.NoError(t, err)
	assert.Equal(t, policies[0], got)

	owner, err := store.PolicyOwner(ctx, policies[0].PolicyNumber)
	require.NoError(t, err)
	assert.Equal(t, "CUST00042", owner)

	_, err = store.PolicyOwner(ctx, "POL999999")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	v, err := store.GetVehicle(ctx, ds.Vehicles[0].PolicyNumber)
	require.NoError(t, err)
	assert.Equal(t, ds.Vehicles[0], v)

	for _, p := range ds.Policies {
		if p.PolicyType != model.PolicyTypeMotor {
			_, err := store.GetVehicle(ctx, p.PolicyNumber)
			assert.ErrorIs(t, err, storage.ErrNotFound)
			break
		}
	}
}

func TestBillingHistory(t *testing.T) {
	store := testutil.SeededSQLite(t)
	ctx := context.Background()

	entries, err := store.BillingHistory(ctx, "CUST00001")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		if e.BillStatus == "paid" {
			assert.Equal(t, model.BillStatusPaid, e.FinalStatus())
		} else {
			assert.True(t, e.Unpaid())
		}
	}

	bills, err := store.ListBills(ctx, "CUST00001")
	require.NoError(t, err)
	assert.Len(t, bills, len(entries))

	none, err := store.BillingHistory(ctx, "CUST99999")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileClaim(t *testing.T) {
	store := testutil.SeededSQLite(t)
	ctx := context.Background()
	pol := firstPolicyOf(t, "CUST00005")
	existing := len(testutil.Dataset().Claims)

	claim, err := store.FileClaim(ctx, model.NewClaim{
		PolicyNumber: pol.PolicyNumber,
		IncidentDate: "2025-05-30",
		Description:  "Cracked windscreen",
		Amount:       450.5,
	}, "CUST00005")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("CLM%06d", existing+1), claim.ClaimID)
	assert.Equal(t, model.ClaimStatusPending, claim.Status)

	got, err := store.GetClaim(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, claim, got)

	claims, err := store.ListClaims(ctx, "CUST00005")
	require.NoError(t, err)
	var found bool
	for _, c := range claims {
		if c.ClaimID == claim.ClaimID {
			found = true
			assert.Equal(t, pol.PolicyType, c.PolicyType)
		}
	}
	assert.True(t, found)

	t.Run("other customer's policy writes nothing", func(t *testing.T) {
		_, err := store.FileClaim(ctx, model.NewClaim{
			PolicyNumber: pol.PolicyNumber, IncidentDate: "2025-05-30", Description: "x", Amount: 1,
		}, "CUST00006")
		assert.ErrorIs(t, err, storage.ErrNotOwner)

		_, err = store.GetClaim(ctx, fmt.Sprintf("CLM%06d", existing+2))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("unknown policy", func(t *testing.T) {
		_, err := store.FileClaim(ctx, model.NewClaim{
			PolicyNumber: "POL999999", IncidentDate: "2025-05-30", Description: "x", Amount: 1,
		}, "CUST00005")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestFileClaimConcurrent(t *testing.T) {
	store := testutil.SeededSQLite(t)
	ctx := context.Background()
	pol := firstPolicyOf(t, "CUST00002")

	const writers = 6
	ids := make([]string, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Go(func() {
			c, err := store.FileClaim(ctx, model.NewClaim{
				PolicyNumber: pol.PolicyNumber, IncidentDate: "2025-05-01", Description: "flood", Amount: 99,
			}, "CUST00002")
			assert.NoError(t, err)
			ids[i] = c.ClaimID
		})
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}
