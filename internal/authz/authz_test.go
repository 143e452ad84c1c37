package authz_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/insureai/internal/authz"
	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/storage"
)

type fakeStore struct {
	owners       map[string]string
	claims       map[string]model.Claim
	ownerLookups int
}

func (f *fakeStore) PolicyOwner(_ context.Context, policyNumber string) (string, error) {
	f.ownerLookups++
	owner, ok := f.owners[policyNumber]
	if !ok {
		return "", storage.ErrNotFound
	}
	return owner, nil
}

func (f *fakeStore) GetClaim(_ context.Context, claimID string) (model.Claim, error) {
	c, ok := f.claims[claimID]
	if !ok {
		return model.Claim{}, storage.ErrNotFound
	}
	return c, nil
}

func newFake() *fakeStore {
	return &fakeStore{
		owners: map[string]string{"POL000001": "CUST00001", "POL000002": "CUST00002"},
		claims: map[string]model.Claim{
			"CLM000001": {ClaimID: "CLM000001", PolicyNumber: "POL000001"},
			"CLM000009": {ClaimID: "CLM000009", PolicyNumber: "POL404404"},
		},
	}
}

func TestCheckCustomer(t *testing.T) {
	assert.NoError(t, authz.CheckCustomer("CUST00001", "CUST00001"))
	assert.ErrorIs(t, authz.CheckCustomer("CUST00001", "CUST00002"), authz.ErrForbidden)
	assert.ErrorIs(t, authz.CheckCustomer("", ""), authz.ErrForbidden)
}

func TestCheckPolicy(t *testing.T) {
	ctx := context.Background()
	c := authz.NewChecker(newFake(), nil)

	tests := []struct {
		name      string
		principal model.Principal
		policy    string
		want      error
	}{
		{"owner", "CUST00001", "POL000001", nil},
		{"other customer", "CUST00002", "POL000001", authz.ErrForbidden},
		{"missing policy", "CUST00001", "POL999999", storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.CheckPolicy(ctx, tt.principal, tt.policy)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheckClaim(t *testing.T) {
	ctx := context.Background()
	c := authz.NewChecker(newFake(), nil)

	claim, err := c.CheckClaim(ctx, "CUST00001", "CLM000001")
	require.NoError(t, err)
	assert.Equal(t, "POL000001", claim.PolicyNumber)

	_, err = c.CheckClaim(ctx, "CUST00002", "CLM000001")
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = c.CheckClaim(ctx, "CUST00001", "CLM999999")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = c.CheckClaim(ctx, "CUST00001", "CLM000009")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestCheckerUsesCache(t *testing.T) {
	ctx := context.Background()
	store := newFake()
	cache := authz.NewOwnerCache(time.Minute)
	defer cache.Close()
	c := authz.NewChecker(store, cache)

	for range 3 {
		require.NoError(t, c.CheckPolicy(ctx, "CUST00002", "POL000002"))
	}
	assert.Equal(t, 1, store.ownerLookups)
}
