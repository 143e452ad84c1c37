package seed_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/seed"
)

var fixedNow = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestGenerate_Deterministic(t *testing.T) {
	a := seed.Generate(seed.Options{Customers: 50, Now: fixedNow})
	b := seed.Generate(seed.Options{Customers: 50, Now: fixedNow})
	assert.Equal(t, a, b)

	c := seed.Generate(seed.Options{Customers: 50, Seed: 7, Now: fixedNow})
	assert.NotEqual(t, a.Customers, c.Customers)
}

func TestGenerate_ShapeAndIdentifiers(t *testing.T) {
	ds := seed.Generate(seed.Options{Customers: 40, Now: fixedNow})

	require.Len(t, ds.Customers, 40)
	require.Len(t, ds.Policies, 60)
	require.Len(t, ds.Claims, 12)

	assert.Equal(t, "CUST00001", ds.Customers[0].CustomerID)
	assert.Equal(t, "customer1@email.com", ds.Customers[0].Email)
	assert.Equal(t, "POL000001", ds.Policies[0].PolicyNumber)
	assert.Equal(t, "CLM000001", ds.Claims[0].ClaimID)

	nric := regexp.MustCompile(`^[STFG]\d{7}[A-Z]$`)
	for _, c := range ds.Customers {
		assert.Regexp(t, nric, c.NRIC)
	}

	owners := map[string]bool{}
	policies := map[string]model.Policy{}
	for _, p := range ds.Policies {
		owners[p.CustomerID] = true
		policies[p.PolicyNumber] = p
	}
	assert.Len(t, owners, 40, "every customer owns at least one policy")

	for _, v := range ds.Vehicles {
		assert.Equal(t, model.PolicyTypeMotor, policies[v.PolicyNumber].PolicyType)
	}

	bills := map[string]model.Bill{}
	for _, b := range ds.Bills {
		_, ok := policies[b.PolicyNumber]
		assert.True(t, ok, "bill %s references unknown policy", b.BillID)
		bills[b.BillID] = b
	}
	for _, p := range ds.Payments {
		assert.Equal(t, "paid", bills[p.BillID].Status)
	}
	for _, c := range ds.Claims {
		_, ok := policies[c.PolicyNumber]
		assert.True(t, ok)
	}
}

func TestNRICCheckLetter(t *testing.T) {
	assert.Equal(t, byte('D'), seed.NRICCheckLetter("S", "1234567"))
	assert.Equal(t, byte('J'), seed.NRICCheckLetter("S", "0000000"))
	assert.Equal(t, byte('X'), seed.NRICCheckLetter("F", "0000000"))
}
