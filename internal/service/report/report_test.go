package report_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/service/report"
	"github.com/ashita-ai/insureai/internal/storage"
	"github.com/ashita-ai/insureai/internal/testutil"
)

var reportDay = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	store := testutil.SeededSQLite(t)
	ds := testutil.Dataset()
	svc := report.New(store, testutil.TestLogger(), report.WithClock(func() time.Time { return reportDay }))

	r, err := svc.Generate(context.Background(), "CUST00042")
	require.NoError(t, err)

	assert.Equal(t, model.ReportMetadata{Title: report.Title, GenerationDate: "2025-06-01", CustomerID: "CUST00042"}, r.Metadata)

	c := ds.Customers[41]
	assert.Equal(t, c.FullName(), r.CustomerProfile.Name)
	assert.Equal(t, c.NRIC, r.CustomerProfile.NRIC)
	assert.Equal(t, c.Address, r.CustomerProfile.Address.FullAddress)
	assert.Equal(t, c.Region, r.CustomerProfile.Address.Region)

	owned := map[string]model.Policy{}
	wantStatus := report.StatusInactive
	for _, p := range ds.Policies {
		if p.CustomerID == "CUST00042" {
			owned[p.PolicyNumber] = p
			if p.Status == model.PolicyStatusActive {
				wantStatus = report.StatusActive
			}
		}
	}
	require.Len(t, r.PolicyPortfolio, len(owned))
	assert.Equal(t, wantStatus, r.ExecutiveSummary.AccountStatus)

	bills := map[string]int{}
	for _, b := range ds.Bills {
		bills[b.PolicyNumber]++
	}
	for i, p := range r.PolicyPortfolio {
		src, ok := owned[p.PolicyID]
		require.True(t, ok, "portfolio lists only owned policies")
		assert.Equal(t, src.PremiumAmount, p.Premium.Amount)
		assert.Equal(t, "SGD", p.Premium.Currency)
		assert.Len(t, p.BillingHistory, bills[p.PolicyID])
		if i > 0 {
			assert.GreaterOrEqual(t, r.PolicyPortfolio[i-1].StartDate, p.StartDate, "newest policy first")
		}
		for j := 1; j < len(p.BillingHistory); j++ {
			assert.GreaterOrEqual(t, p.BillingHistory[j-1].DueDate, p.BillingHistory[j].DueDate)
		}
		for _, b := range p.BillingHistory {
			assert.Contains(t, []string{"Paid", "Pending", "Overdue"}, b.Status)
		}
	}

	var wantClaims int
	for _, cl := range ds.Claims {
		if _, ok := owned[cl.PolicyNumber]; ok {
			wantClaims++
		}
	}
	assert.Len(t, r.ClaimsHistory, wantClaims)
	assert.NotNil(t, r.ClaimsHistory)

	assert.Contains(t, r.ExecutiveSummary.PortfolioNarrative, c.FullName())
	assert.GreaterOrEqual(t, len(r.ExecutiveSummary.KeyFindings), 3)
	assert.LessOrEqual(t, len(r.ExecutiveSummary.KeyFindings), 5)
}

func TestGenerateUnknownCustomer(t *testing.T) {
	svc := report.New(testutil.SeededSQLite(t), testutil.TestLogger())
	_, err := svc.Generate(context.Background(), "CUST99999")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// fakeReader serves fixed records and can hold every call until released.
type fakeReader struct {
	calls   atomic.Int32
	release chan struct{}

	customer model.Customer
	policies []model.Policy
	bills    []model.BillingEntry
	claims   []model.ClaimSummary
}

func (f *fakeReader) FindCustomer(ctx context.Context, _ model.CustomerLookup) (model.Customer, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return model.Customer{}, ctx.Err()
		}
	}
	return f.customer, nil
}

func (f *fakeReader) ListPolicies(context.Context, string) ([]model.Policy, error) {
	return f.policies, nil
}

func (f *fakeReader) BillingHistory(context.Context, string) ([]model.BillingEntry, error) {
	return f.bills, nil
}

func (f *fakeReader) ListClaims(context.Context, string) ([]model.ClaimSummary, error) {
	return f.claims, nil
}

func TestGenerateDeduplicatesConcurrentRequests(t *testing.T) {
	reader := &fakeReader{release: make(chan struct{}), customer: model.Customer{CustomerID: "CUST00001", FirstName: "Mei"}}
	svc := report.New(reader, testutil.TestLogger())

	var wg sync.WaitGroup
	results := make([]model.Report, 5)
	for i := range results {
		wg.Go(func() {
			r, err := svc.Generate(context.Background(), "CUST00001")
			assert.NoError(t, err)
			results[i] = r
		})
	}
	// Let every caller join the in-flight generation before releasing it.
	require.Eventually(t, func() bool { return reader.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(reader.release)
	wg.Wait()

	assert.Equal(t, int32(1), reader.calls.Load())
	for _, r := range results {
		assert.Equal(t, "CUST00001", r.Metadata.CustomerID)
	}
}

func TestExecutiveSummary(t *testing.T) {
	reader := &fakeReader{
		customer: model.Customer{FirstName: "Mei", LastName: "Lim"},
		policies: []model.Policy{
			{PolicyNumber: "POL000001", PolicyType: model.PolicyTypeMotor, Status: "Active", PremiumAmount: 100, BillingFrequency: "Monthly", StartDate: "2023-01-01"},
			{PolicyNumber: "POL000002", PolicyType: model.PolicyTypeHealth, Status: "Lapsed", PremiumAmount: 900, BillingFrequency: "Annually", StartDate: "2024-01-01"},
		},
		bills: []model.BillingEntry{
			{BillID: "BILL000001", PolicyNumber: "POL000001", DueDate: "2025-01-01", Amount: 100, BillStatus: "paid", PaymentStatus: "Success"},
			{BillID: "BILL000002", PolicyNumber: "POL000001", DueDate: "2025-02-01", Amount: 100, BillStatus: "overdue"},
			{BillID: "BILL000003", PolicyNumber: "POL000002", DueDate: "2025-03-01", Amount: 900, BillStatus: "pending"},
		},
		claims: []model.ClaimSummary{
			{Claim: model.Claim{ClaimID: "CLM000001", PolicyNumber: "POL000001", ClaimDate: "2025-01-10", ClaimAmount: 2500, Status: "Pending"}},
			{Claim: model.Claim{ClaimID: "CLM000002", PolicyNumber: "POL000001", ClaimDate: "2025-03-10", ClaimAmount: 500, Status: "Approved"}},
		},
	}
	svc := report.New(reader, testutil.TestLogger())

	r, err := svc.Generate(context.Background(), "CUST00001")
	require.NoError(t, err)

	sum := r.ExecutiveSummary
	assert.Equal(t, report.StatusActive, sum.AccountStatus)
	assert.Equal(t,
		"Mei Lim holds 2 policies (Health, Motor), 1 of them active, with annualised active premiums of SGD 1,200.00."+
			" The account is active with 2 outstanding bills and 2 claims on record.",
		sum.PortfolioNarrative)
	assert.Equal(t, []string{
		"Total policies: 2 (1 active).",
		"2 of 3 bills outstanding, totalling SGD 1,000.00; 1 overdue.",
		"2 claims totalling SGD 3,000.00, 1 still in progress.",
		"No life coverage on record.",
	}, sum.KeyFindings)

	require.Len(t, r.PolicyPortfolio, 2)
	assert.Equal(t, "POL000002", r.PolicyPortfolio[0].PolicyID, "newest policy first")
	assert.Equal(t, []model.BillSnapshot{
		{BillID: "BILL000002", DueDate: "2025-02-01", Status: "Overdue"},
		{BillID: "BILL000001", DueDate: "2025-01-01", Status: "Paid"},
	}, r.PolicyPortfolio[1].BillingHistory)
	assert.Equal(t, "CLM000002", r.ClaimsHistory[0].ClaimID, "newest claim first")
}

func TestExecutiveSummaryInactive(t *testing.T) {
	reader := &fakeReader{
		customer: model.Customer{FirstName: "Raj"},
		policies: []model.Policy{{PolicyNumber: "POL000009", PolicyType: model.PolicyTypeLife, Status: "Cancelled", PremiumAmount: 50, BillingFrequency: "Quarterly"}},
	}
	r, err := report.New(reader, testutil.TestLogger()).Generate(context.Background(), "CUST00009")
	require.NoError(t, err)
	assert.Equal(t, report.StatusInactive, r.ExecutiveSummary.AccountStatus)
	assert.Equal(t, []string{
		"Total policies: 1 (0 active).",
		"No bills have been issued yet.",
		"No claims on record.",
		"No health coverage on record.",
	}, r.ExecutiveSummary.KeyFindings)
	assert.Empty(t, r.PolicyPortfolio[0].BillingHistory)
	assert.NotNil(t, r.PolicyPortfolio[0].BillingHistory)
}
