// Package report builds the read-only customer report served by the HTTP
// API, the MCP server and insurectl. It never touches a conversation.
package report

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/telemetry"
)

// Title is the report_title of every report.
const Title = "Customer Insurance Report"

// Reader is the read side of the store the report needs.
type Reader interface {
	FindCustomer(ctx context.Context, lookup model.CustomerLookup) (model.Customer, error)
	ListPolicies(ctx context.Context, customerID string) ([]model.Policy, error)
	BillingHistory(ctx context.Context, customerID string) ([]model.BillingEntry, error)
	ListClaims(ctx context.Context, customerID string) ([]model.ClaimSummary, error)
}

// Service generates reports. Concurrent requests for one principal share a
// single generation.
type Service struct {
	reader Reader
	logger *slog.Logger
	now    func() time.Time

	group     singleflight.Group
	generated metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for the generation date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a report Service.
func New(reader Reader, logger *slog.Logger, opts ...Option) *Service {
	generated, _ := telemetry.Meter("insureai/report").Int64Counter("insureai.report.generated",
		metric.WithDescription("Reports generated, by outcome"),
	)
	s := &Service{reader: reader, logger: logger, now: time.Now, generated: generated}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Generate builds the report for principal. An unknown principal yields an
// error matching storage.ErrNotFound.
func (s *Service) Generate(ctx context.Context, principal model.Principal) (model.Report, error) {
	id := string(principal)
	// Waiters share the leader's run, so it must outlive the leader's cancellation.
	v, err, shared := s.group.Do(id, func() (any, error) {
		return s.generate(context.WithoutCancel(ctx), id)
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.generated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("shared", shared),
	))
	if err != nil {
		return model.Report{}, err
	}
	return v.(model.Report), nil
}

func (s *Service) generate(ctx context.Context, customerID string) (model.Report, error) {
	var (
		customer model.Customer
		policies []model.Policy
		bills    []model.BillingEntry
		claims   []model.ClaimSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customer, err = s.reader.FindCustomer(gctx, model.CustomerLookup{CustomerID: customerID})
		if err != nil {
			return fmt.Errorf("report: profile: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if policies, err = s.reader.ListPolicies(gctx, customerID); err != nil {
			return fmt.Errorf("report: policies: %w", err)
		}
		if bills, err = s.reader.BillingHistory(gctx, customerID); err != nil {
			return fmt.Errorf("report: billing: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if claims, err = s.reader.ListClaims(gctx, customerID); err != nil {
			return fmt.Errorf("report: claims: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Report{}, err
	}

	portfolio := buildPortfolio(policies, bills)
	history := buildClaims(claims)
	r := model.Report{
		Metadata: model.ReportMetadata{
			Title:          Title,
			GenerationDate: s.now().Format(time.DateOnly),
			CustomerID:     customerID,
		},
		ExecutiveSummary: summarize(customer, policies, bills, claims),
		CustomerProfile: model.CustomerProfile{
			Name:        customer.FullName(),
			NRIC:        customer.NRIC,
			Email:       customer.Email,
			Phone:       customer.Phone,
			DateOfBirth: customer.DateOfBirth,
			Address: model.ProfileAddress{
				FullAddress: customer.Address,
				Region:      customer.Region,
			},
		},
		PolicyPortfolio: portfolio,
		ClaimsHistory:   history,
	}
	s.logger.Info("report: generated", "customer_id", customerID,
		"policies", len(portfolio), "claims", len(history))
	return r, nil
}

// buildPortfolio lists policies newest first, each with its bills newest first.
func buildPortfolio(policies []model.Policy, bills []model.BillingEntry) []model.PortfolioPolicy {
	byPolicy := make(map[string][]model.BillSnapshot)
	sorted := slices.Clone(bills)
	slices.SortStableFunc(sorted, func(a, b model.BillingEntry) int { return cmp.Compare(b.DueDate, a.DueDate) })
	for _, b := range sorted {
		byPolicy[b.PolicyNumber] = append(byPolicy[b.PolicyNumber], model.BillSnapshot{
			BillID:  b.BillID,
			DueDate: b.DueDate,
			Status:  capitalize(b.BillStatus),
		})
	}

	ps := slices.Clone(policies)
	slices.SortStableFunc(ps, func(a, b model.Policy) int { return cmp.Compare(b.StartDate, a.StartDate) })
	out := make([]model.PortfolioPolicy, 0, len(ps))
	for _, p := range ps {
		history := byPolicy[p.PolicyNumber]
		if history == nil {
			history = []model.BillSnapshot{}
		}
		out = append(out, model.PortfolioPolicy{
			PolicyID:  p.PolicyNumber,
			Type:      p.PolicyType,
			Status:    p.Status,
			StartDate: p.StartDate,
			Premium: model.Premium{
				Amount:    p.PremiumAmount,
				Currency:  model.Currency,
				Frequency: p.BillingFrequency,
			},
			BillingHistory: history,
		})
	}
	return out
}

// buildClaims lists claims newest first.
func buildClaims(claims []model.ClaimSummary) []model.ClaimRecord {
	cs := slices.Clone(claims)
	slices.SortStableFunc(cs, func(a, b model.ClaimSummary) int { return cmp.Compare(b.ClaimDate, a.ClaimDate) })
	out := make([]model.ClaimRecord, 0, len(cs))
	for _, c := range cs {
		out = append(out, model.ClaimRecord{
			ClaimID:          c.ClaimID,
			Date:             c.ClaimDate,
			AssociatedPolicy: c.PolicyNumber,
			Amount:           c.ClaimAmount,
			Status:           c.Status,
			Description:      c.Description,
		})
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
