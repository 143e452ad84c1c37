package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashita-ai/insureai/internal/authz"
	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/storage"
)

// Store is the data store surface the capabilities need. Both the Postgres
// and the SQLite stores satisfy it.
type Store interface {
	FindCustomer(ctx context.Context, lookup model.CustomerLookup) (model.Customer, error)
	ListPolicies(ctx context.Context, customerID string) ([]model.Policy, error)
	GetPolicy(ctx context.Context, policyNumber string) (model.Policy, error)
	PolicyOwner(ctx context.Context, policyNumber string) (string, error)
	GetVehicle(ctx context.Context, policyNumber string) (model.VehicleDetail, error)
	ListClaims(ctx context.Context, customerID string) ([]model.ClaimSummary, error)
	GetClaim(ctx context.Context, claimID string) (model.Claim, error)
	FileClaim(ctx context.Context, in model.NewClaim, owner model.Principal) (model.Claim, error)
	BillingHistory(ctx context.Context, customerID string) ([]model.BillingEntry, error)
}

// KnowledgeBase answers free-text FAQ queries.
type KnowledgeBase interface {
	Search(ctx context.Context, query string, limit int) ([]model.FAQHit, error)
}

// FAQResultLimit is how many FAQ entries knowledge-search returns.
const FAQResultLimit = 2

// NoFAQMessage is the knowledge-search payload when nothing matches.
const NoFAQMessage = "No relevant FAQ found."

// Capabilities binds the nine tools to a store, an ownership checker and a knowledge base.
type Capabilities struct {
	store   Store
	checker *authz.Checker
	kb      KnowledgeBase
}

// NewCapabilities creates the capability set.
func NewCapabilities(store Store, checker *authz.Checker, kb KnowledgeBase) *Capabilities {
	return &Capabilities{store: store, checker: checker, kb: kb}
}

// Registry returns a registry with every capability registered.
func (c *Capabilities) Registry() *Registry {
	r, err := NewRegistry(c.Specs()...)
	if err != nil {
		// Specs are static; a duplicate is a programming error.
		panic(err)
	}
	return r
}

// Specs returns the tool specs in registration order.
func (c *Capabilities) Specs() []Spec {
	return []Spec{
		{
			Name:        Lookup,
			Description: "Look up a customer profile by customer ID, email or NRIC.",
			Anonymous:   true,
			Fields: []Field{
				{Name: "customer_id", Type: TypeString, Format: FormatCustomerID},
				{Name: "email", Type: TypeString, Format: FormatEmail},
				{Name: "nric", Type: TypeString, Format: FormatNRIC},
			},
			AnyOf: []string{"customer_id", "email", "nric"},
			Run:   c.lookup,
		},
		{
			Name:        ListPolicies,
			Description: "List every policy held by a customer.",
			Fields:      []Field{{Name: "customer_id", Type: TypeString, Required: true, Format: FormatCustomerID}},
			Run:         c.listPolicies,
		},
		{
			Name:        PolicyDetail,
			Description: "Get the details of one policy.",
			Fields:      []Field{{Name: "policy_number", Type: TypeString, Required: true, Format: FormatPolicy}},
			Run:         c.policyDetail,
		},
		{
			Name:        VehicleDetail,
			Description: "Get the insured vehicle of a Motor policy.",
			Fields:      []Field{{Name: "policy_number", Type: TypeString, Required: true, Format: FormatPolicy}},
			Run:         c.vehicleDetail,
		},
		{
			Name:        ListClaims,
			Description: "List every claim filed on a customer's policies.",
			Fields:      []Field{{Name: "customer_id", Type: TypeString, Required: true, Format: FormatCustomerID}},
			Run:         c.listClaims,
		},
		{
			Name:        ClaimStatus,
			Description: "Get the status of one claim.",
			Fields:      []Field{{Name: "claim_id", Type: TypeString, Required: true, Format: FormatClaim}},
			Run:         c.claimStatus,
		},
		{
			Name:        FileClaim,
			Description: "File a new claim against a policy.",
			Fields: []Field{
				{Name: "policy_number", Type: TypeString, Required: true, Format: FormatPolicy},
				{Name: "incident_date", Type: TypeString, Required: true, Format: FormatDate},
				{Name: "amount", Type: TypeNumber, Required: true, Format: FormatPositive},
				{Name: "description", Type: TypeString, Required: true},
			},
			Run: c.fileClaim,
		},
		{
			Name:        BillingHistory,
			Description: "List a customer's bills with their payment status.",
			Fields:      []Field{{Name: "customer_id", Type: TypeString, Required: true, Format: FormatCustomerID}},
			Run:         c.billingHistory,
		},
		{
			Name:        KnowledgeSearch,
			Description: "Search the insurance FAQ knowledge base.",
			Fields:      []Field{{Name: "query", Type: TypeString, Required: true}},
			Run:         c.knowledgeSearch,
		},
	}
}

func deniedOwn(what string, principal model.Principal) model.ToolResult {
	return model.Denied(fmt.Sprintf("Access denied. You can only view your own %s (your ID: %s).", what, principal))
}

func deniedPolicy(policyNumber string, principal model.Principal) string {
	return fmt.Sprintf("Access denied. Policy %s does not belong to you (your ID: %s).", policyNumber, principal)
}

func policyNotFound(policyNumber string) model.ToolResult {
	return model.NotFound(fmt.Sprintf("Policy %s not found.", policyNumber))
}

func (c *Capabilities) lookup(ctx context.Context, principal model.Principal, args Args) (model.ToolResult, error) {
	customer, err := c.store.FindCustomer(ctx, model.CustomerLookup{
		CustomerID: args.String("customer_id"),
		Email:      args.String("email"),
		NRIC:       strings.ToUpper(args.String("nric")),
	})
	if errors.Is(err, storage.ErrNotFound) {
		return model.NotFound("No customer found with the provided details."), nil
	}
	if err != nil {
		return model.ToolResult{}, err
	}
	// Before login there is no principal to compare against.
	if principal != "" {
		if err := authz.CheckCustomer(principal, customer.CustomerID); err != nil {
			return deniedOwn("profile", principal), nil
		}
	}
	return model.Success(customer), nil
}

func (c *Capabilities) listPolicies(ctx context.Context, principal model.Principal, args Args) (model.ToolResult, error) {
	customerID := args.String("customer_id")
	if err := authz.CheckCustomer(principal, customerID); err != nil {
		return deniedOwn("policies", principal), nil
	}
	policies, err := c.store.ListPolicies(ctx, customerID)
	if err != nil {
		return model.ToolResult{}, err
	}
	if policies == nil {
		policies = []model.Policy{}
	}
	return model.Success(policies), nil
}

// checkPolicy maps an ownership error to a result. ok is true when the caller owns the policy.
func (c *Capabilities) checkPolicy(ctx context.Context, principal model.Principal, policyNumber string) (res model.ToolResult, ok bool, err error) {
	err = c.checker.CheckPolicy(ctx, principal, policyNumber)
	switch {
	case err == nil:
		return model.ToolResult{}, true, nil
	case errors.Is(err, storage.ErrNotFound):
		return policyNotFound(policyNumber), false, nil
	case errors.Is(err, authz.ErrForbidden):
		return model.Denied(deniedPolicy(policyNumber, principal)), false, nil
	default:
		return model.ToolResult{}, false, err
	}
}

func (c *Capabilities) policyDetail(ctx context.Context, principal model.Principal, args Args) (model.ToolResult, error) {
	policyNumber := args.String("policy_number")
	if res, ok, err := c.checkPolicy(ctx, principal, policyNumber); !ok {
		return res, err
	}
	policy, err := c.store.GetPolicy(ctx, policyNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return policyNotFound(policyNumber), nil
	}
	if err != nil {
		return model.ToolResult{}, err
	}
	return model.Success(policy), nil
}

func (c *Capabilities) vehicleDetail(ctx context.Context, principal model.Principal, args Args) (model.ToolResult, error) {
	policyNumber := args.String("policy_number")
	if res, ok, err := c.checkPolicy(ctx, principal, policyNumber); !ok {
		return res, err
	}
	vehicle, err := c.store.GetVehicle(ctx, policyNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return model.NotFound(fmt.Sprintf(
			"No vehicle details found for policy %s. This tool only works for Motor policies.", policyNumber)), nil
	}
	if err != nil {
		return model.ToolResult{}, err
	}
	return model.Success(vehicle), nil
}

func (c *Capabilities) listClaims(ctx context.Context, principal model.Principal, args Args) (model.ToolResult, error) {
	customerID := args.String("customer_id")
	if err := authz.CheckCustomer(principal, customerID); err != nil {
		return deniedOwn("claims", principal), nil
	}
	claims, err := c.store.ListClaims(ctx, customerID)
	if err != nil {
		return model.ToolResult{}, err
	}
	if claims == nil {
		claims = []model.ClaimSummary{}
	}
	return model.Success(claims), nil
}

func (c *Capabilities) claimStatus(ctx context.Context, principal model.Principal, args Args) (model.ToolResult, error) {
	claimID := args.String("claim_id")
	claim, err := c.checker.CheckClaim(ctx, principal, claimID)
	switch {
	case err == nil:
		return model.Success(claim), nil
	case errors.Is(err, storage.ErrNotFound):
		return model.NotFound(fmt.Sprintf("Claim %s not found.", claimID)), nil
	case errors.Is(err, authz.ErrForbidden):
		return model.Denied(fmt.Sprintf("Access denied. Claim %s does not belong to you (your ID: %s).", claimID, principal)), nil
	default:
		return model.ToolResult{}, err
	}
}

func (c *Capabilities) fileClaim(ctx context.Context, principal model.Principal, args Args) (model.ToolResult, error) {
	in := model.NewClaim{
		PolicyNumber: args.String("policy_number"),
		IncidentDate: args.String("incident_date"),
		Description:  strings.TrimSpace(args.String("description")),
		Amount:       args.Float("amount"),
	}
	// The store re-checks ownership inside the write transaction.
	claim, err := c.store.FileClaim(ctx, in, principal)
	switch {
	case err == nil:
		return model.Success(claim), nil
	case errors.Is(err, storage.ErrNotFound):
		return policyNotFound(in.PolicyNumber), nil
	case errors.Is(err, storage.ErrNotOwner):
		return model.Denied(deniedPolicy(in.PolicyNumber, principal) + " You cannot file a claim against it."), nil
	default:
		return model.ToolResult{}, err
	}
}

func (c *Capabilities) billingHistory(ctx context.Context, principal model.Principal, args Args) (model.ToolResult, error) {
	customerID := args.String("customer_id")
	if err := authz.CheckCustomer(principal, customerID); err != nil {
		return deniedOwn("billing history", principal), nil
	}
	entries, err := c.store.BillingHistory(ctx, customerID)
	if err != nil {
		return model.ToolResult{}, err
	}
	if entries == nil {
		entries = []model.BillingEntry{}
	}
	return model.Success(entries), nil
}

func (c *Capabilities) knowledgeSearch(ctx context.Context, _ model.Principal, args Args) (model.ToolResult, error) {
	hits, err := c.kb.Search(ctx, args.String("query"), FAQResultLimit)
	if err != nil {
		return model.ToolResult{}, err
	}
	return model.Success(FormatFAQ(hits)), nil
}

// FormatFAQ renders hits as "Question: ...\nAnswer: ..." blocks separated by blank lines.
func FormatFAQ(hits []model.FAQHit) string {
	if len(hits) == 0 {
		return NoFAQMessage
	}
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		blocks = append(blocks, "Question: "+h.Question+"\nAnswer: "+h.Answer)
	}
	return strings.Join(blocks, "\n\n")
}
