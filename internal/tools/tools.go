// Package tools implements the data capabilities specialists may call and the
// invoker that runs them. Every capability receives the session principal as
// an explicit parameter and enforces record ownership itself; the invoker adds
// argument validation, panic recovery, auditing and telemetry around it.
package tools

import (
	"context"
	"fmt"
	"slices"

	"github.com/ashita-ai/insureai/internal/model"
)

// Tool names.
const (
	Lookup          = "lookup"
	ListPolicies    = "list-policies"
	PolicyDetail    = "policy-detail"
	VehicleDetail   = "vehicle-detail"
	ListClaims      = "list-claims"
	ClaimStatus     = "claim-status"
	FileClaim       = "file-claim"
	BillingHistory  = "billing-history"
	KnowledgeSearch = "knowledge-search"
)

// Args are the named arguments of a tool request.
type Args map[string]any

// String returns the string argument name, or "" if absent or not a string.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Float returns the numeric argument name. Validation guarantees the type.
func (a Args) Float(name string) float64 {
	f, _ := toFloat(a[name])
	return f
}

// Capability executes one tool on behalf of principal. A returned error is an
// unexpected failure; expected outcomes (not found, denied) are results.
type Capability func(ctx context.Context, principal model.Principal, args Args) (model.ToolResult, error)

// Spec describes one registered tool.
type Spec struct {
	Name        string
	Description string
	// Anonymous tools may run before the session is bound to a customer.
	Anonymous bool
	Fields    []Field
	// AnyOf lists fields of which at least one must be present.
	AnyOf []string
	Run   Capability
}

// Registry maps tool names to their specs.
type Registry struct {
	specs map[string]Spec
}

// NewRegistry builds a registry from specs. Duplicate names are an error.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if _, dup := r.specs[s.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", s.Name)
		}
		if s.Run == nil {
			return nil, fmt.Errorf("tools: tool %q has no capability", s.Name)
		}
		r.specs[s.Name] = s
	}
	return r, nil
}

// Get returns the spec for name.
func (r *Registry) Get(name string) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for n := range r.specs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
