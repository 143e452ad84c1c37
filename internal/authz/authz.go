// Package authz decides whether a principal may see or act on a customer
// record. Every tool capability goes through it before returning data, so the
// chat graph, the report endpoint and the MCP server share one rule set.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/storage"
)

// ErrForbidden is returned when the record exists but belongs to another customer.
var ErrForbidden = errors.New("authz: record belongs to another customer")

// OwnershipStore is the subset of the data store ownership checks need.
type OwnershipStore interface {
	PolicyOwner(ctx context.Context, policyNumber string) (string, error)
	GetClaim(ctx context.Context, claimID string) (model.Claim, error)
}

// Checker resolves record ownership, caching policy owners.
type Checker struct {
	store OwnershipStore
	cache *OwnerCache
}

// NewChecker creates a Checker. cache may be nil to disable caching.
func NewChecker(store OwnershipStore, cache *OwnerCache) *Checker {
	return &Checker{store: store, cache: cache}
}

// CheckCustomer allows a principal to read only its own customer-scoped data.
func CheckCustomer(principal model.Principal, customerID string) error {
	if principal == "" || string(principal) != customerID {
		return ErrForbidden
	}
	return nil
}

// PolicyOwner returns the owning customer ID for a policy, consulting the cache first.
// Returns storage.ErrNotFound when the policy does not exist.
func (c *Checker) PolicyOwner(ctx context.Context, policyNumber string) (string, error) {
	if c.cache != nil {
		if owner, ok := c.cache.Get(policyNumber); ok {
			return owner, nil
		}
	}
	owner, err := c.store.PolicyOwner(ctx, policyNumber)
	if err != nil {
		return "", err
	}
	if c.cache != nil {
		c.cache.Set(policyNumber, owner)
	}
	return owner, nil
}

// CheckPolicy returns nil when principal owns the policy, storage.ErrNotFound
// when it does not exist and ErrForbidden otherwise.
func (c *Checker) CheckPolicy(ctx context.Context, principal model.Principal, policyNumber string) error {
	owner, err := c.PolicyOwner(ctx, policyNumber)
	if err != nil {
		return err
	}
	return CheckCustomer(principal, owner)
}

// CheckClaim resolves claim to policy to customer and returns the claim when
// principal owns it. Error semantics match CheckPolicy.
func (c *Checker) CheckClaim(ctx context.Context, principal model.Principal, claimID string) (model.Claim, error) {
	claim, err := c.store.GetClaim(ctx, claimID)
	if err != nil {
		return model.Claim{}, err
	}
	if err := c.CheckPolicy(ctx, principal, claim.PolicyNumber); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// A claim whose policy vanished is a data integrity fault, not a miss.
			return model.Claim{}, fmt.Errorf("authz: claim %s references missing policy %s", claimID, claim.PolicyNumber)
		}
		return model.Claim{}, err
	}
	return claim, nil
}
