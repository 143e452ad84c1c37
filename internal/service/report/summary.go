package report

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ashita-ai/insureai/internal/model"
)

// Account statuses.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// periodsPerYear annualizes a premium by billing frequency.
var periodsPerYear = map[string]float64{
	"monthly":       12,
	"quarterly":     4,
	"semi-annually": 2,
	"annually":      1,
	"yearly":        1,
}

func annualPremium(p model.Policy) float64 {
	n, ok := periodsPerYear[strings.ToLower(p.BillingFrequency)]
	if !ok {
		n = 1
	}
	return p.PremiumAmount * n
}

// summarize derives the executive summary from the raw records. The account
// is Active when any policy is.
func summarize(c model.Customer, policies []model.Policy, bills []model.BillingEntry, claims []model.ClaimSummary) model.ExecutiveSummary {
	status := StatusInactive
	var active int
	var annual float64
	types := make([]string, 0, len(policies))
	for _, p := range policies {
		if p.Status == model.PolicyStatusActive {
			active++
			status = StatusActive
			annual += annualPremium(p)
		}
		if !slices.Contains(types, p.PolicyType) {
			types = append(types, p.PolicyType)
		}
	}
	slices.Sort(types)

	var unpaid, overdue int
	var owed float64
	for _, b := range bills {
		if b.Unpaid() {
			unpaid++
			owed += b.Amount
			if b.FinalStatus() == "OVERDUE" {
				overdue++
			}
		}
	}

	var pending int
	var claimed float64
	for _, cl := range claims {
		claimed += cl.ClaimAmount
		if cl.Status == model.ClaimStatusPending || cl.Status == "Under Review" {
			pending++
		}
	}

	name := c.FullName()
	if name == "" {
		name = "The customer"
	}
	narrative := fmt.Sprintf("%s holds %s", name, count(len(policies), "policy", "policies"))
	if len(types) > 0 {
		narrative += " (" + strings.Join(types, ", ") + ")"
	}
	narrative += fmt.Sprintf(", %d of them active, with annualised active premiums of %s.", active, model.FormatSGD(annual))
	narrative += fmt.Sprintf(" The account is %s with %s and %s on record.",
		strings.ToLower(status), count(unpaid, "outstanding bill", "outstanding bills"), count(len(claims), "claim", "claims"))

	return model.ExecutiveSummary{
		AccountStatus:      status,
		PortfolioNarrative: narrative,
		KeyFindings:        findings(len(policies), active, types, len(bills), unpaid, overdue, owed, len(claims), pending, claimed),
	}
}

func findings(policies, active int, types []string, bills, unpaid, overdue int, owed float64, claims, pending int, claimed float64) []string {
	out := []string{
		fmt.Sprintf("Total policies: %d (%d active).", policies, active),
	}

	switch {
	case bills == 0:
		out = append(out, "No bills have been issued yet.")
	case unpaid == 0:
		out = append(out, fmt.Sprintf("All %s paid.", count(bills, "bill is", "bills are")))
	default:
		f := fmt.Sprintf("%d of %d bills outstanding, totalling %s", unpaid, bills, model.FormatSGD(owed))
		if overdue > 0 {
			f += fmt.Sprintf("; %d overdue", overdue)
		}
		out = append(out, f+".")
	}

	if claims == 0 {
		out = append(out, "No claims on record.")
	} else {
		out = append(out, fmt.Sprintf("%s totalling %s, %d still in progress.",
			count(claims, "claim", "claims"), model.FormatSGD(claimed), pending))
	}

	var gaps []string
	for _, t := range []string{model.PolicyTypeHealth, model.PolicyTypeLife} {
		if !slices.Contains(types, t) {
			gaps = append(gaps, strings.ToLower(t))
		}
	}
	if len(gaps) > 0 && policies > 0 {
		out = append(out, "No "+strings.Join(gaps, " or ")+" coverage on record.")
	}
	return out
}

func count(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
