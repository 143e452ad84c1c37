package specialist

import (
	"fmt"
	"strings"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/textmatch"
	"github.com/ashita-ai/insureai/internal/tools"
)

var vehicleCues = []string{
	"vin", "vehicle", "car", "make", "model", "plate", "license plate", "licence plate",
	"registration", "chassis",
}

// Policy answers questions about the caller's policies and insured vehicles.
type Policy struct{}

func (Policy) Route() model.Route { return model.RoutePolicy }
func (Policy) Tools() []string {
	return []string{tools.ListPolicies, tools.PolicyDetail, tools.VehicleDetail}
}

// Act requests policy or vehicle details for named policies; otherwise it
// lists the caller's policies and, for a vehicle question, chains
// vehicle-detail over every Motor policy.
func (Policy) Act(turns []model.Turn) (model.SpecialistTurn, error) {
	ex, ok := currentExchange(turns)
	if !ok {
		return model.SpecialistTurn{}, ErrNoUserTurn
	}
	norm := textmatch.Normalize(ex.text)
	vehicleQ := textmatch.HasAny(norm, vehicleCues...)

	if len(ex.results) == 0 {
		if numbers := textmatch.PolicyNumbers(ex.text); len(numbers) > 0 {
			tool := tools.PolicyDetail
			if vehicleQ {
				tool = tools.VehicleDetail
			}
			reqs := make([]model.ToolRequest, 0, len(numbers))
			for i, n := range numbers {
				reqs = append(reqs, request(turns, i, tool, tools.Args{"policy_number": n}))
			}
			return model.SpecialistTurn{Specialist: model.RoutePolicy, ToolRequests: reqs}, nil
		}
		cid := customerID(turns)
		if cid == "" {
			return ask(model.RoutePolicy,
				"Which policy are you asking about? Please give me the policy number (for example POL000123).",
				model.FieldPolicyNumber), nil
		}
		return model.SpecialistTurn{
			Specialist:   model.RoutePolicy,
			ToolRequests: []model.ToolRequest{request(turns, 0, tools.ListPolicies, tools.Args{"customer_id": cid})},
		}, nil
	}

	if vehicles := ex.resultsFor(tools.VehicleDetail); len(vehicles) > 0 {
		return answer(model.RoutePolicy, describeVehicles(vehicles, norm)), nil
	}
	if details := ex.resultsFor(tools.PolicyDetail); len(details) > 0 {
		return answer(model.RoutePolicy, describePolicyDetails(details, norm)), nil
	}

	lists := ex.resultsFor(tools.ListPolicies)
	if len(lists) == 0 {
		return answer(model.RoutePolicy, apologyText), nil
	}
	r := lists[len(lists)-1].Result
	if r.Status != model.ResultSuccess {
		return failureTurn(model.RoutePolicy, r), nil
	}
	policies, _ := r.Payload.([]model.Policy)
	if !vehicleQ {
		return answer(model.RoutePolicy, summarizePolicies(policies)), nil
	}

	var reqs []model.ToolRequest
	for _, p := range policies {
		if p.PolicyType == model.PolicyTypeMotor {
			reqs = append(reqs, request(turns, len(reqs), tools.VehicleDetail, tools.Args{"policy_number": p.PolicyNumber}))
		}
	}
	if len(reqs) == 0 {
		return answer(model.RoutePolicy,
			"You don't have a Motor policy with us, so there is no vehicle on record."), nil
	}
	return model.SpecialistTurn{Specialist: model.RoutePolicy, ToolRequests: reqs}, nil
}

func describeVehicles(results []model.ToolResultTurn, norm string) string {
	vinOnly := textmatch.HasAny(norm, "vin", "chassis")
	lines := make([]string, 0, len(results))
	for _, res := range results {
		if res.Result.Status != model.ResultSuccess {
			lines = append(lines, failureText(res.Result))
			continue
		}
		v, _ := res.Result.Payload.(model.VehicleDetail)
		car := fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model)
		if vinOnly {
			lines = append(lines, fmt.Sprintf("The VIN of your %s (policy %s) is %s.", car, v.PolicyNumber, v.VIN))
			continue
		}
		lines = append(lines, fmt.Sprintf(
			"Policy %s covers your %s, plate %s, VIN %s. Coverage: %s, deductible %s, liability limit %s.",
			v.PolicyNumber, car, v.LicensePlate, v.VIN, v.CoverageType, money(v.Deductible), money(v.LiabilityLimit)))
	}
	return strings.Join(lines, "\n")
}

func describePolicyDetails(results []model.ToolResultTurn, norm string) string {
	premiumOnly := textmatch.HasAny(norm, "premium", "how much")
	lines := make([]string, 0, len(results))
	for _, res := range results {
		if res.Result.Status != model.ResultSuccess {
			lines = append(lines, failureText(res.Result))
			continue
		}
		p, _ := res.Result.Payload.(model.Policy)
		if premiumOnly {
			lines = append(lines, fmt.Sprintf("The premium for policy %s is %s, billed %s.",
				p.PolicyNumber, money(p.PremiumAmount), strings.ToLower(p.BillingFrequency)))
			continue
		}
		lines = append(lines, "Policy "+policyLine(p)+".")
	}
	return strings.Join(lines, "\n")
}

func summarizePolicies(policies []model.Policy) string {
	if len(policies) == 0 {
		return "You don't have any policies with us yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %s:", plural(len(policies), "policy", "policies"))
	for _, p := range policies {
		b.WriteString("\n- ")
		b.WriteString(policyLine(p))
	}
	return b.String()
}

func policyLine(p model.Policy) string {
	return fmt.Sprintf("%s: %s, %s, premium %s %s, started %s",
		p.PolicyNumber, p.PolicyType, p.Status, money(p.PremiumAmount),
		strings.ToLower(p.BillingFrequency), p.StartDate)
}
