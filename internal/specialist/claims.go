package specialist

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/textmatch"
	"github.com/ashita-ai/insureai/internal/tools"
)

var filingCues = []string{
	"file", "filing", "lodge", "submit", "make a claim", "new claim", "start a claim",
	"open a claim", "raise a claim", "report an accident", "report a claim", "want to claim",
	"put in a claim",
}

// filingPrompts is asked, in order, for each field a claim still needs.
var filingPrompts = []struct {
	field  string
	prompt string
}{
	{model.FieldPolicyNumber, "Which policy is this claim for? Please give me the policy number, for example POL000123."},
	{model.FieldIncidentDate, "On what date did the incident happen? Please use the YYYY-MM-DD format."},
	{model.FieldAmount, "How much are you claiming, in SGD?"},
	{model.FieldDescription, "Please describe briefly what happened."},
}

// Claims reports claim status, lists claims and files new ones.
type Claims struct{}

func (Claims) Route() model.Route { return model.RouteClaims }
func (Claims) Tools() []string {
	return []string{tools.ListClaims, tools.ClaimStatus, tools.FileClaim}
}

// Act checks named claims, continues a filing in progress, or lists the
// caller's claims.
func (Claims) Act(turns []model.Turn) (model.SpecialistTurn, error) {
	ex, ok := currentExchange(turns)
	if !ok {
		return model.SpecialistTurn{}, ErrNoUserTurn
	}

	if len(ex.results) > 0 {
		if field, ok := rejectedFilingField(ex); ok {
			return ask(model.RouteClaims, invalidFieldText(field)+" "+filingPrompt(field), field), nil
		}
		if r := ex.results[0].Result; len(ex.results) == 1 && r.Status != model.ResultSuccess {
			return failureTurn(model.RouteClaims, r), nil
		}
		return answer(model.RouteClaims, describeClaimResults(ex)), nil
	}

	if ids := textmatch.ClaimIDs(ex.text); len(ids) > 0 {
		reqs := make([]model.ToolRequest, 0, len(ids))
		for i, id := range ids {
			reqs = append(reqs, request(turns, i, tools.ClaimStatus, tools.Args{"claim_id": id}))
		}
		return model.SpecialistTurn{Specialist: model.RouteClaims, ToolRequests: reqs}, nil
	}

	if filingInProgress(ex) {
		if d, ok := collectDraft(turns); ok {
			for _, p := range filingPrompts {
				if !d.has(p.field) {
					return ask(model.RouteClaims, p.prompt, p.field), nil
				}
			}
			return model.SpecialistTurn{
				Specialist: model.RouteClaims,
				ToolRequests: []model.ToolRequest{request(turns, 0, tools.FileClaim, tools.Args{
					"policy_number": d.policy,
					"incident_date": d.date,
					"amount":        d.amount,
					"description":   d.description,
				})},
			}, nil
		}
	}

	cid := customerID(turns)
	if cid == "" {
		return ask(model.RouteClaims,
			"Which claim are you asking about? Please give me the claim ID, for example CLM000123.",
			model.FieldClaimID), nil
	}
	return model.SpecialistTurn{
		Specialist:   model.RouteClaims,
		ToolRequests: []model.ToolRequest{request(turns, 0, tools.ListClaims, tools.Args{"customer_id": cid})},
	}, nil
}

func filingPrompt(field string) string {
	for _, p := range filingPrompts {
		if p.field == field {
			return p.prompt
		}
	}
	return ""
}

// rejectedFilingField reports the draft field a file-claim call was rejected
// for. The user is asked for it again and the draft stays open.
func rejectedFilingField(ex exchange) (string, bool) {
	for _, res := range ex.results {
		if res.Tool == tools.FileClaim {
			return rejectedField(res)
		}
	}
	return "", false
}

func rejectedField(t model.ToolResultTurn) (string, bool) {
	if t.Tool != tools.FileClaim {
		return "", false
	}
	field, ok := invalidField(t.Result)
	if !ok || filingPrompt(field) == "" {
		return "", false
	}
	return field, true
}

func hasFilingIntent(text string) bool {
	return textmatch.HasAny(textmatch.Normalize(text), filingCues...) && len(textmatch.ClaimIDs(text)) == 0
}

// filingInProgress reports whether the current user turn starts a filing or
// answers a filing question the claims specialist asked last.
func filingInProgress(ex exchange) bool {
	if hasFilingIntent(ex.text) {
		return true
	}
	prev, ok := previousSpecialistTurn(ex.before)
	if !ok || prev.Specialist != model.RouteClaims {
		return false
	}
	for _, p := range filingPrompts {
		if slices.Contains(prev.Awaiting, p.field) {
			return true
		}
	}
	return false
}

func (d *claimDraft) clear(field string) {
	switch field {
	case model.FieldPolicyNumber:
		d.policy = ""
	case model.FieldIncidentDate:
		d.date = ""
	case model.FieldAmount:
		d.amount = 0
	case model.FieldDescription:
		d.description = ""
	}
}

type claimDraft struct {
	policy      string
	date        string
	amount      float64
	description string
}

func (d claimDraft) has(field string) bool {
	switch field {
	case model.FieldPolicyNumber:
		return d.policy != ""
	case model.FieldIncidentDate:
		return d.date != ""
	case model.FieldAmount:
		return d.amount > 0
	case model.FieldDescription:
		return d.description != ""
	}
	return false
}

// collectDraft gathers claim fields from every user turn since the latest
// filing request. A file-claim result closes the draft unless it rejected one
// of the draft's fields, which is then cleared. Later values win.
func collectDraft(turns []model.Turn) (claimDraft, bool) {
	start := -1
	for i, t := range turns {
		switch t := t.(type) {
		case model.UserTurn:
			if hasFilingIntent(t.Text) {
				start = i
			}
		case model.ToolResultTurn:
			if _, rejected := rejectedField(t); t.Tool == tools.FileClaim && !rejected {
				start = -1
			}
		}
	}
	if start < 0 {
		return claimDraft{}, false
	}

	var d claimDraft
	var awaiting []string
	for _, t := range turns[start:] {
		switch t := t.(type) {
		case model.SpecialistTurn:
			awaiting = t.Awaiting
		case model.ToolResultTurn:
			if field, ok := rejectedField(t); ok {
				d.clear(field)
			}
		case model.UserTurn:
			text := strings.TrimSpace(t.Text)
			if numbers := textmatch.PolicyNumbers(text); len(numbers) > 0 {
				d.policy = numbers[0]
			}
			if date, ok := textmatch.Date(text); ok {
				d.date = date
			}
			if amount, ok := textmatch.Amount(text, slices.Contains(awaiting, model.FieldAmount)); ok && amount > 0 {
				d.amount = amount
			}
			if slices.Contains(awaiting, model.FieldDescription) && text != "" && !textmatch.IsQuestion(text) {
				d.description = text
			}
			awaiting = nil
		}
	}
	return d, true
}

func describeClaimResults(ex exchange) string {
	var lines []string
	for _, res := range ex.results {
		r := res.Result
		if r.Status != model.ResultSuccess {
			lines = append(lines, failureText(r))
			continue
		}
		switch res.Tool {
		case tools.FileClaim:
			c, _ := r.Payload.(model.Claim)
			lines = append(lines, fmt.Sprintf(
				"Your claim %s has been filed against policy %s for %s (incident on %s). Its status is %s and our claims team will be in touch.",
				c.ClaimID, c.PolicyNumber, money(c.ClaimAmount), c.ClaimDate, c.Status))
		case tools.ClaimStatus:
			c, _ := r.Payload.(model.Claim)
			lines = append(lines, "Claim "+claimLine(c)+".")
		case tools.ListClaims:
			claims, _ := r.Payload.([]model.ClaimSummary)
			lines = append(lines, summarizeClaims(claims))
		}
	}
	if len(lines) == 0 {
		return apologyText
	}
	return strings.Join(lines, "\n")
}

func summarizeClaims(claims []model.ClaimSummary) string {
	if len(claims) == 0 {
		return "You have no claims on record. If you'd like to file one, just tell me."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %s:", plural(len(claims), "claim", "claims"))
	for _, c := range claims {
		b.WriteString("\n- ")
		b.WriteString(claimLine(c.Claim))
		if c.PolicyType != "" {
			b.WriteString(" (" + c.PolicyType + ")")
		}
	}
	return b.String()
}

func claimLine(c model.Claim) string {
	line := fmt.Sprintf("%s on policy %s: %s, %s, filed %s", c.ClaimID, c.PolicyNumber, c.Status, money(c.ClaimAmount), c.ClaimDate)
	if c.Description != "" {
		line += ", " + c.Description
	}
	return line
}
