// Package specialist implements the five domain specialists. A specialist
// reads the turn log and either answers, asks the user for more input, or
// requests tool calls; it is re-entered with the tool results appended.
// Specialists never see the session principal: the caller's customer ID is
// recovered from the log (the bootstrap utterance and the identity lookup).
package specialist

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/tools"
)

// ErrNoUserTurn is returned when a specialist is asked to act on a log with no user turn.
var ErrNoUserTurn = errors.New("specialist: no user turn")

// Specialist handles one route.
type Specialist interface {
	Route() model.Route
	Tools() []string
	Act(turns []model.Turn) (model.SpecialistTurn, error)
}

// Set maps each specialist route to its implementation.
type Set map[model.Route]Specialist

// Default returns the five built-in specialists.
func Default() Set {
	s := Set{}
	for _, sp := range []Specialist{Identity{}, Policy{}, Claims{}, Billing{}, FAQ{}} {
		s[sp.Route()] = sp
	}
	return s
}

// Allows reports whether sp may call tool.
func Allows(sp Specialist, tool string) bool {
	return slices.Contains(sp.Tools(), tool)
}

const (
	apologyText      = "I'm sorry, something went wrong on our side while looking that up. Please try again in a moment."
	unknownPrincipal = "I couldn't confirm which customer account this conversation belongs to. Please tell me your customer ID so I can look you up."
)

// bootstrapRe matches the session bootstrap utterance "I am CUST00042. Who am I?".
var bootstrapRe = regexp.MustCompile(`(?i)^\s*i\s+am\s+(CUST\d+)\b`)

// BootstrapUtterance is the first user turn of every session.
func BootstrapUtterance(principal model.Principal) string {
	return fmt.Sprintf("I am %s. Who am I?", principal)
}

// exchange describes the current request: the latest user turn and everything after it.
type exchange struct {
	text    string
	before  []model.Turn // turns preceding the user turn
	results []model.ToolResultTurn
}

func currentExchange(turns []model.Turn) (exchange, bool) {
	idx := model.LastUserTurn(turns)
	if idx < 0 {
		return exchange{}, false
	}
	ex := exchange{text: turns[idx].(model.UserTurn).Text, before: turns[:idx]}
	for _, t := range turns[idx+1:] {
		if r, ok := t.(model.ToolResultTurn); ok {
			ex.results = append(ex.results, r)
		}
	}
	return ex, true
}

// resultsFor returns the results of the given tool, in order.
func (ex exchange) resultsFor(tool string) []model.ToolResultTurn {
	var out []model.ToolResultTurn
	for _, r := range ex.results {
		if r.Tool == tool {
			out = append(out, r)
		}
	}
	return out
}

func (ex exchange) called(tool string) bool {
	return len(ex.resultsFor(tool)) > 0
}

// cachedProfile returns the most recent successful lookup in the log.
func cachedProfile(turns []model.Turn) (model.Customer, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		r, ok := turns[i].(model.ToolResultTurn)
		if !ok || r.Tool != tools.Lookup || r.Result.Status != model.ResultSuccess {
			continue
		}
		if c, ok := r.Result.Payload.(model.Customer); ok {
			return c, true
		}
	}
	return model.Customer{}, false
}

// customerID recovers the caller's customer ID from the log: a cached
// identity lookup wins, then the bootstrap utterance.
func customerID(turns []model.Turn) string {
	if c, ok := cachedProfile(turns); ok {
		return c.CustomerID
	}
	for _, t := range turns {
		if u, ok := t.(model.UserTurn); ok {
			if m := bootstrapRe.FindStringSubmatch(u.Text); m != nil {
				return m[1]
			}
			return ""
		}
	}
	return ""
}

// previousSpecialistTurn returns the latest specialist turn in turns.
func previousSpecialistTurn(turns []model.Turn) (model.SpecialistTurn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if st, ok := turns[i].(model.SpecialistTurn); ok {
			return st, true
		}
	}
	return model.SpecialistTurn{}, false
}

// callID derives a request ID that is unique within the log.
func callID(turns []model.Turn, i int) string {
	return fmt.Sprintf("call-%d-%d", len(turns), i)
}

func request(turns []model.Turn, i int, tool string, args tools.Args) model.ToolRequest {
	return model.ToolRequest{ID: callID(turns, i), Tool: tool, Args: args}
}

// fieldLabels names tool arguments the way a customer would.
var fieldLabels = map[string]string{
	model.FieldCustomerID:   "customer ID (for example CUST00042)",
	model.FieldPolicyNumber: "policy number (for example POL000123)",
	model.FieldClaimID:      "claim ID (for example CLM000123)",
	model.FieldIncidentDate: "incident date (in YYYY-MM-DD format)",
	model.FieldAmount:       "amount (a number greater than zero)",
	model.FieldDescription:  "description",
}

// invalidField reports whether r is a validation error the user can fix by
// giving field again.
func invalidField(r model.ToolResult) (string, bool) {
	if r.Status != model.ResultError || r.Code != model.CodeValidation {
		return "", false
	}
	_, ok := fieldLabels[r.Field]
	return r.Field, ok
}

func invalidFieldText(field string) string {
	return "The " + fieldLabels[field] + " you gave doesn't look right."
}

// failureText folds a non-success result into reply text. Validation
// messages are never relayed verbatim.
func failureText(r model.ToolResult) string {
	switch r.Status {
	case model.ResultNotFound, model.ResultDenied:
		return r.Message
	case model.ResultError:
		if field, ok := invalidField(r); ok {
			return invalidFieldText(field) + " Could you check it and send it again?"
		}
		if r.Code == model.CodeValidation {
			return "Some of the details you gave don't look right. Could you check them and try again?"
		}
	}
	return apologyText
}

// failureTurn answers with failureText, asking for the offending field again
// when the user can correct it.
func failureTurn(route model.Route, r model.ToolResult) model.SpecialistTurn {
	if field, ok := invalidField(r); ok {
		return ask(route, failureText(r), field)
	}
	return answer(route, failureText(r))
}

func answer(route model.Route, text string) model.SpecialistTurn {
	return model.SpecialistTurn{Specialist: route, Text: text}
}

func ask(route model.Route, text string, fields ...string) model.SpecialistTurn {
	return model.SpecialistTurn{Specialist: route, Text: text, Awaiting: fields}
}
