package specialist

import (
	"fmt"
	"strings"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/textmatch"
	"github.com/ashita-ai/insureai/internal/tools"
)

// PaymentHandoff is the reply when the caller wants to pay an unpaid bill.
// Payments are never taken in chat.
const PaymentHandoff = "I will connect you to a secure human agent for payment."

// paymentCues express an intent to pay now. Questions about past payments
// ("did I pay", "have I paid") carry none of them and get the bill summary.
var paymentCues = []string{
	"want to pay", "wanna pay", "like to pay", "need to pay now", "ready to pay", "let me pay",
	"make a payment", "make payment", "pay now", "pay it now", "pay my bill now", "paynow",
	"how can i pay", "how do i pay", "where can i pay", "can i pay",
	"want to settle", "like to settle", "settle my bill now",
}

// maxBillLines caps how many bills a summary lists.
const maxBillLines = 10

// Billing reports bills and payment state.
type Billing struct{}

func (Billing) Route() model.Route { return model.RouteBilling }
func (Billing) Tools() []string    { return []string{tools.BillingHistory} }

// Act fetches the billing history and summarizes it, handing payment
// requests over to a human agent.
func (Billing) Act(turns []model.Turn) (model.SpecialistTurn, error) {
	ex, ok := currentExchange(turns)
	if !ok {
		return model.SpecialistTurn{}, ErrNoUserTurn
	}

	results := ex.resultsFor(tools.BillingHistory)
	if len(results) == 0 {
		cid := customerID(turns)
		if cid == "" {
			return answer(model.RouteBilling, unknownPrincipal), nil
		}
		return model.SpecialistTurn{
			Specialist:   model.RouteBilling,
			ToolRequests: []model.ToolRequest{request(turns, 0, tools.BillingHistory, tools.Args{"customer_id": cid})},
		}, nil
	}

	r := results[len(results)-1].Result
	if r.Status != model.ResultSuccess {
		return failureTurn(model.RouteBilling, r), nil
	}
	entries, _ := r.Payload.([]model.BillingEntry)

	var unpaid []model.BillingEntry
	for _, e := range entries {
		if e.Unpaid() {
			unpaid = append(unpaid, e)
		}
	}
	if textmatch.HasAny(textmatch.Normalize(ex.text), paymentCues...) {
		if len(unpaid) > 0 {
			return answer(model.RouteBilling, PaymentHandoff), nil
		}
		return answer(model.RouteBilling, "You have no outstanding bills, so there is nothing to pay right now."), nil
	}
	return answer(model.RouteBilling, summarizeBills(entries, unpaid)), nil
}

func summarizeBills(entries, unpaid []model.BillingEntry) string {
	if len(entries) == 0 {
		return "You don't have any bills on record."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %s on record.", plural(len(entries), "bill", "bills"))
	if len(unpaid) == 0 {
		b.WriteString(" All of them are paid.")
	} else {
		total := 0.0
		for _, e := range unpaid {
			total += e.Amount
		}
		fmt.Fprintf(&b, " %s outstanding, totalling %s.", plural(len(unpaid), "bill is", "bills are"), money(total))
	}
	for i, e := range entries {
		if i == maxBillLines {
			fmt.Fprintf(&b, "\n... and %d more.", len(entries)-maxBillLines)
			break
		}
		fmt.Fprintf(&b, "\n- %s (%s %s): %s due %s, %s", e.BillID, e.PolicyType, e.PolicyNumber, money(e.Amount), e.DueDate, e.FinalStatus())
	}
	return b.String()
}
