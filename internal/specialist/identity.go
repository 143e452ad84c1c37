package specialist

import (
	"fmt"
	"strings"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/textmatch"
	"github.com/ashita-ai/insureai/internal/tools"
)

// Identity resolves who the caller is and answers profile questions.
type Identity struct{}

func (Identity) Route() model.Route { return model.RouteCustomer }
func (Identity) Tools() []string    { return []string{tools.Lookup} }

// Act looks the caller up by an identifier in the text, answers from the
// cached profile, or asks for an identifier.
func (Identity) Act(turns []model.Turn) (model.SpecialistTurn, error) {
	ex, ok := currentExchange(turns)
	if !ok {
		return model.SpecialistTurn{}, ErrNoUserTurn
	}

	if results := ex.resultsFor(tools.Lookup); len(results) > 0 {
		r := results[len(results)-1].Result
		if r.Status != model.ResultSuccess {
			return failureTurn(model.RouteCustomer, r), nil
		}
		c, _ := r.Payload.(model.Customer)
		return answer(model.RouteCustomer, describeCustomer(c, ex.text)), nil
	}

	args := tools.Args{}
	if ids := textmatch.CustomerIDs(ex.text); len(ids) > 0 {
		args["customer_id"] = ids[0]
	}
	if email, ok := textmatch.Email(ex.text); ok {
		args["email"] = email
	}
	if nrics := textmatch.NRICs(ex.text); len(nrics) > 0 {
		args["nric"] = nrics[0]
	}
	if len(args) > 0 {
		return model.SpecialistTurn{
			Specialist:   model.RouteCustomer,
			ToolRequests: []model.ToolRequest{request(turns, 0, tools.Lookup, args)},
		}, nil
	}

	if c, ok := cachedProfile(ex.before); ok {
		return answer(model.RouteCustomer, describeCustomer(c, ex.text)), nil
	}
	return ask(model.RouteCustomer,
		"I couldn't find your details yet. Could you tell me your customer ID, email or NRIC?",
		model.FieldCustomerID), nil
}

// describeCustomer answers a profile question. A question about one field
// gets that field; anything else gets the profile summary.
func describeCustomer(c model.Customer, question string) string {
	norm := textmatch.Normalize(question)
	switch {
	case textmatch.HasAny(norm, "email"):
		return fmt.Sprintf("The email on your profile is %s.", c.Email)
	case textmatch.HasAny(norm, "phone", "number", "contact number", "mobile"):
		return fmt.Sprintf("The phone number on your profile is %s.", c.Phone)
	case textmatch.HasAny(norm, "address", "live", "postal code"):
		return fmt.Sprintf("Your registered address is %s, Singapore %s.", c.Address, c.PostalCode)
	case textmatch.HasAny(norm, "birthday", "date of birth", "born"):
		return fmt.Sprintf("Your date of birth on record is %s.", c.DateOfBirth)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s (customer ID %s).", c.FullName(), c.CustomerID)
	if c.Email != "" {
		fmt.Fprintf(&b, " Email: %s.", c.Email)
	}
	if c.Phone != "" {
		fmt.Fprintf(&b, " Phone: %s.", c.Phone)
	}
	if c.Address != "" {
		fmt.Fprintf(&b, " Address: %s, Singapore %s.", c.Address, c.PostalCode)
	}
	b.WriteString(" Let me know what you need help with.")
	return b.String()
}
