package specialist

import (
	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/tools"
)

// FAQ answers general insurance questions from the knowledge base.
type FAQ struct{}

func (FAQ) Route() model.Route { return model.RouteFAQ }
func (FAQ) Tools() []string    { return []string{tools.KnowledgeSearch} }

// Act searches the knowledge base with the user's text and relays the prose.
func (FAQ) Act(turns []model.Turn) (model.SpecialistTurn, error) {
	ex, ok := currentExchange(turns)
	if !ok {
		return model.SpecialistTurn{}, ErrNoUserTurn
	}
	results := ex.resultsFor(tools.KnowledgeSearch)
	if len(results) == 0 {
		return model.SpecialistTurn{
			Specialist:   model.RouteFAQ,
			ToolRequests: []model.ToolRequest{request(turns, 0, tools.KnowledgeSearch, tools.Args{"query": ex.text})},
		}, nil
	}
	r := results[len(results)-1].Result
	if r.Status != model.ResultSuccess {
		return failureTurn(model.RouteFAQ, r), nil
	}
	text, _ := r.Payload.(string)
	if text == "" || text == tools.NoFAQMessage {
		return answer(model.RouteFAQ,
			"I couldn't find anything in our FAQ about that. Could you rephrase, or ask about your policies, claims or bills?"), nil
	}
	return answer(model.RouteFAQ, text), nil
}
