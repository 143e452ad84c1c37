// Package supervisor decides which specialist handles the latest user
// utterance, or whether the conversation should finish. Classification is a
// pure function of the turn log: no I/O, no clock, no randomness.
package supervisor

import (
	"errors"
	"strings"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/textmatch"
)

// ErrClassificationFailure is returned when no route can be determined.
var ErrClassificationFailure = errors.New("supervisor: classification failure")

// Classifier maps a turn log to the next route.
type Classifier interface {
	Classify(turns []model.Turn) (model.Route, error)
}

// Rules is the deterministic keyword classifier.
type Rules struct{}

// maxAnswerWords is the longest utterance treated as a bare answer to an open question.
const maxAnswerWords = 8

// Classify routes the latest user turn in turns.
func (Rules) Classify(turns []model.Turn) (model.Route, error) {
	idx := model.LastUserTurn(turns)
	if idx < 0 {
		return "", ErrClassificationFailure
	}
	text := turns[idx].(model.UserTurn).Text
	if strings.TrimSpace(text) == "" {
		return "", ErrClassificationFailure
	}

	if IsClosing(text) {
		return model.RouteFinish, nil
	}

	cued, signal := keywordRoute(text)
	if prev, ok := lastSpecialistTurn(turns[:idx]); ok && prev.IsOpenQuestion() {
		if answersQuestion(prev, text, cued, signal) {
			return prev.Specialist, nil
		}
	}
	return cued, nil
}

// lastSpecialistTurn returns the most recent specialist turn in turns.
func lastSpecialistTurn(turns []model.Turn) (model.SpecialistTurn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if st, ok := turns[i].(model.SpecialistTurn); ok {
			return st, true
		}
	}
	return model.SpecialistTurn{}, false
}

// answersQuestion reports whether text reads as a reply to the open question in prev.
// A reply carrying an awaited value always counts. A short statement counts
// unless it cues a different specialist.
func answersQuestion(prev model.SpecialistTurn, text string, cued model.Route, signal bool) bool {
	if !prev.Specialist.IsSpecialist() {
		return false
	}
	for _, field := range prev.Awaiting {
		if carriesField(field, text) {
			return true
		}
	}
	if textmatch.IsQuestion(text) || len(textmatch.Words(text)) > maxAnswerWords {
		return false
	}
	return !signal || cued == prev.Specialist
}

func carriesField(field, text string) bool {
	switch field {
	case model.FieldCustomerID:
		_, email := textmatch.Email(text)
		return len(textmatch.CustomerIDs(text)) > 0 || len(textmatch.NRICs(text)) > 0 || email
	case model.FieldPolicyNumber:
		return len(textmatch.PolicyNumbers(text)) > 0
	case model.FieldClaimID:
		return len(textmatch.ClaimIDs(text)) > 0
	case model.FieldIncidentDate:
		_, ok := textmatch.Date(text)
		return ok
	case model.FieldAmount:
		_, ok := textmatch.Amount(text, true)
		return ok
	case model.FieldDescription:
		return !textmatch.IsQuestion(text)
	}
	return false
}
