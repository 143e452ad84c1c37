package supervisor

import (
	"strings"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/textmatch"
)

// closingKeywords must appear at least once for an utterance to end the conversation.
var closingKeywords = []string{
	"thanks", "thank", "thx", "ty", "bye", "goodbye", "byebye", "cheers",
	"done", "quit", "exit", "that's all", "thats all", "that is all",
}

// closingVocabulary is every word an explicit closing may consist of.
var closingVocabulary = map[string]bool{
	"thanks": true, "thank": true, "thx": true, "ty": true, "you": true, "so": true, "much": true,
	"very": true, "a": true, "lot": true, "bye": true, "goodbye": true, "byebye": true, "cheers": true,
	"done": true, "quit": true, "exit": true, "that's": true, "thats": true, "that": true, "is": true,
	"all": true, "for": true, "now": true, "ok": true, "okay": true, "alright": true, "great": true,
	"perfect": true, "good": true, "nice": true, "have": true, "day": true, "see": true, "ya": true,
	"later": true, "no": true, "nothing": true, "else": true, "i'm": true, "im": true, "the": true,
	"help": true, "your": true, "it": true, "got": true, "awesome": true,
}

// IsClosing reports whether text is an explicit end of conversation: every
// word belongs to the closing vocabulary and at least one closing keyword is present.
func IsClosing(text string) bool {
	words := textmatch.Words(text)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !closingVocabulary[w] {
			return false
		}
	}
	return textmatch.HasAny(textmatch.Normalize(text), closingKeywords...)
}

type weighted struct {
	phrase string
	weight int
}

var (
	customerCues = []weighted{
		{"who am i", 3}, {"profile", 2}, {"my details", 2}, {"personal details", 2}, {"contact details", 2},
		{"my name", 2}, {"my email", 2}, {"my phone", 2}, {"my address", 2}, {"my nric", 2},
		{"date of birth", 2}, {"my account", 1}, {"account details", 2}, {"registered", 1},
	}
	policyCues = []weighted{
		{"policy", 1}, {"policies", 1}, {"coverage", 2}, {"covered", 1}, {"cover", 1}, {"premium", 2},
		{"vin", 3}, {"vehicle", 2}, {"car", 2}, {"make", 1}, {"model", 1}, {"plate", 2}, {"license plate", 1},
		{"licence plate", 1}, {"deductible", 2}, {"excess", 1}, {"liability", 2}, {"motor", 1},
		{"start date", 1}, {"renewal", 1}, {"insured", 1},
	}
	billingCues = []weighted{
		{"bill", 2}, {"bills", 2}, {"billing", 2}, {"invoice", 2}, {"invoices", 2}, {"payment", 2},
		{"payments", 2}, {"pay", 2}, {"paid", 2}, {"owe", 2}, {"outstanding", 2}, {"overdue", 2},
		{"due", 1}, {"balance", 2}, {"giro", 1}, {"paynow", 1}, {"unpaid", 2},
	}
	claimsCues = []weighted{
		{"claim", 3}, {"claims", 3}, {"accident", 2}, {"incident", 2}, {"damage", 1}, {"damaged", 2},
		{"stolen", 2}, {"theft", 2}, {"injury", 2}, {"injured", 2}, {"crash", 2}, {"collision", 2},
		{"payout", 1}, {"reimburse", 1}, {"reimbursement", 1},
	}
	definitionalPrefixes = []string{
		"what is", "what's", "whats", "what are", "what does", "how does", "how do", "how can",
		"can i", "do you", "does", "explain", "define", "tell me about", "why",
		"what happens", "is it", "are there",
	}
	possessives = []string{"my", "mine"}
)

func score(norm string, cues []weighted) int {
	total := 0
	for _, c := range cues {
		if strings.Contains(norm, " "+c.phrase+" ") {
			total += c.weight
		}
	}
	return total
}

// keywordRoute picks a specialist from keyword cues. signal is false when no
// domain cue was found and faq was chosen by default.
func keywordRoute(text string) (route model.Route, signal bool) {
	norm := textmatch.Normalize(text)

	scores := map[model.Route]int{
		model.RouteCustomer: score(norm, customerCues),
		model.RoutePolicy:   score(norm, policyCues),
		model.RouteBilling:  score(norm, billingCues),
		model.RouteClaims:   score(norm, claimsCues),
	}

	// Record identifiers are strong cues and count as a reference to the caller's own data.
	ownRecord := false
	if len(textmatch.ClaimIDs(text)) > 0 {
		scores[model.RouteClaims] += 4
		ownRecord = true
	}
	if len(textmatch.PolicyNumbers(text)) > 0 {
		scores[model.RoutePolicy] += 3
		ownRecord = true
	}
	if _, email := textmatch.Email(text); email || len(textmatch.CustomerIDs(text)) > 0 || len(textmatch.NRICs(text)) > 0 {
		scores[model.RouteCustomer] += 4
		ownRecord = true
	}

	// Ties resolve in this order: the more specific domain wins.
	best, bestScore := model.RouteFAQ, 0
	for _, r := range []model.Route{model.RouteClaims, model.RouteBilling, model.RoutePolicy, model.RouteCustomer} {
		if scores[r] > bestScore {
			best, bestScore = r, scores[r]
		}
	}
	if bestScore == 0 {
		return model.RouteFAQ, false
	}

	possessive := ownRecord || textmatch.HasAny(norm, possessives...)
	if !possessive && isDefinitional(norm) {
		return model.RouteFAQ, true
	}
	return best, true
}

func isDefinitional(norm string) bool {
	for _, p := range definitionalPrefixes {
		if strings.HasPrefix(norm, " "+p+" ") {
			return true
		}
	}
	return false
}
