// Package textmatch extracts record identifiers, dates and amounts from free
// text and matches keyword phrases on word boundaries. It is shared by the
// supervisor, the specialists and moderation so all three agree on what an
// utterance refers to.
package textmatch

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	customerIDRe = regexp.MustCompile(`(?i)\bCUST\d+\b`)
	policyRe     = regexp.MustCompile(`(?i)\bPOL\d+\b`)
	claimRe      = regexp.MustCompile(`(?i)\bCLM\d+\b`)
	emailRe      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	nricRe       = regexp.MustCompile(`(?i)\b[STFGM]\d{7}[A-Z]\b`)
	dateRe       = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	currencyRe   = regexp.MustCompile(`(?i)(?:S\$|\$|SGD\s?)\s?(\d[\d,]*(?:\.\d{1,2})?)`)
	numberRe     = regexp.MustCompile(`\b\d[\d,]*(?:\.\d{1,2})?\b`)
)

func upperUnique(matches []string) []string {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.ToUpper(m)
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// CustomerIDs returns the distinct customer IDs in s, upper-cased, in order of appearance.
func CustomerIDs(s string) []string { return upperUnique(customerIDRe.FindAllString(s, -1)) }

// PolicyNumbers returns the distinct policy numbers in s.
func PolicyNumbers(s string) []string { return upperUnique(policyRe.FindAllString(s, -1)) }

// ClaimIDs returns the distinct claim IDs in s.
func ClaimIDs(s string) []string { return upperUnique(claimRe.FindAllString(s, -1)) }

// NRICs returns the distinct NRIC/FIN numbers in s.
func NRICs(s string) []string { return upperUnique(nricRe.FindAllString(s, -1)) }

// Email returns the first email address in s.
func Email(s string) (string, bool) {
	m := emailRe.FindString(s)
	return strings.ToLower(m), m != ""
}

// Date returns the first valid YYYY-MM-DD date in s.
func Date(s string) (string, bool) {
	for _, m := range dateRe.FindAllString(s, -1) {
		if _, err := time.Parse(time.DateOnly, m); err == nil {
			return m, true
		}
	}
	return "", false
}

// Amount returns the first currency amount ("$1,200", "SGD 300.50") in s.
// With bare set, a plain number also counts, skipping digits that belong to
// record IDs or dates.
func Amount(s string, bare bool) (float64, bool) {
	if m := currencyRe.FindStringSubmatch(s); m != nil {
		return parseNumber(m[1])
	}
	if !bare {
		return 0, false
	}
	stripped := dateRe.ReplaceAllString(s, " ")
	for _, re := range []*regexp.Regexp{customerIDRe, policyRe, claimRe, nricRe} {
		stripped = re.ReplaceAllString(stripped, " ")
	}
	if m := numberRe.FindString(stripped); m != "" {
		return parseNumber(m)
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return f, err == nil
}

// Normalize lower-cases s and reduces it to space-separated words of letters,
// digits and apostrophes, padded with a leading and trailing space.
func Normalize(s string) string {
	return " " + strings.Join(Words(s), " ") + " "
}

// Words splits s into lower-case words of letters, digits and apostrophes.
func Words(s string) []string {
	s = strings.ReplaceAll(strings.ToLower(s), "’", "'")
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// HasAny reports whether the normalized text contains any phrase as whole words.
// norm must come from Normalize; phrases are lower-case words separated by single spaces.
func HasAny(norm string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(norm, " "+p+" ") {
			return true
		}
	}
	return false
}

// CountAny returns how many of phrases occur in the normalized text.
func CountAny(norm string, phrases ...string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(norm, " "+p+" ") {
			n++
		}
	}
	return n
}

// IsQuestion reports whether s reads as a question.
func IsQuestion(s string) bool {
	return strings.HasSuffix(strings.TrimSpace(s), "?")
}
