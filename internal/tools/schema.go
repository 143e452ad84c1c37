package tools

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashita-ai/insureai/internal/model"
)

// FieldType is the JSON type a tool argument must have.
type FieldType int

const (
	TypeString FieldType = iota
	TypeNumber
)

// Field is one argument of a tool schema.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Format names a constraint checked after the type: see formats.
	Format string
}

// Argument formats.
const (
	FormatCustomerID = "customer_id"
	FormatPolicy     = "policy_number"
	FormatClaim      = "claim_id"
	FormatDate       = "date"
	FormatPositive   = "positive"
	FormatEmail      = "email"
	FormatNRIC       = "nric"
)

var (
	customerIDRe = regexp.MustCompile(`^CUST\d+$`)
	policyRe     = regexp.MustCompile(`^POL\d+$`)
	claimRe      = regexp.MustCompile(`^CLM\d+$`)
	emailRe      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	nricRe       = regexp.MustCompile(`^[STFGM]\d{7}[A-Z]$`)
)

// MaxArgLen bounds free-text arguments, in runes. It matches the chat
// message limit so any accepted message can be passed through as an argument.
const MaxArgLen = model.MaxMessageLen

// Validate checks args against the spec's schema. It returns the offending
// field (empty when no single field is at fault) and a message describing
// the first problem, or an empty message when args are valid.
func (s Spec) Validate(args Args) (field, msg string) {
	known := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		known[f.Name] = true
		v, present := args[f.Name]
		if !present || v == nil || v == "" {
			if f.Required {
				return f.Name, fmt.Sprintf("Missing required field %s.", f.Name)
			}
			continue
		}
		if msg := f.check(v); msg != "" {
			return f.Name, msg
		}
	}
	for name := range args {
		if !known[name] {
			return "", fmt.Sprintf("Unexpected field %s.", name)
		}
	}
	if len(s.AnyOf) > 0 {
		for _, name := range s.AnyOf {
			if args.String(name) != "" {
				return "", ""
			}
		}
		return "", fmt.Sprintf("Provide at least one of: %s.", strings.Join(s.AnyOf, ", "))
	}
	return "", ""
}

func (f Field) check(v any) string {
	switch f.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprintf("Field %s must be a string.", f.Name)
		}
		if utf8.RuneCountInString(s) > MaxArgLen {
			return fmt.Sprintf("Field %s is too long.", f.Name)
		}
		return f.checkFormat(s)
	case TypeNumber:
		n, ok := toFloat(v)
		if !ok {
			return fmt.Sprintf("Field %s must be a number.", f.Name)
		}
		if f.Format == FormatPositive && !(n > 0) {
			return fmt.Sprintf("Field %s must be greater than zero.", f.Name)
		}
	}
	return ""
}

func (f Field) checkFormat(s string) string {
	switch f.Format {
	case FormatCustomerID:
		if !customerIDRe.MatchString(s) {
			return fmt.Sprintf("Invalid %s %q: expected CUST followed by digits.", f.Name, s)
		}
	case FormatPolicy:
		if !policyRe.MatchString(s) {
			return fmt.Sprintf("Invalid %s %q: expected POL followed by digits.", f.Name, s)
		}
	case FormatClaim:
		if !claimRe.MatchString(s) {
			return fmt.Sprintf("Invalid %s %q: expected CLM followed by digits.", f.Name, s)
		}
	case FormatDate:
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return fmt.Sprintf("Invalid %s %q: expected a date in YYYY-MM-DD format.", f.Name, s)
		}
	case FormatEmail:
		if !emailRe.MatchString(s) {
			return fmt.Sprintf("Invalid %s %q.", f.Name, s)
		}
	case FormatNRIC:
		if !nricRe.MatchString(strings.ToUpper(s)) {
			return fmt.Sprintf("Invalid %s %q.", f.Name, s)
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
