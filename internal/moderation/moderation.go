// Package moderation screens user messages before they reach the graph.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/telemetry"
	"github.com/ashita-ai/insureai/internal/textmatch"
)

// DefaultMaxLength is the longest message accepted, in characters.
const DefaultMaxLength = model.MaxMessageLen

// Block messages.
const (
	MessageSQL       = "Security Alert: Malformed request detected."
	MessageJailbreak = "Security Alert: Invalid instruction format."
	MessageForeign   = "Request Blocked: You can only access your own account information."
	MessageEmpty     = "Please enter a message."
)

var (
	sqlPattern       = regexp.MustCompile(`(?i)(select\s+\*|drop\s+table|insert\s+into|delete\s+from)`)
	jailbreakPattern = regexp.MustCompile(`(?i)(ignore\s+previous|system\s+override|you\s+are\s+now\s+dan)`)
)

// Verdict is the outcome of screening one message.
type Verdict struct {
	Allowed bool
	Rule    string
	Message string
}

// Allow is the verdict for an accepted message.
var Allow = Verdict{Allowed: true}

func block(rule, msg string) Verdict {
	return Verdict{Rule: rule, Message: msg}
}

// Rule screens one message. A rule that errors is skipped.
type Rule interface {
	Name() string
	Check(ctx context.Context, principal model.Principal, text string) (Verdict, error)
}

// RuleFunc adapts a function to Rule.
type RuleFunc struct {
	RuleName string
	Fn       func(ctx context.Context, principal model.Principal, text string) (Verdict, error)
}

func (f RuleFunc) Name() string { return f.RuleName }
func (f RuleFunc) Check(ctx context.Context, principal model.Principal, text string) (Verdict, error) {
	return f.Fn(ctx, principal, text)
}

// Guard runs its rules in order and stops at the first block.
type Guard struct {
	rules  []Rule
	logger *slog.Logger

	blocked metric.Int64Counter
}

// NewGuard creates a guard with the built-in rules followed by extra.
func NewGuard(maxLength int, logger *slog.Logger, extra ...Rule) *Guard {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	blocked, _ := telemetry.Meter("insureai/moderation").Int64Counter("insureai.moderation.blocked",
		metric.WithDescription("Messages blocked by moderation, by rule"),
	)
	rules := append([]Rule{
		lengthRule(maxLength),
		patternRule("sql", sqlPattern, MessageSQL),
		patternRule("jailbreak", jailbreakPattern, MessageJailbreak),
		foreignCustomerRule(),
	}, extra...)
	return &Guard{rules: rules, logger: logger, blocked: blocked}
}

// Check screens text sent by principal. A failing rule fails open.
func (g *Guard) Check(ctx context.Context, principal model.Principal, text string) Verdict {
	for _, r := range g.rules {
		v, err := r.Check(ctx, principal, text)
		if err != nil {
			g.logger.Warn("moderation: rule failed, allowing", "rule", r.Name(), "error", err)
			continue
		}
		if !v.Allowed {
			if v.Rule == "" {
				v.Rule = r.Name()
			}
			g.blocked.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", v.Rule)))
			g.logger.Info("moderation: message blocked", "rule", v.Rule, "principal", string(principal))
			return v
		}
	}
	return Allow
}

func lengthRule(maxLength int) Rule {
	return RuleFunc{RuleName: "length", Fn: func(_ context.Context, _ model.Principal, text string) (Verdict, error) {
		if strings.TrimSpace(text) == "" {
			return block("empty", MessageEmpty), nil
		}
		if utf8.RuneCountInString(text) > maxLength {
			return block("length", fmt.Sprintf("Message too long. Please keep it under %d characters.", maxLength)), nil
		}
		return Allow, nil
	}}
}

func patternRule(name string, re *regexp.Regexp, msg string) Rule {
	return RuleFunc{RuleName: name, Fn: func(_ context.Context, _ model.Principal, text string) (Verdict, error) {
		if re.MatchString(text) {
			return block(name, msg), nil
		}
		return Allow, nil
	}}
}

// foreignCustomerRule blocks messages naming a customer ID other than the caller's.
func foreignCustomerRule() Rule {
	return RuleFunc{RuleName: "foreign_customer", Fn: func(_ context.Context, principal model.Principal, text string) (Verdict, error) {
		if principal == "" {
			return Allow, nil
		}
		for _, id := range textmatch.CustomerIDs(text) {
			if !strings.EqualFold(id, string(principal)) {
				return block("foreign_customer", MessageForeign), nil
			}
		}
		return Allow, nil
	}}
}
