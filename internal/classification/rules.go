package classification

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// Rule maps description keywords to a classification.
type Rule struct {
	Category    string
	Subcategory string
	Keywords    []string
	Confidence  float64
	Scope       model.Scope

	// Alternate switches the subcategory when one of its keywords also matches.
	Alternate *Alternate
}

// Alternate is a secondary subcategory within a rule.
type Alternate struct {
	Subcategory string
	Keywords    []string
}

// DefaultRules is the keyword table, checked in order.
var DefaultRules = []Rule{
	{
		Category:    "Fuel and Energy",
		Subcategory: "Vehicle Fuel",
		Keywords:    []string{"fuel", "diesel", "petrol", "shell", "bp", "total"},
		Scope:       model.Scope1,
		Confidence:  0.9,
	},
	{
		Category:    "Energy",
		Subcategory: "Electricity",
		Keywords:    []string{"electricity", "gas", "energy", "british gas", "edf", "sse", "enel", "heating"},
		Scope:       model.Scope2,
		Confidence:  0.85,
		Alternate:   &Alternate{Subcategory: "Natural Gas", Keywords: []string{"gas", "heating"}},
	},
	{
		Category:    "Business Travel",
		Subcategory: "Air Travel",
		Keywords:    []string{"flight", "airline", "ryanair", "lufthansa", "eurostar"},
		Scope:       model.Scope3,
		Confidence:  0.9,
	},
	{
		Category:    "Business Travel",
		Subcategory: "Accommodation",
		Keywords:    []string{"hotel", "hilton", "marriott"},
		Scope:       model.Scope3,
		Confidence:  0.85,
	},
	{
		Category:    "Business Travel",
		Subcategory: "Ground Transport",
		Keywords:    []string{"uber", "taxi"},
		Scope:       model.Scope3,
		Confidence:  0.8,
	},
	{
		Category:    "Purchased Goods",
		Subcategory: "Office Supplies",
		Keywords:    []string{"office", "depot", "paper", "supplies"},
		Scope:       model.Scope3,
		Confidence:  0.75,
	},
	{
		Category:    "Purchased Services",
		Subcategory: "IT Services",
		Keywords:    []string{"microsoft", "google", "aws", "workspace", "cloud"},
		Scope:       model.Scope3,
		Confidence:  0.8,
	},
	{
		Category:    "Waste",
		Subcategory: "Waste Treatment",
		Keywords:    []string{"waste", "management"},
		Scope:       model.Scope3,
		Confidence:  0.85,
	},
	{
		Category:    "Transportation",
		Subcategory: "Freight",
		Keywords:    []string{"shipping", "dhl", "delivery"},
		Scope:       model.Scope3,
		Confidence:  0.8,
	},
	{
		Category:    "Facilities",
		Subcategory: "Office Space",
		Keywords:    []string{"office space", "rent", "wework"},
		Scope:       model.Scope3,
		Confidence:  0.7,
	},
}

// DefaultResult is returned when no rule matches.
var DefaultResult = model.ClassificationResult{
	Category:    "Other",
	Subcategory: "Miscellaneous",
	Scope:       model.Scope3,
	Confidence:  0.5,
	Reasoning:   "no keyword matched",
	Source:      model.SourceRule,
}

type compiledRule struct {
	pattern   *regexp.Regexp
	alternate *regexp.Regexp
	Rule
}

// RuleClassifier is a deterministic keyword classifier. It never fails.
type RuleClassifier struct {
	rules []compiledRule
}

// NewRuleClassifier compiles rules into whole-word matchers.
func NewRuleClassifier(rules []Rule) *RuleClassifier {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{Rule: r, pattern: wordPattern(r.Keywords)}
		if r.Alternate != nil {
			cr.alternate = wordPattern(r.Alternate.Keywords)
		}
		compiled = append(compiled, cr)
	}
	return &RuleClassifier{rules: compiled}
}

// NewDefaultRuleClassifier builds a RuleClassifier over DefaultRules.
func NewDefaultRuleClassifier() *RuleClassifier {
	return NewRuleClassifier(DefaultRules)
}

// Classify returns the first matching rule, or DefaultResult.
func (c *RuleClassifier) Classify(_ context.Context, req Request) (model.ClassificationResult, error) {
	return c.Match(req.Description), nil
}

// Match classifies a description without a context.
func (c *RuleClassifier) Match(description string) model.ClassificationResult {
	for _, r := range c.rules {
		keyword := r.pattern.FindString(description)
		if keyword == "" {
			continue
		}

		subcategory := r.Subcategory
		if r.alternate != nil && r.alternate.MatchString(description) {
			subcategory = r.Alternate.Subcategory
		}

		return model.ClassificationResult{
			Category:    r.Category,
			Subcategory: subcategory,
			Scope:       r.Scope,
			Confidence:  r.Confidence,
			Reasoning:   fmt.Sprintf("matched keyword %q", strings.ToLower(keyword)),
			Source:      model.SourceRule,
		}
	}
	return DefaultResult
}

func wordPattern(keywords []string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(k), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
