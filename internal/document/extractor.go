// Package document pulls expense candidates out of unstructured document text.
package document

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/parser"
)

// MaxAmount is the exclusive upper bound for an amount to count as an expense.
const MaxAmount = 100000

// windowRadius is how many lines either side of an amount are searched for context.
const windowRadius = 2

// ErrNoExpenses is reported when a document yields nothing usable.
var ErrNoExpenses = errors.New("no valid expenses found in document")

const amountNumber = `(\d+(?:,\d{3})*(?:\.\d{2})?)`

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[$€£¥]\s*` + amountNumber),
	regexp.MustCompile(`(?i)` + amountNumber + `\s*(?:EUR|USD|GBP|CHF)`),
	regexp.MustCompile(`(?i)Total[:\s]+` + amountNumber),
	regexp.MustCompile(`(?i)Amount[:\s]+` + amountNumber),
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}`),
	regexp.MustCompile(`\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2}`),
	regexp.MustCompile(`(?i)\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{2,4}`),
}

var (
	numericOnly = regexp.MustCompile(`^\s*[\d$€£¥,.\s]+$`)
	dateOnly    = regexp.MustCompile(`^\s*\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\s*$`)

	vendorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
		regexp.MustCompile(`((?:[A-Z]+\s*)+)[-\s]`),
	}
)

// Expense is one amount found in a document with whatever context surrounded it.
type Expense struct {
	Date        time.Time `json:"date,omitempty"`
	Description string    `json:"description"`
	Vendor      string    `json:"vendor,omitempty"`
	Amount      float64   `json:"amount"`
}

// HasDate reports whether a date was found near the amount.
func (e Expense) HasDate() bool {
	return !e.Date.IsZero()
}

// Result is the outcome of extracting one document.
type Result struct {
	Expenses   []Expense `json:"expenses"`
	Errors     []string  `json:"errors"`
	Confidence float64   `json:"confidence"`
}

// Extract scans document text line by line for expense amounts.
func Extract(text string) Result {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	var expenses []Expense
	for i, line := range lines {
		for _, pattern := range amountPatterns {
			for _, match := range pattern.FindAllStringSubmatch(line, -1) {
				amount, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
				if err != nil || amount <= 0 || amount >= MaxAmount {
					continue
				}

				window := contextWindow(lines, i)
				description := findDescription(window)
				if description == "" {
					description = line
				}

				expenses = append(expenses, Expense{
					Description: description,
					Amount:      amount,
					Date:        findDate(window),
					Vendor:      findVendor(line),
				})
			}
		}
	}

	unique := dedupe(expenses)
	result := Result{
		Expenses:   unique,
		Errors:     []string{},
		Confidence: confidence(unique),
	}
	if len(unique) == 0 {
		result.Errors = append(result.Errors, ErrNoExpenses.Error())
	}
	return result
}

// ToCandidates converts expenses to candidate transactions. Undated expenses take
// the extraction date and expenses failing candidate validation are dropped.
func (r Result) ToCandidates(extractedAt time.Time) []model.CandidateTransaction {
	y, m, d := extractedAt.UTC().Date()
	fallbackDate := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	out := make([]model.CandidateTransaction, 0, len(r.Expenses))
	for _, e := range r.Expenses {
		date := e.Date
		if date.IsZero() {
			date = fallbackDate
		}

		raw := []model.RawField{{Name: "description", Value: e.Description}}
		if e.Vendor != "" {
			raw = append(raw, model.RawField{Name: "vendor", Value: e.Vendor})
		}

		c := model.CandidateTransaction{
			Description: e.Description,
			Amount:      e.Amount,
			Date:        date,
			RawFields:   raw,
		}
		if c.Validate() != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

func contextWindow(lines []string, i int) []string {
	lo := max(0, i-windowRadius)
	hi := min(len(lines), i+windowRadius+1)
	return lines[lo:hi]
}

// findDescription returns the first line in the window that is not only numbers or a date.
func findDescription(window []string) string {
	for _, line := range window {
		if !numericOnly.MatchString(line) && !dateOnly.MatchString(line) {
			return line
		}
	}
	return ""
}

func findDate(window []string) time.Time {
	for _, line := range window {
		for _, pattern := range datePatterns {
			match := pattern.FindString(line)
			if match == "" {
				continue
			}
			if t, err := parser.ParseDate(match); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func findVendor(line string) string {
	for _, pattern := range vendorPatterns {
		m := pattern.FindStringSubmatch(line)
		if m != nil && len(m[1]) > 2 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// dedupe keeps the first of any expenses sharing a description and an amount within a cent.
func dedupe(expenses []Expense) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		seen := false
		for _, kept := range out {
			if kept.Description == e.Description && math.Abs(kept.Amount-e.Amount) < 0.01 {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, e)
		}
	}
	return out
}

func confidence(expenses []Expense) float64 {
	n := len(expenses)
	if n == 0 {
		return 0
	}

	var dated, vendored int
	for _, e := range expenses {
		if e.HasDate() {
			dated++
		}
		if e.Vendor != "" {
			vendored++
		}
	}

	score := 0.3 + math.Min(float64(n)*0.1, 0.4)
	score += 0.2 * float64(dated) / float64(n)
	score += 0.1 * float64(vendored) / float64(n)
	return math.Min(score, 1)
}
