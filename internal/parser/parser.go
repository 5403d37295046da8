// Package parser turns tabular expense exports into candidate transactions.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrStructural marks input whose shape is rejected before any row is parsed.
var ErrStructural = errors.New("invalid file structure")

// Structural check messages.
const (
	msgTooFewLines   = "file must have at least a header row and one data row"
	msgTooFewColumns = "file must have at least 3 columns (description, amount, date)"
	msgNoDescription = "file must contain a description/merchant/payee column"
	msgNoAmount      = "file must contain an amount/value/sum column"
	msgNoDate        = "file must contain a date column"
)

var (
	descriptionHeader = regexp.MustCompile(`description|merchant|payee|details|memo`)
	amountHeader      = regexp.MustCompile(`amount|value|sum|total|debit|credit`)
	dateHeader        = regexp.MustCompile(`date|payment|posting|value`)
)

// RowError is a per-row failure. Line is the 1-based line in the source, header included.
type RowError struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Message)
}

// Result is the outcome of parsing one file.
type Result struct {
	Transactions []model.CandidateTransaction `json:"transactions"`
	Errors       []RowError                   `json:"errors"`
	TotalRows    int                          `json:"totalRows"`
	ValidRows    int                          `json:"validRows"`
}

// ErrorMessages returns the row errors as display strings.
func (r *Result) ErrorMessages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Error()
	}
	return out
}

// StructuralError reports why a file was rejected wholesale. Every failed
// header check contributes one reason.
type StructuralError struct {
	Reasons []string
}

// NewStructuralError returns a StructuralError carrying reasons.
func NewStructuralError(reasons ...string) *StructuralError {
	return &StructuralError{Reasons: reasons}
}

func (e *StructuralError) Error() string {
	return strings.Join(e.Reasons, "; ")
}

func (e *StructuralError) Unwrap() error {
	return ErrStructural
}

// Decode strips UTF-8 and UTF-16 byte order marks, decoding UTF-16 input to UTF-8.
func Decode(raw []byte) ([]byte, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return out, nil
}

// ValidateStructure checks that delimited text has a usable header before row parsing.
func ValidateStructure(raw []byte) error {
	text, err := Decode(raw)
	if err != nil {
		return err
	}

	nonBlank := 0
	var headerLine string
	for _, line := range strings.Split(string(text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if nonBlank == 0 {
			headerLine = line
		}
		nonBlank++
	}
	if nonBlank < 2 {
		return NewStructuralError(msgTooFewLines)
	}

	header, err := newCSVReader(strings.NewReader(headerLine)).Read()
	if err != nil {
		return NewStructuralError(fmt.Sprintf("unreadable header row: %v", err))
	}
	return validateHeader(header)
}

func validateHeader(header []string) error {
	if len(header) < 3 {
		return NewStructuralError(msgTooFewColumns)
	}

	joined := strings.ToLower(strings.Join(header, "|"))
	var missing []string
	if !descriptionHeader.MatchString(joined) {
		missing = append(missing, msgNoDescription)
	}
	if !amountHeader.MatchString(joined) {
		missing = append(missing, msgNoAmount)
	}
	if !dateHeader.MatchString(joined) {
		missing = append(missing, msgNoDate)
	}
	if len(missing) > 0 {
		return NewStructuralError(missing...)
	}
	return nil
}

// Parse validates and parses delimited text. Structural problems return an error
// wrapping ErrStructural; row problems are collected in the result.
func Parse(raw []byte) (*Result, error) {
	if err := ValidateStructure(raw); err != nil {
		return nil, err
	}

	text, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	reader := newCSVReader(bytes.NewReader(text))

	header, err := reader.Read()
	if err != nil {
		return nil, NewStructuralError(fmt.Sprintf("unreadable header row: %v", err))
	}
	header = cleanHeaders(header)

	var records []record
	for {
		fields, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(readErr, &parseErr) {
				line = parseErr.StartLine
			}
			records = append(records, record{line: line, err: readErr})
			continue
		}
		if isRowEmpty(fields) {
			continue
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record{line: line, fields: fields})
	}

	return parseRecords(header, records), nil
}

// ParseRows parses an already split table whose first row is the header.
// It applies the same structural rules as Parse.
func ParseRows(rows [][]string) (*Result, error) {
	var nonEmpty [][]string
	for _, row := range rows {
		if !isRowEmpty(row) {
			nonEmpty = append(nonEmpty, row)
		}
	}
	if len(nonEmpty) < 2 {
		return nil, NewStructuralError(msgTooFewLines)
	}

	header := cleanHeaders(nonEmpty[0])
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	records := make([]record, 0, len(nonEmpty)-1)
	for i, row := range nonEmpty[1:] {
		records = append(records, record{line: i + 2, fields: row})
	}
	return parseRecords(header, records), nil
}

type record struct {
	err    error
	fields []string
	line   int
}

func parseRecords(header []string, records []record) *Result {
	columns := DiscoverColumns(header)
	result := &Result{
		Transactions: make([]model.CandidateTransaction, 0, len(records)),
		TotalRows:    len(records),
	}

	for _, rec := range records {
		if rec.err != nil {
			result.Errors = append(result.Errors, RowError{Line: rec.line, Message: rec.err.Error()})
			continue
		}

		candidate, err := parseRecord(header, columns, rec.fields)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: rec.line, Message: err.Error()})
			continue
		}
		result.Transactions = append(result.Transactions, candidate)
	}

	result.ValidRows = len(result.Transactions)
	return result
}

func parseRecord(header []string, columns ColumnMap, fields []string) (model.CandidateTransaction, error) {
	values := make(map[Field]string, len(requiredFields))
	for _, field := range requiredFields {
		idx, ok := columns[field]
		if !ok || idx >= len(fields) || strings.TrimSpace(fields[idx]) == "" {
			return model.CandidateTransaction{}, fmt.Errorf("%s field not found or empty", field)
		}
		values[field] = strings.TrimSpace(fields[idx])
	}

	description := values[FieldDescription]
	if len([]rune(description)) < model.MinDescriptionLength {
		return model.CandidateTransaction{}, fmt.Errorf("description too short: %q", description)
	}

	amount, err := ParseAmount(values[FieldAmount])
	if err != nil {
		return model.CandidateTransaction{}, err
	}

	date, err := ParseDate(values[FieldDate])
	if err != nil {
		return model.CandidateTransaction{}, err
	}

	raw := make([]model.RawField, 0, len(header))
	for i, name := range header {
		value := ""
		if i < len(fields) {
			value = fields[i]
		}
		raw = append(raw, model.RawField{Name: name, Value: value})
	}

	return model.CandidateTransaction{
		Description: description,
		Amount:      amount,
		Date:        date,
		RawFields:   raw,
	}, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader
}

// cleanHeaders trims whitespace and stray quotes from header names.
func cleanHeaders(header []string) []string {
	cleaned := make([]string, len(header))
	for i, h := range header {
		cleaned[i] = strings.Trim(strings.TrimSpace(h), `"`)
	}
	return cleaned
}

func isRowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
