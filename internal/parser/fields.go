package parser

import "strings"

// Field is a logical column the parser needs from every row.
type Field string

// Logical fields of a candidate transaction.
const (
	FieldDescription Field = "description"
	FieldAmount      Field = "amount"
	FieldDate        Field = "date"
)

// Synonyms lists accepted header names per logical field, in priority order.
var Synonyms = map[Field][]string{
	FieldDescription: {"description", "merchant", "payee", "details", "transaction_details", "memo"},
	FieldAmount:      {"amount", "value", "sum", "total", "debit", "credit", "transaction_amount"},
	FieldDate:        {"date", "transaction_date", "payment_date", "posting_date", "value_date"},
}

// requiredFields is the order in which row fields are checked.
var requiredFields = []Field{FieldDescription, FieldAmount, FieldDate}

// ColumnMap maps each discovered logical field to its column index.
type ColumnMap map[Field]int

// DiscoverColumns resolves logical fields against a header row.
// For each synonym in order it tries an exact match, then a case-insensitive match,
// then a case-insensitive substring match in either direction.
func DiscoverColumns(header []string) ColumnMap {
	columns := make(ColumnMap, len(requiredFields))
	for _, field := range requiredFields {
		if idx := findColumn(header, Synonyms[field]); idx >= 0 {
			columns[field] = idx
		}
	}
	return columns
}

func findColumn(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if h == name {
				return i
			}
		}

		lower := strings.ToLower(name)
		for i, h := range header {
			if strings.ToLower(h) == lower {
				return i
			}
		}

		for i, h := range header {
			key := strings.ToLower(strings.TrimSpace(h))
			if key == "" {
				continue
			}
			if strings.Contains(key, lower) || strings.Contains(lower, key) {
				return i
			}
		}
	}
	return -1
}
