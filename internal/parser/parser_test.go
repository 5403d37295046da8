package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{input: "45.00", want: 45},
		{input: "€1,234.50", want: 1234.50},
		{input: "$ 1,234.50", want: 1234.50},
		{input: "£99", want: 99},
		{input: "¥1,000", want: 1000},
		{input: " 12.5 ", want: 12.5},
		{input: "0.00", wantErr: true},
		{input: "-5.00", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "NaN", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid amount")
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseAmount_SymbolStrippingMatchesPlainValue(t *testing.T) {
	for _, plain := range []string{"1234.50", "0.01", "99999.99", "7"} {
		want, err := ParseAmount(plain)
		require.NoError(t, err)

		for _, decorated := range []string{"€" + plain, "$" + plain, "£ " + plain, plain + " "} {
			got, err := ParseAmount(decorated)
			require.NoError(t, err, decorated)
			assert.InDelta(t, want, got, 1e-9, decorated)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "2024-03-05", want: date(2024, time.March, 5)},
		{input: "2024-03-05T10:30:00Z", want: date(2024, time.March, 5)},
		{input: "5 Mar 2024", want: date(2024, time.March, 5)},
		{input: "01/03/2024", want: date(2024, time.March, 1)},
		{input: "05-03-2024", want: date(2024, time.March, 5)},
		{input: "05.03.2024", want: date(2024, time.March, 5)},
		{input: "03/25/2024", want: date(2024, time.March, 25)},
		{input: "12/31/24", want: date(2024, time.December, 31)},
		{input: "31/02/2024", wantErr: true},
		{input: "not a date", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		})
	}
}

func TestDiscoverColumns(t *testing.T) {
	tests := []struct {
		want   ColumnMap
		name   string
		header []string
	}{
		{
			name:   "exact names",
			header: []string{"description", "amount", "date"},
			want:   ColumnMap{FieldDescription: 0, FieldAmount: 1, FieldDate: 2},
		},
		{
			name:   "case insensitive synonyms",
			header: []string{"Date", "Merchant", "Amount"},
			want:   ColumnMap{FieldDescription: 1, FieldAmount: 2, FieldDate: 0},
		},
		{
			name:   "substring match",
			header: []string{"Posting Date", "Payee Name", "Debit Amount EUR"},
			want:   ColumnMap{FieldDescription: 1, FieldAmount: 2, FieldDate: 0},
		},
		{
			name:   "missing field is absent",
			header: []string{"Merchant", "Amount", "Reference"},
			want:   ColumnMap{FieldDescription: 0, FieldAmount: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiscoverColumns(tt.header))
		})
	}
}

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{name: "valid", input: "Merchant,Amount,Date\nShell,45,2024-03-01\n"},
		{name: "header only", input: "Merchant,Amount,Date\n\n  \n", wantMsg: msgTooFewLines},
		{name: "two columns", input: "Merchant,Amount\nShell,45\n", wantMsg: msgTooFewColumns},
		{name: "no description", input: "Foo,Amount,Date\nShell,45,2024-03-01\n", wantMsg: msgNoDescription},
		{name: "no amount", input: "Merchant,Foo,Date\nShell,45,2024-03-01\n", wantMsg: msgNoAmount},
		{name: "no date", input: "Merchant,Amount,Reference\nShell,45,X1\n", wantMsg: msgNoDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStructure([]byte(tt.input))
			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrStructural)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestValidateStructure_ReportsEveryMissingColumn(t *testing.T) {
	err := ValidateStructure([]byte("Foo,Bar,Baz\n1,2,3\n"))
	require.ErrorIs(t, err, ErrStructural)

	var structural *StructuralError
	require.ErrorAs(t, err, &structural)
	assert.Equal(t, []string{msgNoDescription, msgNoAmount, msgNoDate}, structural.Reasons)
	assert.Equal(t, msgNoDescription+"; "+msgNoAmount+"; "+msgNoDate, err.Error())

	err = ValidateStructure([]byte("Merchant,Foo,Bar\nShell,45,x\n"))
	require.ErrorAs(t, err, &structural)
	assert.Equal(t, []string{msgNoAmount, msgNoDate}, structural.Reasons)
}

func TestParse_EndToEndScenario(t *testing.T) {
	input := "Merchant,Amount,Date\n" +
		"Shell Fuel,45.00,01/03/2024\n" +
		"EDF Energy,€120.00,2024-03-05\n" +
		"Ryanair,150,05-03-2024\n"

	result, err := Parse([]byte(input))
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 3, result.ValidRows)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Transactions, 3)

	assert.Equal(t, "Shell Fuel", result.Transactions[0].Description)
	assert.InDelta(t, 45.0, result.Transactions[0].Amount, 1e-9)
	assert.True(t, date(2024, time.March, 1).Equal(result.Transactions[0].Date))

	assert.InDelta(t, 120.0, result.Transactions[1].Amount, 1e-9)
	assert.True(t, date(2024, time.March, 5).Equal(result.Transactions[2].Date))

	merchant, ok := result.Transactions[2].Field("Merchant")
	require.True(t, ok)
	assert.Equal(t, "Ryanair", merchant)
}

func TestParse_RowErrorsDoNotAbortBatch(t *testing.T) {
	input := strings.Join([]string{
		"Description,Amount,Date",
		"Office Depot,\"€1,234.50\",2024-01-10",
		",45.00,2024-01-11",
		"Shell,,2024-01-12",
		"Hilton Hotel,200,",
		"ab,10,2024-01-13",
		"Uber Trip,0.00,2024-01-14",
		"Taxi Ride,-5.00,2024-01-15",
		"Paper Co,12,someday",
	}, "\n")

	result, err := Parse([]byte(input))
	require.NoError(t, err)

	assert.Equal(t, 8, result.TotalRows)
	assert.Equal(t, 1, result.ValidRows)
	assert.Equal(t, result.TotalRows-len(result.Errors), result.ValidRows)
	assert.InDelta(t, 1234.50, result.Transactions[0].Amount, 1e-9)

	require.Len(t, result.Errors, 7)
	assert.Equal(t, RowError{Line: 3, Message: "description field not found or empty"}, result.Errors[0])
	assert.Equal(t, RowError{Line: 4, Message: "amount field not found or empty"}, result.Errors[1])
	assert.Equal(t, RowError{Line: 5, Message: "date field not found or empty"}, result.Errors[2])
	assert.Contains(t, result.Errors[3].Message, "description too short")
	assert.Equal(t, "invalid amount: 0.00", result.Errors[4].Message)
	assert.Equal(t, "invalid amount: -5.00", result.Errors[5].Message)
	assert.Contains(t, result.Errors[6].Message, "invalid date")
	assert.Equal(t, "row 9: invalid date: someday", result.Errors[6].Error())
}

func TestParse_MissingColumnUnderEverySynonym(t *testing.T) {
	// "Payment Ref" satisfies the structural date check but matches no date synonym.
	input := "Merchant,Amount,Payment Ref\nShell,45,R1\nBP,30,R2\n"

	result, err := Parse([]byte(input))
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRows)
	assert.Zero(t, result.ValidRows)
	for _, rowErr := range result.Errors {
		assert.Equal(t, "date field not found or empty", rowErr.Message)
	}
}

func TestParse_BOMTolerant(t *testing.T) {
	input := "\ufeffMerchant,Amount,Date\nShell Fuel,45.00,2024-03-01\n"

	result, err := Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)

	_, ok := result.Transactions[0].Field("Merchant")
	assert.True(t, ok, "BOM must not leak into the first header name")
}

func TestParse_UTF16WithBOM(t *testing.T) {
	text := "Merchant,Amount,Date\nShell Fuel,45.00,2024-03-01\n"
	encoded := []byte{0xFF, 0xFE}
	for _, r := range text {
		encoded = append(encoded, byte(r), 0x00)
	}

	result, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ValidRows)
}

func TestParse_StructuralFailure(t *testing.T) {
	_, err := Parse([]byte("Merchant,Amount\nShell,45\n"))
	require.ErrorIs(t, err, ErrStructural)
}

func TestParseWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Payee", "Value", "Transaction Date"},
		{"Shell Fuel", "45.00", "2024-03-01"},
		{"Marriott Paris", "€310.00", "02/03/2024"},
		{"", "", ""},
		{"Broken Row", "free", "2024-03-03"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	result, err := ParseWorkbook(buf)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 2, result.ValidRows)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "invalid amount: free", result.Errors[0].Message)
	assert.True(t, date(2024, time.March, 2).Equal(result.Transactions[1].Date))
}

func TestParseRows_StructuralRules(t *testing.T) {
	_, err := ParseRows([][]string{{"Merchant", "Amount", "Date"}})
	require.ErrorIs(t, err, ErrStructural)

	_, err = ParseRows([][]string{{"A", "B", "C"}, {"x", "y", "z"}})
	require.ErrorIs(t, err, ErrStructural)
}
