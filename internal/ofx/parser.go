// Package ofx reads OFX/QFX bank and credit card statements as expense candidates.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/parser"
	"github.com/aclindsa/ofxgo"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser implements OFX/QFX statement parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML exports sometimes drop the closing bracket of a bare opening tag.
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// statementLine is one statement entry together with its owning account.
type statementLine struct {
	account string
	txn     ofxgo.Transaction
}

// Parse reads a statement and returns its debits as candidate transactions.
// Credits are not expenses and are skipped without being counted.
func (p *Parser) Parse(ctx context.Context, reader io.Reader) (*parser.Result, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, parser.NewStructuralError(fmt.Sprintf("failed to parse OFX file: %v", err))
	}

	var lines []statementLine
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			for _, t := range stmt.BankTranList.Transactions {
				lines = append(lines, statementLine{account: string(stmt.BankAcctFrom.AcctID), txn: t})
			}
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			for _, t := range stmt.BankTranList.Transactions {
				lines = append(lines, statementLine{account: string(stmt.CCAcctFrom.AcctID), txn: t})
			}
		}
	}

	result := &parser.Result{}
	skipped := 0
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		amount, _ := line.txn.TrnAmt.Float64()
		if amount >= 0 {
			skipped++
			continue
		}
		result.TotalRows++

		candidate := p.convertTransaction(line.txn, line.account, -amount)
		if err := candidate.Validate(); err != nil {
			result.Errors = append(result.Errors, parser.RowError{Line: i + 1, Message: err.Error()})
			continue
		}
		result.Transactions = append(result.Transactions, candidate)
	}
	result.ValidRows = len(result.Transactions)

	slog.Info("Parsed OFX file",
		"debits", result.TotalRows,
		"valid", result.ValidRows,
		"credits_skipped", skipped)

	return result, nil
}

// convertTransaction maps an OFX entry onto a candidate transaction.
func (p *Parser) convertTransaction(t ofxgo.Transaction, accountID string, amount float64) model.CandidateTransaction {
	posted := t.DtPosted.Time.UTC()
	date := time.Date(posted.Year(), posted.Month(), posted.Day(), 0, 0, 0, 0, time.UTC)

	return model.CandidateTransaction{
		Description: p.extractMerchantName(t),
		Amount:      amount,
		Date:        date,
		RawFields: []model.RawField{
			{Name: "FITID", Value: string(t.FiTID)},
			{Name: "TRNTYPE", Value: t.TrnType.String()},
			{Name: "NAME", Value: string(t.Name)},
			{Name: "MEMO", Value: string(t.Memo)},
			{Name: "ACCTID", Value: accountID},
		},
	}
}

var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(t ofxgo.Transaction) string {
	if t.Payee != nil && t.Payee.Name != "" {
		return strings.TrimSpace(string(t.Payee.Name))
	}

	name := string(t.Name)
	if t.Memo != "" && isGenericDescription(name) {
		name = string(t.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " authorization dates.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
