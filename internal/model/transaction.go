package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// MinDescriptionLength is the shortest description a candidate may carry.
const MinDescriptionLength = 3

// RawField preserves one original column of an ingested row.
type RawField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CandidateTransaction is a structurally valid expense produced by a parser or extractor.
// It has not been classified or priced yet.
type CandidateTransaction struct {
	Date        time.Time  `json:"date"`
	Description string     `json:"description"`
	RawFields   []RawField `json:"rawFields,omitempty"`
	Amount      float64    `json:"amount"`
}

// Validate checks the candidate invariants.
func (c CandidateTransaction) Validate() error {
	if len(strings.TrimSpace(c.Description)) < MinDescriptionLength {
		return fmt.Errorf("%w: description too short", ErrInvalidCandidate)
	}
	if c.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidCandidate)
	}
	if c.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidCandidate)
	}
	return nil
}

// Field returns the raw value of the named original column.
func (c CandidateTransaction) Field(name string) (string, bool) {
	for _, f := range c.RawFields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// LedgerTransaction is a classified, priced expense persisted in the emissions ledger.
type LedgerTransaction struct {
	Date             time.Time         `json:"date"`
	CreatedAt        time.Time         `json:"createdAt"`
	ID               string            `json:"id"`
	UserID           string            `json:"userId"`
	UploadID         string            `json:"uploadId"`
	Description      string            `json:"description"`
	Category         string            `json:"category"`
	Subcategory      string            `json:"subcategory,omitempty"`
	Reasoning        string            `json:"reasoning,omitempty"`
	FactorUnit       string            `json:"factorUnit"`
	FactorSource     string            `json:"factorSource"`
	FactorConfidence FactorConfidence  `json:"factorConfidence"`
	RawFields        []RawField        `json:"rawFields,omitempty"`
	Amount           float64           `json:"amount"`
	Confidence       float64           `json:"confidence"`
	EmissionsFactor  float64           `json:"emissionsFactor"`
	CO2Emissions     float64           `json:"co2Emissions"`
	Scope            Scope             `json:"scope"`
	AIClassified     bool              `json:"aiClassified"`
	Verified         bool              `json:"verified"`
}

// Hash identifies a ledger row by its content. Rows with equal hashes are
// reported as duplicates when a later batch repeats them.
func (t *LedgerTransaction) Hash() string {
	return ContentHash(t.UserID, t.Date, t.Amount, t.Description)
}

// ContentHash is the hash a ledger row for this candidate would carry.
func (c CandidateTransaction) ContentHash(userID string) string {
	return ContentHash(userID, c.Date, c.Amount, c.Description)
}

// ContentHash digests the fields that make two expenses the same: owner, day,
// amount to the cent and case-folded description.
func ContentHash(userID string, date time.Time, amount float64, description string) string {
	data := fmt.Sprintf("%s:%s:%.2f:%s",
		userID,
		date.Format("2006-01-02"),
		amount,
		strings.ToLower(strings.TrimSpace(description)))
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// CO2Tonnes returns the emissions in metric tonnes.
func (t *LedgerTransaction) CO2Tonnes() float64 {
	return t.CO2Emissions / 1000
}
