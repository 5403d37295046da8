package model

import "time"

// FactorConfidence grades how trustworthy an emission factor is.
type FactorConfidence string

// Factor confidence levels.
const (
	ConfidenceHigh   FactorConfidence = "high"
	ConfidenceMedium FactorConfidence = "medium"
	ConfidenceLow    FactorConfidence = "low"
)

// EmissionFactor converts an activity quantity into kg CO2e.
type EmissionFactor struct {
	CreatedAt   time.Time `json:"createdAt"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	Unit        string    `json:"unit"`
	Source      string    `json:"source"`
	Description string    `json:"description,omitempty"`
	ID          int64     `json:"id"`
	Factor      float64   `json:"factor"`
	Year        int       `json:"year"`
	Scope       Scope     `json:"scope"`
}
