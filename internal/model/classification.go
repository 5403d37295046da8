// Package model defines the core domain models used throughout the application.
package model

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidCandidate marks a candidate transaction that breaks an invariant.
var ErrInvalidCandidate = errors.New("invalid candidate transaction")

// Scope is a GHG Protocol emission scope.
type Scope int

// GHG Protocol scopes.
const (
	Scope1 Scope = 1 // direct emissions
	Scope2 Scope = 2 // purchased energy
	Scope3 Scope = 3 // value chain
)

// Scopes lists every scope in reporting order.
var Scopes = []Scope{Scope1, Scope2, Scope3}

// Valid reports whether s is one of the three GHG scopes.
func (s Scope) Valid() bool {
	return s >= Scope1 && s <= Scope3
}

func (s Scope) String() string {
	return "Scope " + strconv.Itoa(int(s))
}

// ParseScope converts a numeric value into a Scope, defaulting to Scope3.
func ParseScope(v int) Scope {
	s := Scope(v)
	if !s.Valid() {
		return Scope3
	}
	return s
}

// ClassificationSource records which classifier produced a result.
type ClassificationSource string

// Classification sources.
const (
	SourceAI       ClassificationSource = "ai"
	SourceRule     ClassificationSource = "rule"
	SourceFallback ClassificationSource = "fallback"
	SourceManual   ClassificationSource = "manual"
)

// ClassificationResult is the category and scope assigned to an expense.
type ClassificationResult struct {
	Category    string               `json:"category"`
	Subcategory string               `json:"subcategory,omitempty"`
	Reasoning   string               `json:"reasoning"`
	Source      ClassificationSource `json:"source"`
	Confidence  float64              `json:"confidence"`
	Scope       Scope                `json:"scope"`
}

// Normalize clamps confidence into [0,1] and forces a valid scope.
func (r ClassificationResult) Normalize() ClassificationResult {
	r.Confidence = ClampConfidence(r.Confidence)
	if !r.Scope.Valid() {
		r.Scope = Scope3
	}
	return r
}

// AIClassified reports whether the remote classifier produced the result.
func (r ClassificationResult) AIClassified() bool {
	return r.Source == SourceAI
}

// VerifiedThreshold is the confidence above which a result is auto-verified.
const VerifiedThreshold = 0.8

// AutoVerified reports whether the result is confident enough to skip review.
func (r ClassificationResult) AutoVerified() bool {
	return r.Confidence > VerifiedThreshold
}

func (r ClassificationResult) String() string {
	if r.Subcategory == "" {
		return fmt.Sprintf("%s (%s, %.2f)", r.Category, r.Scope, r.Confidence)
	}
	return fmt.Sprintf("%s / %s (%s, %.2f)", r.Category, r.Subcategory, r.Scope, r.Confidence)
}

// ClampConfidence bounds a confidence value to [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case c != c: // NaN
		return 0
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
