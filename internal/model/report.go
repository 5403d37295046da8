package model

import "time"

// ReportStatus is the lifecycle of a generated report.
type ReportStatus string

// Report states.
const (
	ReportGenerating ReportStatus = "generating"
	ReportCompleted  ReportStatus = "completed"
	ReportFailed     ReportStatus = "failed"
)

// Report is a persisted compliance report for a reporting period.
type Report struct {
	PeriodStart    time.Time    `json:"periodStart"`
	PeriodEnd      time.Time    `json:"periodEnd"`
	CreatedAt      time.Time    `json:"createdAt"`
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	Title          string       `json:"title"`
	CompanyName    string       `json:"companyName"`
	Status         ReportStatus `json:"status"`
	Narrative      string       `json:"-"`
	XBRL           string       `json:"-"`
	ErrorMessage   string       `json:"errorMessage,omitempty"`
	TotalEmissions float64      `json:"totalEmissions"`
	Scope1         float64      `json:"scope1Emissions"`
	Scope2         float64      `json:"scope2Emissions"`
	Scope3         float64      `json:"scope3Emissions"`
	Valid          bool         `json:"valid"`
}
