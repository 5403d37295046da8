package model

import "time"

// BatchStatus is the lifecycle state of an upload batch.
type BatchStatus string

// Upload batch states. Completed and failed are terminal.
const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// UploadBatch is one ingestion unit and the status of its processing.
type UploadBatch struct {
	CreatedAt     time.Time   `json:"createdAt"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	Filename      string      `json:"filename"`
	Status        BatchStatus `json:"status"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	FileSize      int64       `json:"fileSize"`
	TotalRows     int         `json:"totalRows"`
	ProcessedRows int         `json:"processedRows"`
}

// BatchStatusView is the polling read model for a batch.
type BatchStatusView struct {
	ID            string      `json:"id"`
	Status        BatchStatus `json:"status"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	TotalRows     int         `json:"totalRows"`
	ProcessedRows int         `json:"processedRows"`
}

// StatusView projects the batch onto its polling shape.
func (b *UploadBatch) StatusView() BatchStatusView {
	return BatchStatusView{
		ID:            b.ID,
		Status:        b.Status,
		TotalRows:     b.TotalRows,
		ProcessedRows: b.ProcessedRows,
		ErrorMessage:  b.ErrorMessage,
	}
}
