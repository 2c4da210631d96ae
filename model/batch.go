package model

import (
	"time"
)

// Batch represents one submission of files and its processing state
type Batch struct {
	ID        string    `json:"id"`
	Tenant    string    `json:"tenant"`
	Status    string    `json:"status"` // pending, processing, completed, cancelled, failed
	FileCount int       `json:"file_count"`
	Processed int       `json:"processed"`
	ErrorMsg  string    `json:"error_msg,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BatchStatus constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusFailed     = "failed"
)

// Finished reports whether the batch reached a terminal status.
func (b *Batch) Finished() bool {
	switch b.Status {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}
