package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/nixj9/construction-doc-processor/model"
)

// Export formats
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// BatchReport is the exported view of a batch and its result log.
type BatchReport struct {
	BatchID    string          `json:"batch_id" msgpack:"batch_id"`
	Tenant     string          `json:"tenant,omitempty" msgpack:"tenant,omitempty"`
	Status     string          `json:"status" msgpack:"status"`
	Summary    Summary         `json:"summary" msgpack:"summary"`
	Outcomes   []model.Outcome `json:"outcomes" msgpack:"outcomes"`
	FinishedAt time.Time       `json:"finished_at,omitempty" msgpack:"finished_at,omitempty"`
}

// NewBatchReport snapshots results for batch.
func NewBatchReport(batch *model.Batch, results *ResultLog) *BatchReport {
	return &BatchReport{
		BatchID:    batch.ID,
		Tenant:     batch.Tenant,
		Status:     batch.Status,
		Summary:    results.Summary(),
		Outcomes:   results.All(),
		FinishedAt: batch.UpdatedAt,
	}
}

// EncodeReport serializes the report and returns the matching content type.
func EncodeReport(report *BatchReport, format string) ([]byte, string, error) {
	switch format {
	case "", FormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		return data, "application/json", err
	case FormatMsgpack:
		data, err := msgpack.Marshal(report)
		return data, "application/msgpack", err
	default:
		return nil, "", fmt.Errorf("unsupported format %q", format)
	}
}
