package model

import "time"

// Outcome status values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Outcome is the terminal record for one item. Use NewSuccess or NewFailure
// so only one variant is populated.
type Outcome struct {
	Status    string    `json:"status" msgpack:"status"`
	FileName  string    `json:"file_name" msgpack:"file_name"`
	FileType  FileType  `json:"file_type,omitempty" msgpack:"file_type,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
	Content   any       `json:"content,omitempty" msgpack:"content,omitempty"`
	Error     string    `json:"error,omitempty" msgpack:"error,omitempty"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// NewSuccess builds a success outcome.
func NewSuccess(fileName string, fileType FileType, metadata Metadata, content any, ts time.Time) Outcome {
	return Outcome{
		Status:    OutcomeSuccess,
		FileName:  fileName,
		FileType:  fileType,
		Metadata:  metadata,
		Content:   content,
		Timestamp: ts,
	}
}

// NewFailure builds a failure outcome.
func NewFailure(fileName, errMsg string, ts time.Time) Outcome {
	return Outcome{
		Status:    OutcomeFailure,
		FileName:  fileName,
		Error:     errMsg,
		Timestamp: ts,
	}
}

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}
