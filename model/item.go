package model

// FileType is the classification assigned to an uploaded file.
type FileType string

const (
	FileTypeDrawing FileType = "drawing"
	FileTypeText    FileType = "text"
	FileTypeUnknown FileType = "unknown"
)

// Item is a single uploaded file. The pipeline only reads it.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	ObjectName  string `json:"object_name,omitempty"` // archive location in object storage
	Data        []byte `json:"-"`
}

// Metadata holds the attributes extracted for an item.
type Metadata map[string]any
