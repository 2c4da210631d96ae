package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/nixj9/construction-doc-processor/model"
)

// MetadataExtractor produces metadata for an item.
type MetadataExtractor interface {
	Extract(ctx context.Context, item *model.Item) (model.Metadata, error)
}

// MetadataExtractorFunc adapts a plain function to MetadataExtractor.
type MetadataExtractorFunc func(ctx context.Context, item *model.Item) (model.Metadata, error)

func (f MetadataExtractorFunc) Extract(ctx context.Context, item *model.Item) (model.Metadata, error) {
	return f(ctx, item)
}

// MetadataAdapter gives any extractor a uniform error contract: every
// failure comes back as *ExtractionError.
type MetadataAdapter struct {
	extractor MetadataExtractor
}

func NewMetadataAdapter(extractor MetadataExtractor) *MetadataAdapter {
	return &MetadataAdapter{extractor: extractor}
}

func (a *MetadataAdapter) Extract(ctx context.Context, item *model.Item) (model.Metadata, error) {
	md, err := a.extractor.Extract(ctx, item)
	if err != nil {
		var extErr *ExtractionError
		if errors.As(err, &extErr) {
			return nil, extErr
		}
		return nil, &ExtractionError{Err: err}
	}
	if md == nil {
		md = model.Metadata{}
	}
	return md, nil
}

// FileMetadataExtractor reads metadata from the item bytes.
type FileMetadataExtractor struct{}

func NewFileMetadataExtractor() *FileMetadataExtractor {
	return &FileMetadataExtractor{}
}

func (e *FileMetadataExtractor) Extract(ctx context.Context, item *model.Item) (model.Metadata, error) {
	if len(item.Data) == 0 {
		return nil, fmt.Errorf("cannot read metadata of %s: file is empty", item.Name)
	}

	sum := sha256.Sum256(item.Data)
	contentType := item.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(item.Data)
	}

	md := model.Metadata{
		"name":         item.Name,
		"extension":    Extension(item.Name),
		"size":         len(item.Data),
		"size_mb":      math.Round(float64(len(item.Data))/1024/1024*100) / 100,
		"content_type": contentType,
		"sha256":       hex.EncodeToString(sum[:]),
	}

	if t, ok := captureTime(item.Name, item.Data); ok {
		md["capture_time"] = t.Format(time.RFC3339)
	}
	return md, nil
}

// captureTime reads the EXIF capture date from photos and scans.
func captureTime(name string, data []byte) (time.Time, bool) {
	ext := Extension(name)
	if http.DetectContentType(data) != "image/jpeg" && ext != "tif" && ext != "tiff" {
		return time.Time{}, false
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return time.Time{}, false
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
