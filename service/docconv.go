package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/nixj9/construction-doc-processor/model"
)

// TextResult is the processed content of a text item converted locally.
type TextResult struct {
	Text  string            `json:"text" msgpack:"text"`
	Meta  map[string]string `json:"meta,omitempty" msgpack:"meta,omitempty"`
	MSecs int64             `json:"msecs" msgpack:"msecs"`
}

// DocconvProcessor extracts plain text with docconv. PDF and DOC conversion
// need the pdftotext and wvText tools on PATH.
type DocconvProcessor struct {
	useReadability bool
}

func NewDocconvProcessor(useReadability bool) *DocconvProcessor {
	return &DocconvProcessor{useReadability: useReadability}
}

func (p *DocconvProcessor) Process(ctx context.Context, item *model.Item) (any, error) {
	start := time.Now()

	if Extension(item.Name) == "txt" {
		if !utf8.Valid(item.Data) {
			return nil, fmt.Errorf("%s is not valid UTF-8 text", item.Name)
		}
		return &TextResult{
			Text:  string(item.Data),
			MSecs: time.Since(start).Milliseconds(),
		}, nil
	}

	mimeType := docconv.MimeTypeByExtension(item.Name)
	res, err := docconv.Convert(bytes.NewReader(item.Data), mimeType, p.useReadability)
	if err != nil {
		return nil, fmt.Errorf("docconv: extraction failed for %s (%s): %w", item.Name, mimeType, err)
	}
	if strings.TrimSpace(res.Body) == "" {
		return nil, fmt.Errorf("docconv: extracted empty text from %s", item.Name)
	}

	return &TextResult{
		Text:  res.Body,
		Meta:  res.Meta,
		MSecs: time.Since(start).Milliseconds(),
	}, nil
}
