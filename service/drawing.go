package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"time"

	"github.com/nixj9/construction-doc-processor/config"
	"github.com/nixj9/construction-doc-processor/model"
)

// DrawingService converts CAD and BIM files through a remote conversion API.
type DrawingService struct {
	config     *config.DrawingConfig
	httpClient *http.Client
}

// DrawingResponse is the envelope returned by the conversion API.
type DrawingResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func NewDrawingService(cfg *config.DrawingConfig) *DrawingService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &DrawingService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *DrawingService) Process(ctx context.Context, item *model.Item) (any, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", path.Base(item.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(item.Data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	_ = mw.WriteField("format", Extension(item.Name))
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/convert", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if s.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result DrawingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("drawing API returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.Code != 0 {
		if result.Message == "" {
			result.Message = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("drawing API error: %s", result.Message)
	}

	slog.Debug("drawing converted", "file", item.Name, "size", len(result.Data))

	var data any
	if len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to parse drawing data: %w", err)
		}
	}
	return data, nil
}
