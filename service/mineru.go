package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nixj9/construction-doc-processor/config"
	"github.com/nixj9/construction-doc-processor/model"
)

// MineruService extracts text-like documents through the MinerU API.
type MineruService struct {
	config       *config.MineruConfig
	store        ObjectStore
	httpClient   *http.Client
	pollInterval time.Duration
}

// MineruTaskRequest represents the request to create an extraction task
type MineruTaskRequest struct {
	URL          string `json:"url"`
	ModelVersion string `json:"model_version"`
	DataID       string `json:"data_id,omitempty"`
}

// MineruTaskResponse represents the response from task creation
type MineruTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// MineruTaskStatusResponse represents the task status query response
type MineruTaskStatusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	TraceID string `json:"trace_id"`
	Data    struct {
		TaskID          string `json:"task_id"`
		DataID          string `json:"data_id"`
		State           string `json:"state"` // pending, running, done, failed, converting
		FullZipURL      string `json:"full_zip_url,omitempty"`
		ErrorMsg        string `json:"err_msg,omitempty"`
		ModelVersion    string `json:"model_version,omitempty"`
		ExtractProgress struct {
			ExtractedPages int    `json:"extracted_pages"`
			TotalPages     int    `json:"total_pages"`
			StartTime      string `json:"start_time"`
		} `json:"extract_progress,omitempty"`
	} `json:"data"`
}

// MineruResult is the processed content of a text item.
type MineruResult struct {
	TaskID string `json:"task_id" msgpack:"task_id"`
	Pages  int    `json:"pages,omitempty" msgpack:"pages,omitempty"`
	Data   any    `json:"data" msgpack:"data"`
}

func NewMineruService(cfg *config.MineruConfig, store ObjectStore) *MineruService {
	interval := time.Duration(cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &MineruService{
		config: cfg,
		store:  store,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		pollInterval: interval,
	}
}

// Process archives the item if needed, submits it to MinerU and waits for
// the extracted JSON.
func (s *MineruService) Process(ctx context.Context, item *model.Item) (any, error) {
	if s.store == nil {
		return nil, errors.New("MinerU requires object storage, but minio is not configured")
	}

	objectName := item.ObjectName
	if objectName == "" {
		name, err := ArchiveItem(ctx, s.store, "adhoc/", item)
		if err != nil {
			return nil, err
		}
		objectName = name
		defer s.removeAdhoc(ctx, objectName)
	}

	fileURL, err := s.store.GetPresignedURL(ctx, objectName)
	if err != nil {
		return nil, err
	}

	task, err := s.CreateTask(ctx, fileURL, item.ID)
	if err != nil {
		return nil, err
	}
	slog.Info("mineru task created", "file", item.Name, "task_id", task.Data.TaskID)

	return s.pollTaskResult(ctx, task.Data.TaskID)
}

// removeAdhoc deletes an object uploaded only for one extraction call.
func (s *MineruService) removeAdhoc(ctx context.Context, objectName string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.store.DeletePrefix(cleanupCtx, objectName); err != nil {
		slog.Warn("failed to delete ad-hoc object", "object", objectName, "error", err)
	}
}

func (s *MineruService) pollTaskResult(ctx context.Context, taskID string) (*MineruResult, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for i := 0; i < s.config.MaxPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		status, err := s.GetTaskStatus(ctx, taskID)
		if err != nil {
			slog.Warn("failed to get mineru task status", "task_id", taskID, "attempt", i+1, "error", err)
			continue
		}

		switch status.Data.State {
		case "done":
			if status.Data.FullZipURL == "" {
				return nil, fmt.Errorf("MinerU task %s finished without a result", taskID)
			}
			data, err := s.FetchZipAndExtractJSON(ctx, status.Data.FullZipURL)
			if err != nil {
				return nil, err
			}
			return &MineruResult{
				TaskID: taskID,
				Pages:  status.Data.ExtractProgress.TotalPages,
				Data:   data,
			}, nil
		case "failed":
			return nil, fmt.Errorf("MinerU task failed: %s", status.Data.ErrorMsg)
		default:
			slog.Debug("mineru task in progress",
				"task_id", taskID,
				"state", status.Data.State,
				"pages", status.Data.ExtractProgress.ExtractedPages,
			)
		}
	}

	return nil, fmt.Errorf("MinerU task %s timed out after %d attempts", taskID, s.config.MaxPollAttempts)
}

// CreateTask creates a new extraction task
func (s *MineruService) CreateTask(ctx context.Context, fileURL, dataID string) (*MineruTaskResponse, error) {
	reqBody := MineruTaskRequest{
		URL:          fileURL,
		ModelVersion: s.config.ModelVersion,
		DataID:       dataID,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/extract/task", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	var result MineruTaskResponse
	if err := s.do(req, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("MinerU API error: %s", result.Message)
	}

	return &result, nil
}

// GetTaskStatus queries the status of a task
func (s *MineruService) GetTaskStatus(ctx context.Context, taskID string) (*MineruTaskStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/extract/task/%s", s.config.APIURL, taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Accept", "*/*")

	var result MineruTaskStatusResponse
	if err := s.do(req, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("MinerU API error: %s", result.Message)
	}

	return &result, nil
}

func (s *MineruService) do(req *http.Request, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	slog.Debug("mineru response", "url", req.URL.Path, "status", resp.StatusCode, "body_size", len(body))

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}
	return nil
}

// FetchZipAndExtractJSON downloads the ZIP file and extracts the JSON content
func (s *MineruService) FetchZipAndExtractJSON(ctx context.Context, zipURL string) (any, error) {
	zipData, err := s.download(ctx, zipURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download ZIP: %w", err)
	}
	slog.Debug("mineru zip downloaded", "size", len(zipData))

	zipReader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP: %w", err)
	}

	// Preferred result files first, then any JSON file.
	for _, target := range []string{"content_list.json", "middle.json", "model.json", ".json"} {
		for _, file := range zipReader.File {
			if !strings.HasSuffix(file.Name, target) {
				continue
			}
			data, err := readZipJSON(file)
			if err != nil {
				slog.Debug("skipping zip entry", "name", file.Name, "error", err)
				continue
			}
			slog.Debug("mineru result parsed", "name", file.Name)
			return data, nil
		}
	}

	return nil, fmt.Errorf("no valid JSON file found in ZIP")
}

func (s *MineruService) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func readZipJSON(file *zip.File) (any, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	var data any
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, err
	}
	return data, nil
}
