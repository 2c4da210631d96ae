package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nixj9/construction-doc-processor/config"
	"github.com/nixj9/construction-doc-processor/model"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create zip entry: %v", err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// fakeMineru serves task creation, status polling and the result ZIP.
type fakeMineru struct {
	server      *httptest.Server
	statusCalls atomic.Int32
	runningFor  int32
	finalState  string
	zip         []byte
	lastRequest MineruTaskRequest
}

func newFakeMineru(t *testing.T, runningFor int32, finalState string, zipData []byte) *fakeMineru {
	f := &fakeMineru{runningFor: runningFor, finalState: finalState, zip: zipData}
	mux := http.NewServeMux()
	mux.HandleFunc("/extract/task", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Error("Expected Authorization header")
		}
		json.NewDecoder(r.Body).Decode(&f.lastRequest)
		resp := MineruTaskResponse{Code: 0}
		resp.Data.TaskID = "task-1"
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/extract/task/task-1", func(w http.ResponseWriter, r *http.Request) {
		n := f.statusCalls.Add(1)
		resp := MineruTaskStatusResponse{Code: 0}
		resp.Data.TaskID = "task-1"
		switch {
		case n <= f.runningFor:
			resp.Data.State = "running"
		case f.finalState == "done":
			resp.Data.State = "done"
			resp.Data.FullZipURL = f.server.URL + "/result.zip"
			resp.Data.ExtractProgress.TotalPages = 3
		default:
			resp.Data.State = f.finalState
			resp.Data.ErrorMsg = "file is encrypted"
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/result.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(f.zip)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newTestMineru(apiURL string, store ObjectStore) *MineruService {
	svc := NewMineruService(&config.MineruConfig{
		APIURL:          apiURL,
		APIToken:        "test-token",
		ModelVersion:    "vlm",
		MaxPollAttempts: 5,
	}, store)
	svc.pollInterval = 5 * time.Millisecond
	return svc
}

func TestNewMineruService(t *testing.T) {
	cfg := &config.MineruConfig{APIURL: "https://api.mineru.test", PollIntervalSeconds: 2}
	svc := NewMineruService(cfg, nil)
	if svc.config != cfg {
		t.Error("Expected config to be set")
	}
	if svc.httpClient == nil {
		t.Error("Expected httpClient to be set")
	}
	if svc.pollInterval != 2*time.Second {
		t.Errorf("Expected poll interval 2s, got %v", svc.pollInterval)
	}
	if NewMineruService(&config.MineruConfig{}, nil).pollInterval <= 0 {
		t.Error("Expected a positive default poll interval")
	}
}

func TestMineruServiceProcess(t *testing.T) {
	zipData := buildZip(t, map[string]string{
		"out/images/readme.txt": "ignored",
		"out/model.json":        `{"kind":"model"}`,
		"out/content_list.json": `[{"type":"text","text":"Section 1"}]`,
	})
	fake := newFakeMineru(t, 1, "done", zipData)
	store := newMemObjectStore()
	svc := newTestMineru(fake.server.URL, store)

	item := &model.Item{ID: "item-1", Name: "schedule.pdf", Data: []byte("%PDF-1.7")}
	content, err := svc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if item.ObjectName != "" {
		t.Errorf("Expected item to be left unchanged, got ObjectName '%s'", item.ObjectName)
	}
	if !strings.HasSuffix(fake.lastRequest.URL, "adhoc/item-1/schedule.pdf") || fake.lastRequest.DataID != "item-1" {
		t.Errorf("Unexpected task request: %+v", fake.lastRequest)
	}
	if len(store.objects) != 0 {
		t.Errorf("Expected ad-hoc upload to be removed, found %d objects", len(store.objects))
	}

	result, ok := content.(*MineruResult)
	if !ok {
		t.Fatalf("Expected *MineruResult, got %T", content)
	}
	if result.TaskID != "task-1" || result.Pages != 3 {
		t.Errorf("Unexpected result: %+v", result)
	}
	list, ok := result.Data.([]any)
	if !ok || len(list) != 1 {
		t.Errorf("Expected content_list.json to be preferred, got %v", result.Data)
	}
	if fake.statusCalls.Load() != 2 {
		t.Errorf("Expected 2 status polls, got %d", fake.statusCalls.Load())
	}
}

func TestMineruServiceProcessArchivedItem(t *testing.T) {
	fake := newFakeMineru(t, 0, "done", buildZip(t, map[string]string{"content_list.json": `[]`}))
	store := newMemObjectStore()
	store.objects["site-a/b1/item-1/schedule.pdf"] = []byte("%PDF-1.7")
	svc := newTestMineru(fake.server.URL, store)

	item := &model.Item{ID: "item-1", Name: "schedule.pdf", ObjectName: "site-a/b1/item-1/schedule.pdf", Data: []byte("%PDF-1.7")}
	if _, err := svc.Process(context.Background(), item); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !strings.HasSuffix(fake.lastRequest.URL, "site-a/b1/item-1/schedule.pdf") {
		t.Errorf("Expected archived object to be submitted, got %s", fake.lastRequest.URL)
	}
	if len(store.objects) != 1 {
		t.Error("Expected archived batch object to be kept")
	}
}

func TestPipelineWithMineruLeavesItemUnchanged(t *testing.T) {
	fake := newFakeMineru(t, 0, "done", buildZip(t, map[string]string{"content_list.json": `[]`}))
	store := newMemObjectStore()

	registry := NewRegistry()
	registry.Register(model.FileTypeText, newTestMineru(fake.server.URL, store))
	pipeline := NewPipeline(registry, NewFileMetadataExtractor())

	item := &model.Item{ID: "id1", Name: "schedule.pdf", Size: 8, Data: []byte("%PDF-1.7")}
	before := *item

	results := NewResultLog()
	if err := pipeline.Run(context.Background(), []*model.Item{item}, results); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !results.All()[0].Succeeded() {
		t.Fatalf("Expected success, got %+v", results.All()[0])
	}
	if item.ID != before.ID || item.Name != before.Name || item.ObjectName != before.ObjectName ||
		item.ContentType != before.ContentType || string(item.Data) != string(before.Data) {
		t.Errorf("Submitted item changed: before %+v, after %+v", before, *item)
	}
	if len(store.objects) != 0 {
		t.Errorf("Expected no objects left behind, found %d", len(store.objects))
	}
}

func TestMineruServiceProcessTaskFailed(t *testing.T) {
	fake := newFakeMineru(t, 1, "failed", nil)
	svc := newTestMineru(fake.server.URL, newMemObjectStore())

	_, err := svc.Process(context.Background(), &model.Item{ID: "i", Name: "a.pdf", Data: []byte("x")})
	if err == nil || !strings.Contains(err.Error(), "file is encrypted") {
		t.Errorf("Expected MinerU failure message, got %v", err)
	}
}

func TestMineruServiceProcessTimeout(t *testing.T) {
	fake := newFakeMineru(t, 100, "done", nil)
	svc := newTestMineru(fake.server.URL, newMemObjectStore())

	_, err := svc.Process(context.Background(), &model.Item{ID: "i", Name: "a.pdf", Data: []byte("x")})
	if err == nil || !strings.Contains(err.Error(), "timed out after 5 attempts") {
		t.Errorf("Expected timeout error, got %v", err)
	}
}

func TestMineruServiceProcessWithoutStore(t *testing.T) {
	svc := newTestMineru("http://unused", nil)
	if _, err := svc.Process(context.Background(), &model.Item{Name: "a.pdf"}); err == nil {
		t.Error("Expected error without object storage")
	}
}

func TestMineruServiceProcessContextCancelled(t *testing.T) {
	fake := newFakeMineru(t, 100, "done", nil)
	svc := newTestMineru(fake.server.URL, newMemObjectStore())
	svc.pollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Process(ctx, &model.Item{ID: "i", Name: "a.pdf", Data: []byte("x")}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestMineruServiceCreateTaskError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(MineruTaskResponse{Code: 1, Message: "API error"})
	}))
	defer server.Close()

	svc := newTestMineru(server.URL, nil)
	_, err := svc.CreateTask(context.Background(), "http://example.com/test.pdf", "data-123")
	if err == nil || !strings.Contains(err.Error(), "API error") {
		t.Errorf("Expected API error, got %v", err)
	}
}

func TestMineruServiceInvalidResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	svc := newTestMineru(server.URL, nil)
	ctx := context.Background()

	if _, err := svc.CreateTask(ctx, "http://example.com/test.pdf", "d"); err == nil {
		t.Error("Expected error for invalid create response")
	}
	if _, err := svc.GetTaskStatus(ctx, "task-123"); err == nil {
		t.Error("Expected error for invalid status response")
	}
	if _, err := svc.FetchZipAndExtractJSON(ctx, server.URL); err == nil {
		t.Error("Expected error for invalid ZIP")
	}
}

func TestMineruServiceGetTaskStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract/task/invalid-task" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(MineruTaskStatusResponse{Code: 1, Message: "Task not found"})
	}))
	defer server.Close()

	svc := newTestMineru(server.URL, nil)
	if _, err := svc.GetTaskStatus(context.Background(), "invalid-task"); err == nil {
		t.Error("Expected error for API error response")
	}
}

func TestMineruServiceFetchZipFallbackAndMissing(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr bool
	}{
		{"fallback json", map[string]string{"x/layout.json": `{"pages":1}`}, false},
		{"broken preferred file", map[string]string{"content_list.json": `{`, "other.json": `{"ok":true}`}, false},
		{"no json", map[string]string{"full.md": "# Title"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildZip(t, tt.files)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(data)
			}))
			defer server.Close()

			svc := newTestMineru(server.URL, nil)
			_, err := svc.FetchZipAndExtractJSON(context.Background(), server.URL)
			if (err != nil) != tt.wantErr {
				t.Errorf("FetchZipAndExtractJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMineruServiceNetworkErrors(t *testing.T) {
	svc := newTestMineru("http://invalid-host-that-does-not-exist:9999", nil)
	ctx := context.Background()

	if _, err := svc.CreateTask(ctx, "http://example.com/test.pdf", "d"); err == nil {
		t.Error("Expected error for network failure")
	}
	if _, err := svc.GetTaskStatus(ctx, "task-123"); err == nil {
		t.Error("Expected error for network failure")
	}
	if _, err := svc.FetchZipAndExtractJSON(ctx, "http://invalid-host-that-does-not-exist:9999/test.zip"); err == nil {
		t.Error("Expected error for network failure")
	}
}
