package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nixj9/construction-doc-processor/config"
	"github.com/nixj9/construction-doc-processor/model"
	"github.com/nixj9/construction-doc-processor/pkg/logger"
)

// BuildRegistry registers the processors enabled in cfg. store may be nil
// when object storage is not configured.
func BuildRegistry(cfg *config.Config, store ObjectStore) (*Registry, error) {
	registry := NewRegistry()

	switch cfg.Text.Backend {
	case config.TextBackendDocconv:
		if err := registry.Register(model.FileTypeText, NewDocconvProcessor(cfg.Text.UseReadability)); err != nil {
			return nil, err
		}
	case config.TextBackendMineru:
		if err := registry.Register(model.FileTypeText, NewMineruService(&cfg.Mineru, store)); err != nil {
			return nil, err
		}
	case config.TextBackendNone:
	default:
		return nil, fmt.Errorf("unknown text backend %q", cfg.Text.Backend)
	}

	if cfg.Drawing.APIURL != "" {
		if err := registry.Register(model.FileTypeDrawing, NewDrawingService(&cfg.Drawing)); err != nil {
			return nil, err
		}
	}

	slog.Info("processors registered",
		"text", registry.Registered(model.FileTypeText),
		"text_backend", cfg.Text.Backend,
		"drawing", registry.Registered(model.FileTypeDrawing),
	)
	return registry, nil
}

// BatchRunner runs submitted batches in the background and tracks them in
// a BatchStore.
type BatchRunner struct {
	store     *BatchStore
	pipeline  *Pipeline
	publisher ResultPublisher
	timeout   time.Duration
}

func NewBatchRunner(store *BatchStore, pipeline *Pipeline, publisher ResultPublisher, timeout time.Duration) *BatchRunner {
	return &BatchRunner{
		store:     store,
		pipeline:  pipeline,
		publisher: publisher,
		timeout:   timeout,
	}
}

// Start saves the batch and processes items asynchronously. The batch
// outlives ctx; only DELETE or the batch timeout stop it.
func (r *BatchRunner) Start(ctx context.Context, batch *model.Batch, items []*model.Item) {
	results := r.store.Save(batch)

	runCtx := context.WithValue(context.WithoutCancel(ctx), logger.BatchIDKey, batch.ID)
	var cancel context.CancelFunc
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, r.timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	r.store.SetCancel(batch.ID, cancel)

	go func() {
		defer cancel()
		r.run(runCtx, batch.ID, items, results)
	}()
}

func (r *BatchRunner) run(ctx context.Context, batchID string, items []*model.Item, results *ResultLog) {
	r.store.UpdateStatus(batchID, model.StatusProcessing, "")
	logger.Info(ctx, "batch processing started", "files", len(items))

	err := r.pipeline.Run(ctx, items, results)

	status, errMsg := model.StatusCompleted, ""
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status, errMsg = model.StatusCancelled, "batch cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		status, errMsg = model.StatusFailed, "batch timed out"
	default:
		status, errMsg = model.StatusFailed, err.Error()
	}
	r.store.UpdateStatus(batchID, status, errMsg)

	summary := results.Summary()
	logger.Info(ctx, "batch processing finished",
		"status", status,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)

	r.publish(ctx, batchID, results)
}

func (r *BatchRunner) publish(ctx context.Context, batchID string, results *ResultLog) {
	if r.publisher == nil {
		return
	}
	batch := r.store.Get(batchID)
	if batch == nil {
		return // deleted while running
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, NewBatchReport(batch, results)); err != nil {
		logger.Error(ctx, "failed to publish batch report", "error", err)
	}
}
