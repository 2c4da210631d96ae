package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nixj9/construction-doc-processor/model"
	"github.com/nixj9/construction-doc-processor/pkg/logger"
)

// Pipeline processes a batch of items one at a time, in submission order.
type Pipeline struct {
	registry *Registry
	metadata *MetadataAdapter

	// Now stamps outcomes. Defaults to time.Now.
	Now func() time.Time
	// OnOutcome, if set, is called after each outcome is appended.
	OnOutcome func(index int, o model.Outcome)
}

func NewPipeline(registry *Registry, extractor MetadataExtractor) *Pipeline {
	return &Pipeline{
		registry: registry,
		metadata: NewMetadataAdapter(extractor),
		Now:      time.Now,
	}
}

// Run appends exactly one outcome per item to results, in order. A failing
// item never stops the batch. The submission is rejected with ErrInvalidItem
// before anything is processed if any item is nil or unnamed.
//
// Cancellation is checked between items: an item already started runs to
// completion, and every item not yet started is recorded as a failure. Run
// then returns the context error.
func (p *Pipeline) Run(ctx context.Context, items []*model.Item, results *ResultLog) error {
	if results == nil {
		return errors.New("result log is nil")
	}
	for i, item := range items {
		if item == nil {
			return fmt.Errorf("%w: item %d is nil", ErrInvalidItem, i)
		}
		if item.Name == "" {
			return fmt.Errorf("%w: item %d has no name", ErrInvalidItem, i)
		}
	}

	itemCtx := context.WithoutCancel(ctx)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			logger.Warn(ctx, "batch cancelled", "processed", i, "remaining", len(items)-i, "error", err)
			for j := i; j < len(items); j++ {
				p.record(results, j, model.NewFailure(items[j].Name, "batch cancelled: "+err.Error(), p.Now()))
			}
			return err
		}
		p.record(results, i, p.processItem(itemCtx, item))
	}
	return nil
}

func (p *Pipeline) processItem(ctx context.Context, item *model.Item) model.Outcome {
	log := logger.WithContext(ctx).With("file", item.Name)
	log.Debug("item pending")

	fileType := Classify(item.Name)

	md, err := p.metadata.Extract(ctx, item)
	if err != nil {
		log.Warn("metadata extraction failed", "error", err)
		return model.NewFailure(item.Name, err.Error(), p.Now())
	}
	log.Debug("item metadata extracted")
	log.Debug("item classified", "file_type", fileType)

	content, err := p.registry.Dispatch(ctx, fileType, item)
	if err != nil {
		var unsupported *UnsupportedTypeError
		if errors.As(err, &unsupported) {
			log.Info("item rejected", "file_type", fileType, "error", err)
		} else {
			log.Warn("item processing failed", "file_type", fileType, "error", err)
		}
		return model.NewFailure(item.Name, err.Error(), p.Now())
	}
	log.Debug("item dispatched", "file_type", fileType)

	return model.NewSuccess(item.Name, fileType, md, content, p.Now())
}

func (p *Pipeline) record(results *ResultLog, index int, o model.Outcome) {
	results.Append(o)
	if p.OnOutcome != nil {
		p.OnOutcome(index, o)
	}
}
