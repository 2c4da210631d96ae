package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nixj9/construction-doc-processor/model"
)

// Processor turns an item into processed content.
type Processor interface {
	Process(ctx context.Context, item *model.Item) (any, error)
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(ctx context.Context, item *model.Item) (any, error)

func (f ProcessorFunc) Process(ctx context.Context, item *model.Item) (any, error) {
	return f(ctx, item)
}

// Registry maps file types to processors.
type Registry struct {
	mu         sync.RWMutex
	processors map[model.FileType]Processor
}

func NewRegistry() *Registry {
	return &Registry{processors: make(map[model.FileType]Processor)}
}

// Register binds p to fileType, replacing any earlier binding.
func (r *Registry) Register(fileType model.FileType, p Processor) error {
	if fileType == model.FileTypeUnknown || fileType == "" {
		return fmt.Errorf("cannot register processor for file type %q", fileType)
	}
	if p == nil {
		return errors.New("processor is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[fileType] = p
	return nil
}

// Registered reports whether a processor is bound to fileType.
func (r *Registry) Registered(fileType model.FileType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.processors[fileType]
	return ok
}

// Dispatch runs the processor registered for fileType. Unsupported types fail
// before any processor is called.
func (r *Registry) Dispatch(ctx context.Context, fileType model.FileType, item *model.Item) (any, error) {
	r.mu.RLock()
	p, ok := r.processors[fileType]
	r.mu.RUnlock()

	if fileType == model.FileTypeUnknown || !ok {
		return nil, &UnsupportedTypeError{Type: fileType, Extension: Extension(item.Name)}
	}

	content, err := p.Process(ctx, item)
	if err != nil {
		return nil, &DelegateError{Type: fileType, Err: err}
	}
	return content, nil
}
