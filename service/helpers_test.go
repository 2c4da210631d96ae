package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/nixj9/construction-doc-processor/model"
)

// countingProcessor records every item it is asked to process.
type countingProcessor struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (p *countingProcessor) Process(ctx context.Context, item *model.Item) (any, error) {
	p.mu.Lock()
	p.names = append(p.names, item.Name)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return "content of " + item.Name, nil
}

func (p *countingProcessor) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.names)
}

// countingExtractor returns fixed metadata, or err for names in failFor.
type countingExtractor struct {
	mu      sync.Mutex
	calls   int
	failFor map[string]error
}

func (e *countingExtractor) Extract(ctx context.Context, item *model.Item) (model.Metadata, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if err, ok := e.failFor[item.Name]; ok {
		return nil, err
	}
	return model.Metadata{"name": item.Name}, nil
}

type memObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
}

func (m *memObjectStore) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	return nil
}

func (m *memObjectStore) GetPresignedURL(ctx context.Context, objectName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[objectName]; !ok {
		return "", errors.New("object not found: " + objectName)
	}
	return "http://objects.test/" + objectName, nil
}

func (m *memObjectStore) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			delete(m.objects, name)
		}
	}
	return nil
}

func items(names ...string) []*model.Item {
	out := make([]*model.Item, len(names))
	for i, name := range names {
		out[i] = &model.Item{ID: name, Name: name, Size: int64(len(name)), Data: []byte(name)}
	}
	return out
}
