package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nixj9/construction-doc-processor/config"
	"github.com/nixj9/construction-doc-processor/model"
)

type batchEntry struct {
	batch   *model.Batch
	results *ResultLog
	cancel  context.CancelFunc
}

func (e *batchEntry) snapshot() *model.Batch {
	b := *e.batch
	b.Processed = e.results.Len()
	return &b
}

// BatchStore keeps batches and their result logs for the process lifetime.
// Each batch owns its own ResultLog.
type BatchStore struct {
	batches    map[string]*batchEntry
	mu         sync.RWMutex
	maxBatches int // Maximum batches to keep, 0 = unlimited
}

var (
	globalStore *BatchStore
	storeOnce   sync.Once
)

func NewBatchStore(maxBatches int) *BatchStore {
	if maxBatches < 0 {
		maxBatches = 0
	}
	return &BatchStore{
		batches:    make(map[string]*batchEntry),
		maxBatches: maxBatches,
	}
}

// InitBatchStore initializes the global batch store with configuration
func InitBatchStore(cfg *config.StoreConfig) {
	storeOnce.Do(func() {
		globalStore = NewBatchStore(cfg.MaxBatches)
		slog.Info("batch store initialized", "max_batches", globalStore.maxBatches)
	})
}

// GetBatchStore returns the global batch store
func GetBatchStore() *BatchStore {
	storeOnce.Do(func() {
		globalStore = NewBatchStore(100)
	})
	return globalStore
}

// Save stores batch with a fresh result log and returns the log.
func (s *BatchStore) Save(batch *model.Batch) *ResultLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch.UpdatedAt = time.Now()
	results := NewResultLog()
	s.batches[batch.ID] = &batchEntry{batch: batch, results: results}

	s.cleanupIfNeeded()
	return results
}

// Get returns a snapshot of the batch, or nil.
func (s *BatchStore) Get(id string) *model.Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.batches[id]
	if !ok {
		return nil
	}
	return e.snapshot()
}

// Results returns the result log of the batch, or nil.
func (s *BatchStore) Results(id string) *ResultLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.batches[id]; ok {
		return e.results
	}
	return nil
}

// GetByTenant returns snapshots of the tenant's batches, newest first.
func (s *BatchStore) GetByTenant(tenant string) []*model.Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Batch
	for _, e := range s.batches {
		if e.batch.Tenant == tenant {
			result = append(result, e.snapshot())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// SetCancel attaches the cancel func of the batch's running context.
func (s *BatchStore) SetCancel(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.batches[id]; ok {
		e.cancel = cancel
	}
}

// Cancel stops a running batch between items. It reports whether a cancel
// func was found.
func (s *BatchStore) Cancel(id string) bool {
	s.mu.RLock()
	e, ok := s.batches[id]
	s.mu.RUnlock()
	if !ok || e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

// Delete cancels and removes the batch.
func (s *BatchStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.batches[id]; ok {
		if e.cancel != nil {
			e.cancel()
		}
		delete(s.batches, id)
	}
}

func (s *BatchStore) UpdateStatus(id, status string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.batches[id]; ok {
		e.batch.Status = status
		e.batch.ErrorMsg = errMsg
		e.batch.UpdatedAt = time.Now()
	}
}

// cleanupIfNeeded removes oldest batches if store exceeds maxBatches
// Must be called with lock held
func (s *BatchStore) cleanupIfNeeded() {
	if s.maxBatches <= 0 {
		return // Unlimited
	}

	if len(s.batches) <= s.maxBatches {
		return
	}

	entries := make([]*batchEntry, 0, len(s.batches))
	for _, e := range s.batches {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].batch.CreatedAt.Before(entries[j].batch.CreatedAt)
	})

	removeCount := len(entries) - s.maxBatches
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old batch",
			"batch_id", entries[i].batch.ID,
			"status", entries[i].batch.Status,
			"created_at", entries[i].batch.CreatedAt,
		)
		if entries[i].cancel != nil {
			entries[i].cancel()
		}
		delete(s.batches, entries[i].batch.ID)
	}
}

// Count returns the number of batches in the store
func (s *BatchStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.batches)
}
