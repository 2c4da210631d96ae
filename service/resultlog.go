package service

import (
	"sync"

	"github.com/nixj9/construction-doc-processor/model"
)

// ResultLog is an append-only, ordered list of outcomes. The pipeline is its
// only writer; readers may call All while a batch is running.
type ResultLog struct {
	mu       sync.RWMutex
	outcomes []model.Outcome
}

func NewResultLog() *ResultLog {
	return &ResultLog{}
}

func (l *ResultLog) Append(o model.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, o)
}

// All returns a copy of the outcomes in insertion order.
func (l *ResultLog) All() []model.Outcome {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Outcome, len(l.outcomes))
	copy(out, l.outcomes)
	return out
}

func (l *ResultLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.outcomes)
}

// Summary counts outcomes by status.
type Summary struct {
	Total     int `json:"total" msgpack:"total"`
	Succeeded int `json:"succeeded" msgpack:"succeeded"`
	Failed    int `json:"failed" msgpack:"failed"`
}

func (l *ResultLog) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := Summary{Total: len(l.outcomes)}
	for _, o := range l.outcomes {
		if o.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
