package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/WessleyAI/storyscout/engine/domain"
)

// Memory is an in-process Store. ScanAll returns posts in first-insertion order.
type Memory struct {
	mu    sync.RWMutex
	docs  map[string]map[string]any
	order []string
	log   *slog.Logger
}

// NewMemory creates an empty in-memory store.
func NewMemory(log *slog.Logger) *Memory {
	if log == nil {
		log = slog.Default()
	}
	return &Memory{docs: make(map[string]map[string]any), log: log}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]map[string]any)
	m.order = nil
	return nil
}

func (m *Memory) Put(_ context.Context, p domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(p.ID, toDocument(p))
	return nil
}

func (m *Memory) PutAll(_ context.Context, posts []domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range posts {
		m.put(p.ID, toDocument(p))
	}
	return nil
}

// PutDocument stores a raw document under its id, bypassing Post encoding.
func (m *Memory) PutDocument(id string, doc map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(id, doc)
}

// put must be called with mu held.
func (m *Memory) put(id string, doc map[string]any) {
	if _, ok := m.docs[id]; !ok {
		m.order = append(m.order, id)
	}
	m.docs[id] = doc
}

func (m *Memory) ScanAll(_ context.Context) ([]domain.Post, error) {
	m.mu.RLock()
	docs := make([]map[string]any, 0, len(m.order))
	for _, id := range m.order {
		docs = append(docs, m.docs[id])
	}
	m.mu.RUnlock()
	return decodeAll(m.log, BackendMemory, docs), nil
}

// Len returns the number of stored documents, malformed ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *Memory) Close(_ context.Context) error { return nil }
