package internal

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound  = errors.New("application not found")
	ErrMissingID = errors.New("application id is required")
)

// Store keeps application records keyed by their caller-supplied id.
// Put overwrites whole records (last write wins), UpdateStatus touches
// only the review fields.
type Store interface {
	Put(ctx context.Context, app Application) (Application, error)
	All(ctx context.Context) ([]Application, error)
	ByOwner(ctx context.Context, userID string) ([]Application, error)
	UpdateStatus(ctx context.Context, id, status, reviewedBy string) (Application, error)
}

// MemStore is the default process-lifetime store. State is lost on
// restart; set DATABASE_URL for the durable store.
type MemStore struct {
	mu    sync.RWMutex
	apps  map[string]Application
	order []string
}

func NewMemStore() *MemStore {
	return &MemStore{apps: make(map[string]Application)}
}

func (m *MemStore) Put(_ context.Context, app Application) (Application, error) {
	if app.ID == "" {
		return Application{}, ErrMissingID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// overwriting an id keeps its original position
	if _, exists := m.apps[app.ID]; !exists {
		m.order = append(m.order, app.ID)
	}
	m.apps[app.ID] = app
	return app, nil
}

func (m *MemStore) All(_ context.Context) ([]Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Application, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.apps[id])
	}
	return out, nil
}

func (m *MemStore) ByOwner(_ context.Context, userID string) ([]Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Application{}
	for _, id := range m.order {
		if app := m.apps[id]; app.UserID == userID {
			out = append(out, app)
		}
	}
	return out, nil
}

func (m *MemStore) UpdateStatus(_ context.Context, id, status, reviewedBy string) (Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	app.Status = status
	app.ReviewedAt = nowISO()
	app.ReviewedBy = reviewedBy
	m.apps[id] = app
	return app, nil
}
