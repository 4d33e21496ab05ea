package stores

// In-memory implementation of the Task Store (C1): a keyed map from task id
// to Task, guarded by a per-id keyed mutex so concurrent mutations against
// different tasks never block each other.

import (
	"context"
	"sync"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/errors"
	"github.com/theapemachine/a2a-go/pkg/session"
)

// TaskStore is the full surface of C1, including the optional delete used
// only by callers external to the core.
type TaskStore interface {
	session.TaskStore
	Delete(ctx context.Context, id string) error
}

// InMemoryTaskStore keeps every Task in a map protected by a keyed mutex
// (C8), so updates are serialized per task id while unrelated tasks proceed
// in parallel.
type InMemoryTaskStore struct {
	keys *session.KeyedMutex

	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		keys:  session.NewKeyedMutex(),
		tasks: make(map[string]*a2a.Task),
	}
}

// Get returns a projection of the stored task: historyLength limits the
// tail of history returned, includeArtifacts=false drops artifacts.
func (s *InMemoryTaskStore) Get(ctx context.Context, id string, historyLength *int, includeArtifacts bool) (*a2a.Task, error) {
	s.mu.RLock()
	task, ok := s.tasks[id]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.ErrTaskNotFound
	}

	return task.Project(historyLength, includeArtifacts), nil
}

// Put performs a full, atomic replace of the stored task.
func (s *InMemoryTaskStore) Put(ctx context.Context, task *a2a.Task) error {
	var stored *a2a.Task

	s.keys.WithLock(session.TaskKey(task.ID), func() {
		stored = task.Clone()
	})

	s.mu.Lock()
	s.tasks[task.ID] = stored
	s.mu.Unlock()

	return nil
}

// Update performs a guarded read-modify-write: mutations against a single
// id are serialized via the keyed mutex so the mutator always observes and
// writes back a consistent snapshot.
func (s *InMemoryTaskStore) Update(ctx context.Context, id string, mutator func(*a2a.Task) error) (*a2a.Task, error) {
	var result *a2a.Task
	var mutateErr error

	s.keys.WithLock(session.TaskKey(id), func() {
		s.mu.RLock()
		existing, ok := s.tasks[id]
		s.mu.RUnlock()

		if !ok {
			mutateErr = errors.ErrTaskNotFound
			return
		}

		next := existing.Clone()
		if mutateErr = mutator(next); mutateErr != nil {
			return
		}

		s.mu.Lock()
		s.tasks[id] = next
		s.mu.Unlock()

		result = next
	})

	if mutateErr != nil {
		return nil, mutateErr
	}

	return result, nil
}

// Delete removes a task outright. Not used by the core itself; exposed for
// callers outside the request/response cycle (admin tooling, GC).
func (s *InMemoryTaskStore) Delete(ctx context.Context, id string) error {
	s.keys.WithLock(session.TaskKey(id), func() {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
	})

	return nil
}

// getByContext lists every task belonging to contextID, used internally by
// ContextTaskStorage to answer scoped queries.
func (s *InMemoryTaskStore) getByContext(contextID string) []*a2a.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*a2a.Task, 0)
	for _, task := range s.tasks {
		if task.ContextID == contextID {
			out = append(out, task.Clone())
		}
	}

	return out
}

/*
ContextTaskStorage wraps a TaskStore and scopes it to a single contextId,
the form in which the Task Store is exposed to the executor: writes outside
the scope are rejected, and context-wide reads are filtered to it.
*/
type ContextTaskStorage struct {
	store     *InMemoryTaskStore
	contextID string
}

func NewContextTaskStorage(store *InMemoryTaskStore, contextID string) *ContextTaskStorage {
	return &ContextTaskStorage{store: store, contextID: contextID}
}

func (c *ContextTaskStorage) Get(ctx context.Context, id string, historyLength *int, includeArtifacts bool) (*a2a.Task, error) {
	return c.store.Get(ctx, id, historyLength, includeArtifacts)
}

func (c *ContextTaskStorage) Put(ctx context.Context, task *a2a.Task) error {
	if task.ContextID != c.contextID {
		return &session.InvalidEventException{Reason: "task contextId does not match this storage scope"}
	}
	return c.store.Put(ctx, task)
}

func (c *ContextTaskStorage) Update(ctx context.Context, id string, mutator func(*a2a.Task) error) (*a2a.Task, error) {
	return c.store.Update(ctx, id, func(task *a2a.Task) error {
		if task.ContextID != c.contextID {
			return &session.InvalidEventException{Reason: "task contextId does not match this storage scope"}
		}
		return mutator(task)
	})
}

// GetByContext returns every task in scope, left to the caller to sort or
// filter further.
func (c *ContextTaskStorage) GetByContext() []*a2a.Task {
	return c.store.getByContext(c.contextID)
}
