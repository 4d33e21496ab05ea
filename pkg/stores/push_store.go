package stores

// In-memory implementation of the Push-Config Store (C3): a per-task set
// of push-notification configurations, upserted by config id.

import (
	"context"
	"sync"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/errors"
)

// PushConfigStore is the full surface of C3.
type PushConfigStore interface {
	Save(ctx context.Context, taskID string, config a2a.PushNotificationConfig) (a2a.PushNotificationConfig, error)
	Get(ctx context.Context, taskID, configID string) (a2a.PushNotificationConfig, error)
	List(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error)
	Delete(ctx context.Context, taskID, configID string) error
	DeleteAll(ctx context.Context, taskID string) error
}

// InMemoryPushConfigStore keeps configs grouped by task id, each upserted
// by its own id.
type InMemoryPushConfigStore struct {
	mu      sync.RWMutex
	byTask  map[string]map[string]a2a.PushNotificationConfig
}

func NewInMemoryPushConfigStore() *InMemoryPushConfigStore {
	return &InMemoryPushConfigStore{byTask: make(map[string]map[string]a2a.PushNotificationConfig)}
}

// Save upserts a config by its id; an empty id is assigned a fresh one, so
// the caller always gets back the id the config was stored under.
func (s *InMemoryPushConfigStore) Save(ctx context.Context, taskID string, config a2a.PushNotificationConfig) (a2a.PushNotificationConfig, error) {
	if config.ID == "" {
		config.ID = a2a.NewPushConfigID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	configs, ok := s.byTask[taskID]
	if !ok {
		configs = make(map[string]a2a.PushNotificationConfig)
		s.byTask[taskID] = configs
	}
	configs[config.ID] = config

	return config, nil
}

func (s *InMemoryPushConfigStore) Get(ctx context.Context, taskID, configID string) (a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs, ok := s.byTask[taskID]
	if !ok {
		return a2a.PushNotificationConfig{}, errors.ErrTaskNotFound
	}

	config, ok := configs[configID]
	if !ok {
		return a2a.PushNotificationConfig{}, errors.ErrTaskNotFound
	}

	return config, nil
}

// List returns every config registered for a task, order unspecified.
func (s *InMemoryPushConfigStore) List(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := s.byTask[taskID]
	out := make([]a2a.PushNotificationConfig, 0, len(configs))
	for _, config := range configs {
		out = append(out, config)
	}
	return out, nil
}

func (s *InMemoryPushConfigStore) Delete(ctx context.Context, taskID, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configs, ok := s.byTask[taskID]
	if !ok {
		return nil
	}
	delete(configs, configID)
	return nil
}

func (s *InMemoryPushConfigStore) DeleteAll(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byTask, taskID)
	return nil
}
