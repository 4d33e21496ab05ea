package stores

// In-memory implementation of the Message Store (C2): per-context
// conversation history, insertion order preserved and observable.

import (
	"sync"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/session"
)

// MessageStore is the full surface of C2.
type MessageStore interface {
	Save(message *a2a.Message) error
	GetByContext(contextID string) []a2a.Message
	DeleteByContext(contextID string)
	ReplaceByContext(contextID string, messages []a2a.Message)
}

// InMemoryMessageStore keeps conversation history grouped by contextId.
type InMemoryMessageStore struct {
	mu       sync.RWMutex
	byContext map[string][]a2a.Message
}

func NewInMemoryMessageStore() *InMemoryMessageStore {
	return &InMemoryMessageStore{byContext: make(map[string][]a2a.Message)}
}

// Save appends a message to its context's history, preserving insertion
// order.
func (s *InMemoryMessageStore) Save(message *a2a.Message) error {
	if message.ContextID == nil {
		return &session.InvalidEventException{Reason: "message has no contextId"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contextID := *message.ContextID
	s.byContext[contextID] = append(s.byContext[contextID], *message)
	return nil
}

func (s *InMemoryMessageStore) GetByContext(contextID string) []a2a.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.byContext[contextID]
	out := make([]a2a.Message, len(messages))
	copy(out, messages)
	return out
}

func (s *InMemoryMessageStore) DeleteByContext(contextID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byContext, contextID)
}

func (s *InMemoryMessageStore) ReplaceByContext(contextID string, messages []a2a.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replacement := make([]a2a.Message, len(messages))
	copy(replacement, messages)
	s.byContext[contextID] = replacement
}

/*
ContextMessageStorage wraps a MessageStore and scopes it to a single
contextId: save rejects a message whose contextId differs from the
wrapper's scope, the shape in which the Message Store is exposed to the
executor.
*/
type ContextMessageStorage struct {
	store     *InMemoryMessageStore
	contextID string
}

func NewContextMessageStorage(store *InMemoryMessageStore, contextID string) *ContextMessageStorage {
	return &ContextMessageStorage{store: store, contextID: contextID}
}

func (c *ContextMessageStorage) Save(message *a2a.Message) error {
	if message.ContextID == nil || *message.ContextID != c.contextID {
		return &session.InvalidEventException{Reason: "message contextId does not match this storage scope"}
	}
	return c.store.Save(message)
}

func (c *ContextMessageStorage) GetByContext() []a2a.Message {
	return c.store.GetByContext(c.contextID)
}

func (c *ContextMessageStorage) DeleteByContext() {
	c.store.DeleteByContext(c.contextID)
}

func (c *ContextMessageStorage) ReplaceByContext(messages []a2a.Message) {
	c.store.ReplaceByContext(c.contextID, messages)
}
