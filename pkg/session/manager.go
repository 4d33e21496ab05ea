package session

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// PushConfigLister is the slice of the Push-Config Store the monitor needs
// to fan a terminated session's completion out to registered endpoints.
type PushConfigLister interface {
	List(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error)
}

// PushSender fires a best-effort notification to a configured endpoint
// with a task snapshot; failures are logged, never surfaced.
type PushSender interface {
	Send(ctx context.Context, config a2a.PushNotificationConfig, task *a2a.Task) error
}

/*
Manager tracks active sessions keyed by task id (C7): at most one
non-terminal session per task id exists at any time. Its monitor goroutine
rendezvous with any in-flight cancellation via the "cancel" key before
tearing a finished session down, and triggers push delivery for sessions
whose first event was a Task snapshot.
*/
type Manager struct {
	keys  *KeyedMutex
	store TaskStore

	pushConfigs PushConfigLister
	pushSender  PushSender

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(keys *KeyedMutex, store TaskStore, pushConfigs PushConfigLister, pushSender PushSender) *Manager {
	return &Manager{
		keys:        keys,
		store:       store,
		pushConfigs: pushConfigs,
		pushSender:  pushSender,
		sessions:    make(map[string]*Session),
	}
}

/*
AddSession registers a new session and spawns its monitor. It returns a
channel that is closed once the monitor's subscription to session.events
is live — the caller MUST NOT call session.Start() before that signal
fires, or the first event the executor emits can be lost.
*/
func (m *Manager) AddSession(sess *Session) (monitorReady <-chan struct{}, err error) {
	m.mu.Lock()
	if _, exists := m.sessions[sess.TaskID]; exists {
		m.mu.Unlock()
		return nil, &SessionAlreadyExists{TaskID: sess.TaskID}
	}
	m.sessions[sess.TaskID] = sess
	m.mu.Unlock()

	ready := make(chan struct{})
	go m.monitor(sess, ready)

	return ready, nil
}

func (m *Manager) monitor(sess *Session, ready chan<- struct{}) {
	ctx := context.Background()

	events, cancel := sess.processor.Subscribe()
	defer cancel()
	close(ready)

	var firstKind a2a.EventKind
	sawFirst := false

	for event := range events {
		if !sawFirst {
			firstKind = a2a.EventKindOf(event)
			sawFirst = true
		}
	}

	_ = sess.Join(ctx)

	// Rendezvous with any in-flight cancellation before tearing this
	// session down: holding the cancel key blocks until tasks/cancel's
	// executor.Cancel() has finished publishing its final events.
	unlock := m.keys.Lock(CancelKey(sess.TaskID))

	m.mu.Lock()
	delete(m.sessions, sess.TaskID)
	m.mu.Unlock()

	_ = sess.CancelAndJoin(ctx)
	unlock()

	if sawFirst && firstKind == a2a.EventKindTask {
		m.deliverPush(ctx, sess.TaskID)
	}
}

func (m *Manager) deliverPush(ctx context.Context, taskID string) {
	if m.pushConfigs == nil || m.pushSender == nil {
		return
	}

	configs, err := m.pushConfigs.List(ctx, taskID)
	if err != nil || len(configs) == 0 {
		return
	}

	task, err := m.store.Get(ctx, taskID, nil, true)
	if err != nil {
		log.Warn("push delivery: failed to load task snapshot", "task_id", taskID, "error", err)
		return
	}

	for _, cfg := range configs {
		if err := m.pushSender.Send(ctx, cfg, task); err != nil {
			log.Warn("push delivery failed", "task_id", taskID, "config_id", cfg.ID, "error", err)
		}
	}
}

// GetSession returns the live session for a task id, if any.
func (m *Manager) GetSession(taskID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[taskID]
	return sess, ok
}

// RequireSession returns the live session for a task id, or a
// *SessionNotActive error if none is registered; used by call sites that
// need to distinguish "no session" from other failures rather than
// branching on a bool.
func (m *Manager) RequireSession(taskID string) (*Session, error) {
	sess, ok := m.GetSession(taskID)
	if !ok {
		return nil, &SessionNotActive{TaskID: taskID}
	}
	return sess, nil
}

// ActiveSessions reports the number of currently tracked sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}
