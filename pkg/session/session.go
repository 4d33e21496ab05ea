package session

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// SessionState is one node of the Session lifecycle state machine.
type SessionState string

const (
	SessionCreated   SessionState = "created"
	SessionRunning   SessionState = "running"
	SessionCompleted SessionState = "completed"
	SessionFailed    SessionState = "failed"
	SessionCanceling SessionState = "canceling"
	SessionCanceled  SessionState = "canceled"
)

/*
Session binds one Event Processor to one lazy agent computation (C6).

	CREATED ── start() ──▶ RUNNING ── executor returns ──▶ COMPLETED
	                          │── executor throws ──▶ FAILED
	                          └── cancelAndJoin() ──▶ CANCELING ──▶ CANCELED

Exactly one of Execute's return value or a cancellation drives the
terminal state. An error from Execute is kept only on FAILED and is what
Join returns; it is nil on COMPLETED/CANCELED.
*/
type Session struct {
	TaskID    string
	ContextID string

	executor  AgentExecutor
	reqCtx    *RequestContext
	processor *EventProcessor

	mu    sync.Mutex
	state SessionState
	err   error

	startOnce sync.Once
	done      chan struct{} // closed once the executor goroutine returns

	cancelCtx    context.Context
	cancelCancel context.CancelFunc
}

func NewSession(taskID, contextID string, executor AgentExecutor, reqCtx *RequestContext, processor *EventProcessor) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		TaskID:       taskID,
		ContextID:    contextID,
		executor:     executor,
		reqCtx:       reqCtx,
		processor:    processor,
		state:        SessionCreated,
		done:         make(chan struct{}),
		cancelCtx:    ctx,
		cancelCancel: cancel,
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Processor exposes the session's Event Processor so the Request Handler
// can attach follow-up subscriptions (message/stream, tasks/resubscribe)
// without going through the Session Manager.
func (s *Session) Processor() *EventProcessor {
	return s.processor
}

// Start transitions CREATED -> RUNNING and launches the executor. It is a
// no-op if the session has already been started.
func (s *Session) Start(parent context.Context) {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.state = SessionRunning
		s.mu.Unlock()

		go s.run(parent)
	})
}

func (s *Session) run(parent context.Context) {
	defer close(s.done)

	err := s.executor.Execute(s.cancelCtx, s.reqCtx, s.processor)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == SessionCanceling:
		s.state = SessionCanceled
	case err != nil:
		s.state = SessionFailed
		s.err = err
		log.Error("agent executor failed", "task_id", s.TaskID, "error", err)
	default:
		s.state = SessionCompleted
	}

	s.processor.Close()
}

// Join suspends until the computation has terminated. The executor
// goroutine closes the Event Processor before it signals termination, so
// once Join returns no further events are delivered to subscribers; it does
// not wait for subscribers to read what is already buffered.
func (s *Session) Join(ctx context.Context) error {
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

/*
CancelAndJoin requests cooperative cancellation, waits for the executor to
observe it (by invoking Cancel, which itself should emit a final status
event and return), then closes the Event Processor. It is idempotent:
calling it on an already-terminal session only closes the processor.
*/
func (s *Session) CancelAndJoin(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case SessionCompleted, SessionFailed, SessionCanceled:
		s.mu.Unlock()
		s.processor.Close()
		return nil
	case SessionCanceling:
		s.mu.Unlock()
		<-s.done
		return nil
	case SessionCreated:
		// Never started: nothing to cancel: go straight to canceled.
		s.state = SessionCanceled
		s.mu.Unlock()
		s.processor.Close()
		return nil
	}
	s.state = SessionCanceling
	s.mu.Unlock()

	if err := s.executor.Cancel(s.cancelCtx, s.reqCtx, s.processor); err != nil {
		log.Warn("agent executor cancel failed", "task_id", s.TaskID, "error", err)
	}
	s.cancelCancel()

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}
