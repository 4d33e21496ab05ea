/*
Package logging configures the process-wide structured logger used
throughout a2a-go. Call sites log directly through charmbracelet/log
("github.com/charmbracelet/log") the way the rest of the codebase does;
this package only owns startup configuration and the helpers for
attaching request-scoped fields (task id, context id, session) to a
derived logger.
*/
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Init configures the default charmbracelet logger's level and caller
// reporting. Call once at process startup.
func Init(level string, reportCaller bool) {
	log.SetOutput(os.Stderr)
	log.SetReportCaller(reportCaller)
	log.SetReportTimestamp(true)

	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}

	log.SetLevel(parsed)
}

// Task returns a logger with task_id and context_id fields pre-attached,
// for use along a single task's lifecycle.
func Task(taskID, contextID string) *log.Logger {
	return log.With("task_id", taskID, "context_id", contextID)
}

// Session returns a logger with a session field pre-attached, for use by
// the Session Manager and its monitor goroutines.
func Session(taskID string) *log.Logger {
	return log.With("session", taskID)
}
