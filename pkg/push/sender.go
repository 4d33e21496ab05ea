package push

// HTTP delivery for the Push Sender (C4): a single best-effort POST per
// configured endpoint after a task's session completes. Failures are
// logged by the caller (the Session Manager); this package never retries
// since a retry would re-enter the session teardown path that triggered it.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// HTTPSender posts a task snapshot to a configured webhook, signing the
// request with SenderAuth unless the config already carries its own
// bearer credential.
type HTTPSender struct {
	auth   *SenderAuth
	client *http.Client
}

func NewHTTPSender(auth *SenderAuth) *HTTPSender {
	return &HTTPSender{
		auth:   auth,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send satisfies session.PushSender.
func (s *HTTPSender) Send(ctx context.Context, config a2a.PushNotificationConfig, task *a2a.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := s.authenticate(req, config, task.ID); err != nil {
		return err
	}

	if config.Token != nil {
		req.Header.Set("X-Task-Token", *config.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}

	return nil
}

func (s *HTTPSender) authenticate(req *http.Request, config a2a.PushNotificationConfig, taskID string) error {
	if config.Authentication != nil && config.Authentication.Credentials != nil {
		for _, scheme := range config.Authentication.Schemes {
			if scheme == "Bearer" {
				req.Header.Set("Authorization", "Bearer "+*config.Authentication.Credentials)
				return nil
			}
		}
	}

	if s.auth == nil {
		return nil
	}

	token, err := s.auth.SignTask(taskID)
	if err != nil {
		return fmt.Errorf("sign push token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return nil
}
