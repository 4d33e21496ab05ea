package a2a

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	fiberClient "github.com/gofiber/fiber/v3/client"
	"github.com/theapemachine/a2a-go/pkg/jsonrpc"
)

/*
Client is an A2A protocol HTTP client talking JSON-RPC 2.0 over a fiber
client. It wraps message/send, message/stream, tasks/get, tasks/cancel,
tasks/resubscribe and tasks/pushNotificationConfig/set; the push-config
get/list/delete methods and agent/getAuthenticatedExtendedCard have no
wrapper here.
*/
type Client struct {
	baseURL string
	conn    *fiberClient.Client
	nextID  int
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		conn:    fiberClient.New().SetBaseURL(baseURL),
	}
}

func (client *Client) doRequest(ctx context.Context, method string, params any, result any) error {
	client.nextID++

	req, err := jsonrpc.NewRequest(client.nextID, method, params)
	if err != nil {
		return err
	}

	res, err := client.conn.Post(
		"/rpc",
		fiberClient.Config{
			Header: map[string]string{
				"Content-Type": "application/json",
			},
			Body: req,
		},
	)

	if err != nil {
		return err
	}

	var resp jsonrpc.Response
	if err := json.Unmarshal(res.Body(), &resp); err != nil {
		return err
	}

	if resp.Error != nil {
		return resp.Error
	}

	if result == nil {
		return nil
	}

	b, err := json.Marshal(resp.Result)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, result)
}

// SendMessage calls message/send.
func (client *Client) SendMessage(ctx context.Context, params MessageSendParams) (*Task, *Message, error) {
	var raw json.RawMessage

	if err := client.doRequest(ctx, "message/send", params, &raw); err != nil {
		return nil, nil, err
	}

	var task Task
	if err := json.Unmarshal(raw, &task); err == nil && task.ID != "" {
		return &task, nil, nil
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, nil, err
	}

	return nil, &msg, nil
}

// GetTask calls tasks/get.
func (client *Client) GetTask(ctx context.Context, params TaskQueryParams) (*Task, error) {
	var task Task
	if err := client.doRequest(ctx, "tasks/get", params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask calls tasks/cancel.
func (client *Client) CancelTask(ctx context.Context, params TaskIDParams) (*Task, error) {
	var task Task
	if err := client.doRequest(ctx, "tasks/cancel", params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// SetPushNotificationConfig calls tasks/pushNotificationConfig/set.
func (client *Client) SetPushNotificationConfig(ctx context.Context, params TaskPushNotificationConfig) (*TaskPushNotificationConfig, error) {
	var cfg TaskPushNotificationConfig
	if err := client.doRequest(ctx, "tasks/pushNotificationConfig/set", params, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

/*
StreamMessage calls message/stream, which replies with the first event
synchronously over /rpc, then subscribes to that task's SSE stream at
/events to forward every event after it. It returns once the task reaches
a final state or ctx is canceled.
*/
func (client *Client) StreamMessage(ctx context.Context, params MessageSendParams, eventChan chan<- Event) error {
	var raw json.RawMessage
	if err := client.doRequest(ctx, "message/stream", params, &raw); err != nil {
		return err
	}

	first, err := DecodeEvent(raw)
	if err != nil {
		return fmt.Errorf("decode first stream event: %w", err)
	}

	if !deliver(ctx, eventChan, first) {
		return ctx.Err()
	}

	taskID := first.(TaskInfoProvider).TaskInfo().TaskID
	if taskID == "" {
		return nil
	}

	return client.subscribeEvents(ctx, taskID, eventChan)
}

// Resubscribe calls tasks/resubscribe and streams the task's events the
// same way StreamMessage does.
func (client *Client) Resubscribe(ctx context.Context, params TaskIDParams, eventChan chan<- Event) error {
	var raw json.RawMessage
	if err := client.doRequest(ctx, "tasks/resubscribe", params, &raw); err != nil {
		return err
	}

	first, err := DecodeEvent(raw)
	if err != nil {
		return fmt.Errorf("decode first stream event: %w", err)
	}

	if !deliver(ctx, eventChan, first) {
		return ctx.Err()
	}

	return client.subscribeEvents(ctx, params.ID, eventChan)
}

// subscribeEvents reads the task-scoped SSE stream frame by frame, decoding
// each "event: <kind>\ndata: <json>\n\n" frame and forwarding it to
// eventChan. It returns when the task emits a final status update, the
// stream closes, or ctx is canceled.
func (client *Client) subscribeEvents(ctx context.Context, taskID string, eventChan chan<- Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		client.baseURL+"/events?taskId="+url.QueryEscape(taskID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" || strings.HasPrefix(trimmed, ":") || strings.HasPrefix(trimmed, "event: ") {
			continue
		}

		payload, ok := strings.CutPrefix(trimmed, "data: ")
		if !ok {
			continue
		}

		event, err := DecodeEvent(json.RawMessage(payload))
		if err != nil {
			log.Error("failed to decode streamed event", "error", err)
			continue
		}

		if !deliver(ctx, eventChan, event) {
			return ctx.Err()
		}

		if statusEvent, ok := event.(TaskStatusUpdateEvent); ok && statusEvent.Final {
			return nil
		}
	}
}

func deliver(ctx context.Context, eventChan chan<- Event, event Event) bool {
	select {
	case eventChan <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
