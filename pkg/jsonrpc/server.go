package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-go/pkg/errors"
)

// MethodFunc handles one JSON-RPC method. It receives the raw params and
// returns either a result to marshal or an error; *errors.RpcError values
// are sent as-is, any other error is folded into ErrInternal so internals
// never leak into the wire message.
type MethodFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher routes JSON-RPC requests to registered MethodFuncs and
// marshals the envelope. It carries no transport of its own: callers feed
// it raw request bytes and get raw response bytes back, whether those
// arrived over HTTP, a WebSocket, or a test harness.
type Dispatcher struct {
	methods map[string]MethodFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{methods: make(map[string]MethodFunc)}
}

func (d *Dispatcher) Register(method string, fn MethodFunc) {
	d.methods[method] = fn
}

// Dispatch handles a single request or a batch (array) and returns the
// response body. It returns nil when every request in the batch was a
// notification (no id) and thus produced no response.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) []byte {
	body = bytes.TrimSpace(body)

	if len(body) == 0 {
		return mustMarshal(NewErrorResponse(nil, errors.ErrInvalidRequest))
	}

	if body[0] == '[' {
		var batch []Request

		if err := json.Unmarshal(body, &batch); err != nil {
			return mustMarshal(NewErrorResponse(nil, errors.ErrParseError))
		}

		var responses []Response

		for _, req := range batch {
			resp := d.handle(ctx, req)
			if req.ID != nil {
				responses = append(responses, resp)
			}
		}

		if len(responses) == 0 {
			return nil
		}

		return mustMarshal(responses)
	}

	var req Request

	if err := json.Unmarshal(body, &req); err != nil {
		return mustMarshal(NewErrorResponse(nil, errors.ErrParseError))
	}

	resp := d.handle(ctx, req)

	if req.ID == nil {
		return nil
	}

	return mustMarshal(resp)
}

func (d *Dispatcher) handle(ctx context.Context, req Request) Response {
	if req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, errors.ErrInvalidRequest)
	}

	fn, ok := d.methods[req.Method]
	if !ok {
		return NewErrorResponse(req.ID, errors.ErrMethodNotFound)
	}

	result, err := fn(ctx, req.Params)
	if err != nil {
		if rpcErr, ok := err.(*errors.RpcError); ok {
			return NewErrorResponse(req.ID, rpcErr)
		}

		log.Error("jsonrpc method failed", "method", req.Method, "error", err)
		return NewErrorResponse(req.ID, errors.ErrInternal)
	}

	return NewResultResponse(req.ID, result)
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error("jsonrpc: failed to marshal response", "error", err)
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"Internal error"}}`)
	}
	return b
}
