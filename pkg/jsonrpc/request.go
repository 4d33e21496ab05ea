package jsonrpc

import "encoding/json"

// Request is a JSON-RPC 2.0 request envelope. Params is kept as a raw
// message so a Dispatcher can decide the concrete type per method, and so
// a client can build an envelope from an already-marshaled payload.
type Request struct {
	Message
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewRequest marshals params and wraps them in a JSON-RPC 2.0 envelope.
func NewRequest(id any, method string, params any) (Request, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return Request{}, err
		}
		raw = b
	}

	return Request{
		Message: Message{JSONRPC: "2.0", MessageIdentifier: MessageIdentifier{ID: id}},
		Method:  method,
		Params:  raw,
	}, nil
}
