package jsonrpc

import "github.com/theapemachine/a2a-go/pkg/errors"

// Response is a JSON-RPC 2.0 response envelope. Result and Error are
// mutually exclusive per the spec; Dispatch never sets both.
type Response struct {
	Message
	Result any              `json:"result,omitempty"`
	Error  *errors.RpcError `json:"error,omitempty"`
}

func NewResultResponse(id any, result any) Response {
	return Response{
		Message: Message{JSONRPC: "2.0", MessageIdentifier: MessageIdentifier{ID: id}},
		Result:  result,
	}
}

func NewErrorResponse(id any, rpcErr *errors.RpcError) Response {
	if rpcErr == nil {
		rpcErr = errors.ErrInternal
	}
	return Response{
		Message: Message{JSONRPC: "2.0", MessageIdentifier: MessageIdentifier{ID: id}},
		Error:   rpcErr,
	}
}
