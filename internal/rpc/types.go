// Package rpc holds the JSON-RPC 2.0 vocabulary shared by the router, the
// upstream backend and the HTTP proxy, plus a small HTTP client for talking
// to Ethereum node endpoints.
package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the only JSON-RPC protocol version accepted or emitted.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes used by the proxy.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ErrInvalidRequest is returned (wrapped) when an inbound request is missing
// jsonrpc, method or params, or is not a JSON-RPC 2.0 object at all.
var ErrInvalidRequest = errors.New("invalid JSON-RPC request")

// =============================================================================
// SECTION 1: Request envelope
// =============================================================================
//
// Params are kept as raw JSON values. The router only ever looks at one or two
// positions of the list and the proxy forwards the caller's original bytes, so
// there is no reason to decode every argument into Go values.
//
//	{"jsonrpc":"2.0","method":"eth_getBalance","params":["0xabc...","0x64"],"id":7}
// =============================================================================

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id,omitempty"`
}

// NewRequest builds a request for method with params marshalled to JSON.
// A nil params list is sent as [] rather than null.
func NewRequest(id int, method string, params ...interface{}) (*Request, error) {
	raw := make([]json.RawMessage, 0, len(params))
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal param %d of %s: %w", i, method, err)
		}
		raw = append(raw, b)
	}

	return &Request{
		JSONRPC: Version,
		Method:  method,
		Params:  raw,
		ID:      json.RawMessage(fmt.Sprintf("%d", id)),
	}, nil
}

// DecodeRequest parses and validates a single JSON-RPC request body.
// Every failure wraps ErrInvalidRequest.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks the fields routing cannot proceed without.
func (r *Request) Validate() error {
	switch {
	case r.JSONRPC == "":
		return fmt.Errorf("%w: missing jsonrpc", ErrInvalidRequest)
	case r.JSONRPC != Version:
		return fmt.Errorf("%w: unsupported jsonrpc version %q", ErrInvalidRequest, r.JSONRPC)
	case r.Method == "":
		return fmt.Errorf("%w: missing method", ErrInvalidRequest)
	case r.Params == nil:
		return fmt.Errorf("%w: missing params", ErrInvalidRequest)
	}
	return nil
}

// Param returns the raw value at index i, or nil when the position is absent.
func (r *Request) Param(i int) json.RawMessage {
	if i < 0 || i >= len(r.Params) {
		return nil
	}
	return r.Params[i]
}

// IDOrNull returns the request id, or the JSON literal null when the caller
// sent none. Error envelopes always carry an id member.
func (r *Request) IDOrNull() json.RawMessage {
	if r == nil || len(bytes.TrimSpace(r.ID)) == 0 {
		return json.RawMessage("null")
	}
	return r.ID
}

// =============================================================================
// SECTION 2: Response envelope
// =============================================================================

// Response is a JSON-RPC 2.0 response. Result stays raw; its shape depends on
// the method that was called.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a JSON-RPC response.
//
// Ethereum nodes use the standard codes (-32700..-32603) plus their own
// server range (-32000 for execution reverted, header not found, ...). The
// proxy additionally reports upstream HTTP failures with the HTTP status as
// the code, matching what callers of the relay already expect.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// NewErrorResponse builds an error envelope for id.
func NewErrorResponse(id json.RawMessage, code int, message string, data interface{}) *Response {
	if len(bytes.TrimSpace(id)) == 0 {
		id = json.RawMessage("null")
	}
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}
