package aria2

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TransportError means the daemon could not be reached or answered with
// something that is not a JSON-RPC response.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("aria2 %s: transport: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RPCError is a JSON-RPC error object returned by the daemon. Raw holds the
// error payload verbatim.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Raw     json.RawMessage
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("aria2 %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRPC reports whether err is, or wraps, an RPCError.
func IsRPC(err error) bool {
	var re *RPCError
	return errors.As(err, &re)
}
