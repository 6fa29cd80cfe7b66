package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// RPCCall is one recorded JSON-RPC request, with the token already removed.
type RPCCall struct {
	Method string // without the "aria2." namespace
	Params []json.RawMessage
}

// StringParam decodes params[i] as a string, or returns "".
func (c RPCCall) StringParam(i int) string {
	if i >= len(c.Params) {
		return ""
	}
	var s string
	_ = json.Unmarshal(c.Params[i], &s)
	return s
}

// RPCFault is the error object a handler can return.
type RPCFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCHandler answers one method. Params exclude the token.
type RPCHandler func(params []json.RawMessage) (any, *RPCFault)

// FakeAria2 is an in-process stand-in for the aria2 JSON-RPC endpoint.
// It checks the token, records calls and answers from per-method handlers.
type FakeAria2 struct {
	Server *httptest.Server
	Secret string

	mu       sync.Mutex
	calls    []RPCCall
	handlers map[string]RPCHandler
}

// FakeGID is the gid returned by the default addUri/addTorrent handlers.
const FakeGID = "2089b05ecca3d829"

// NewFakeAria2 starts a fake daemon requiring secret (empty disables the check).
func NewFakeAria2(t *testing.T, secret string) *FakeAria2 {
	t.Helper()
	f := &FakeAria2{
		Secret:   secret,
		handlers: make(map[string]RPCHandler),
	}

	f.Result("getVersion", map[string]any{"version": "1.36.0", "enabledFeatures": []string{"BitTorrent"}})
	f.Result("tellActive", []any{})
	f.Result("tellStopped", []any{})
	f.Result("addUri", FakeGID)
	f.Result("addTorrent", FakeGID)
	for _, m := range []string{"remove", "forceRemove", "pause", "unpause"} {
		f.Handle(m, echoGID)
	}
	f.Handle("tellStatus", func(params []json.RawMessage) (any, *RPCFault) {
		var gid string
		if len(params) > 0 {
			_ = json.Unmarshal(params[0], &gid)
		}
		return map[string]any{"gid": gid, "status": "active", "totalLength": "0", "completedLength": "0"}, nil
	})

	f.Server = NewHTTPServerT(t, http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func echoGID(params []json.RawMessage) (any, *RPCFault) {
	var gid string
	if len(params) > 0 {
		_ = json.Unmarshal(params[0], &gid)
	}
	return gid, nil
}

// URL returns the JSON-RPC endpoint.
func (f *FakeAria2) URL() string {
	return f.Server.URL + "/jsonrpc"
}

// Close shuts the daemon down. Later calls fail at the transport level.
func (f *FakeAria2) Close() {
	f.Server.Close()
}

// Handle installs fn for method.
func (f *FakeAria2) Handle(method string, fn RPCHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = fn
}

// Result makes method always succeed with result.
func (f *FakeAria2) Result(method string, result any) {
	f.Handle(method, func([]json.RawMessage) (any, *RPCFault) { return result, nil })
}

// Fault makes method always fail with the given error.
func (f *FakeAria2) Fault(method string, code int, message string) {
	f.Handle(method, func([]json.RawMessage) (any, *RPCFault) {
		return nil, &RPCFault{Code: code, Message: message}
	})
}

// Calls returns recorded calls for method, or all calls when method is "".
func (f *FakeAria2) Calls(method string) []RPCCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RPCCall
	for _, c := range f.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// CallCount returns how many times method was called.
func (f *FakeAria2) CallCount(method string) int {
	return len(f.Calls(method))
}

func (f *FakeAria2) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      json.RawMessage   `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params"`
	}
	if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&req) != nil {
		writeRPC(w, http.StatusBadRequest, nil, nil, &RPCFault{Code: -32700, Message: "Parse error"})
		return
	}

	params := req.Params
	if f.Secret != "" {
		var token string
		if len(params) > 0 {
			_ = json.Unmarshal(params[0], &token)
		}
		if token != "token:"+f.Secret {
			writeRPC(w, http.StatusBadRequest, req.ID, nil, &RPCFault{Code: 1, Message: "Unauthorized"})
			return
		}
		params = params[1:]
	}

	method := strings.TrimPrefix(req.Method, "aria2.")

	f.mu.Lock()
	f.calls = append(f.calls, RPCCall{Method: method, Params: params})
	handler := f.handlers[method]
	f.mu.Unlock()

	if handler == nil {
		writeRPC(w, http.StatusBadRequest, req.ID, nil, &RPCFault{Code: 1, Message: "No such method: " + req.Method})
		return
	}

	result, fault := handler(params)
	if fault != nil {
		// aria2 reports RPC errors with HTTP 400
		writeRPC(w, http.StatusBadRequest, req.ID, nil, fault)
		return
	}
	writeRPC(w, http.StatusOK, req.ID, result, nil)
}

func writeRPC(w http.ResponseWriter, status int, id json.RawMessage, result any, fault *RPCFault) {
	resp := map[string]any{"jsonrpc": "2.0", "id": id}
	if fault != nil {
		resp["error"] = fault
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json-rpc")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
