package aria2

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error,omitempty"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Transport sends JSON-RPC 2.0 calls to one aria2 endpoint. It is stateless
// and never retries.
type Transport struct {
	client *resty.Client
	url    string
	secret string
}

// NewTransport creates a transport for url. An empty secret sends no token.
func NewTransport(url, secret string) *Transport {
	client := resty.New().
		SetTimeout(types.RPCTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Transport{
		client: client,
		url:    url,
		secret: secret,
	}
}

// URL returns the endpoint this transport talks to.
func (t *Transport) URL() string {
	return t.url
}

// Call invokes aria2.<method> with params and returns the raw result.
// A missing or null result is returned as nil.
func (t *Transport) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	args := make([]any, 0, len(params)+1)
	if t.secret != "" {
		args = append(args, "token:"+t.secret)
	}
	args = append(args, params...)

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      types.RPCRequestID,
		Method:  types.RPCMethodSpace + method,
		Params:  args,
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(t.url)
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}

	// aria2 answers RPC errors with HTTP 400, so the body is decoded whatever the status
	var out rpcResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &TransportError{
			Method: method,
			Err:    fmt.Errorf("undecodable response (HTTP %d): %w", resp.StatusCode(), err),
		}
	}

	if len(out.Error) > 0 && string(out.Error) != "null" {
		rpcErr := &RPCError{Method: method, Raw: out.Error}
		var body rpcErrorBody
		if json.Unmarshal(out.Error, &body) == nil {
			rpcErr.Code = body.Code
			rpcErr.Message = body.Message
		} else {
			rpcErr.Message = string(out.Error)
		}
		return nil, rpcErr
	}

	if len(out.Result) == 0 || string(out.Result) == "null" {
		return nil, nil
	}
	return out.Result, nil
}
