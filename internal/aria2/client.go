package aria2

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Client is a typed wrapper over the aria2 methods riptide uses.
type Client struct {
	rpc *Transport
}

// NewClient creates a client for the endpoint at url.
func NewClient(url, secret string) *Client {
	return &Client{rpc: NewTransport(url, secret)}
}

// URL returns the daemon endpoint.
func (c *Client) URL() string {
	return c.rpc.URL()
}

func decode[T any](method string, raw json.RawMessage) (T, error) {
	var out T
	if raw == nil {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &TransportError{Method: method, Err: fmt.Errorf("decode result: %w", err)}
	}
	return out, nil
}

// GetVersion is the liveness probe.
func (c *Client) GetVersion(ctx context.Context) (*Version, error) {
	raw, err := c.rpc.Call(ctx, "getVersion")
	if err != nil {
		return nil, err
	}
	v, err := decode[Version]("getVersion", raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// AddURI queues uris (http, ftp or magnet) as one download and returns its gid.
func (c *Client) AddURI(ctx context.Context, uris []string, opts Options) (string, error) {
	params := []any{uris}
	if len(opts) > 0 {
		params = append(params, opts)
	}
	raw, err := c.rpc.Call(ctx, "addUri", params...)
	if err != nil {
		return "", err
	}
	return decode[string]("addUri", raw)
}

// AddTorrent uploads metafile contents and returns the new gid.
func (c *Client) AddTorrent(ctx context.Context, torrent []byte, opts Options) (string, error) {
	params := []any{base64.StdEncoding.EncodeToString(torrent), []string{}}
	if len(opts) > 0 {
		params = append(params, opts)
	}
	raw, err := c.rpc.Call(ctx, "addTorrent", params...)
	if err != nil {
		return "", err
	}
	return decode[string]("addTorrent", raw)
}

// TellStatus returns the status of one gid.
func (c *Client) TellStatus(ctx context.Context, gid string) (*Status, error) {
	raw, err := c.rpc.Call(ctx, "tellStatus", gid, StatusKeys)
	if err != nil {
		return nil, err
	}
	s, err := decode[Status]("tellStatus", raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// TellActive lists active downloads.
func (c *Client) TellActive(ctx context.Context) ([]Status, error) {
	raw, err := c.rpc.Call(ctx, "tellActive", StatusKeys)
	if err != nil {
		return nil, err
	}
	return decode[[]Status]("tellActive", raw)
}

// TellStopped lists up to num stopped downloads starting at offset.
func (c *Client) TellStopped(ctx context.Context, offset, num int) ([]Status, error) {
	raw, err := c.rpc.Call(ctx, "tellStopped", offset, num, StatusKeys)
	if err != nil {
		return nil, err
	}
	return decode[[]Status]("tellStopped", raw)
}

func (c *Client) gidCall(ctx context.Context, method, gid string) (string, error) {
	raw, err := c.rpc.Call(ctx, method, gid)
	if err != nil {
		return "", err
	}
	return decode[string](method, raw)
}

// Remove stops a download gracefully.
func (c *Client) Remove(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, "remove", gid)
}

// ForceRemove stops a download without tracker announcements.
func (c *Client) ForceRemove(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, "forceRemove", gid)
}

// Pause pauses a download.
func (c *Client) Pause(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, "pause", gid)
}

// Unpause resumes a paused download.
func (c *Client) Unpause(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, "unpause", gid)
}
