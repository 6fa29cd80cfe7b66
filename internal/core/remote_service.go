package core

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/surge-downloader/riptide/internal/engine/events"
	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/utils"
)

// RemoteDownloadService implements DownloadService against a riptide API server.
type RemoteDownloadService struct {
	BaseURL string
	Token   string

	client    *resty.Client
	sseClient *resty.Client
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewRemoteDownloadService creates a new remote service instance.
func NewRemoteDownloadService(baseURL string, token string) *RemoteDownloadService {
	baseURL = strings.TrimSuffix(baseURL, "/")
	ctx, cancel := context.WithCancel(context.Background())

	newClient := func() *resty.Client {
		c := resty.New().SetBaseURL(baseURL)
		if token != "" {
			c.SetAuthToken(token)
		}
		return c
	}

	return &RemoteDownloadService{
		BaseURL:   baseURL,
		Token:     token,
		client:    newClient().SetTimeout(30 * time.Second),
		sseClient: newClient(), // No timeout: the stream is long-lived
		ctx:       ctx,
		cancel:    cancel,
	}
}

// request prepares a call bound to both ctx and the service lifetime.
func (s *RemoteDownloadService) request(ctx context.Context) (*resty.Request, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return s.client.R().SetContext(merged), func() {
		stop()
		cancel()
	}
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 1024 {
			body = body[:1024]
		}
		return fmt.Errorf("API error %d: %s", resp.StatusCode(), strings.TrimSpace(body))
	}
	return nil
}

// List returns the server's overview.
func (s *RemoteDownloadService) List(ctx context.Context) (*types.Overview, error) {
	req, done := s.request(ctx)
	defer done()

	var overview types.Overview
	if err := checkResponse(req.SetResult(&overview).Get("/downloads")); err != nil {
		return nil, err
	}
	return &overview, nil
}

// Add submits entries to the server.
func (s *RemoteDownloadService) Add(ctx context.Context, entries []types.Entry) ([]types.EntryResult, error) {
	req, done := s.request(ctx)
	defer done()

	var results []types.EntryResult
	if err := checkResponse(req.SetBody(entries).SetResult(&results).Post("/downloads")); err != nil {
		return nil, err
	}
	return results, nil
}

// Pause pauses a daemon job.
func (s *RemoteDownloadService) Pause(ctx context.Context, gid string) error {
	req, done := s.request(ctx)
	defer done()
	return checkResponse(req.Post("/downloads/" + url.PathEscape(gid) + "/pause"))
}

// Resume resumes a paused daemon job.
func (s *RemoteDownloadService) Resume(ctx context.Context, gid string) error {
	req, done := s.request(ctx)
	defer done()
	return checkResponse(req.Post("/downloads/" + url.PathEscape(gid) + "/resume"))
}

// Remove removes a daemon job.
func (s *RemoteDownloadService) Remove(ctx context.Context, gid string, force bool) error {
	req, done := s.request(ctx)
	defer done()
	if force {
		req.SetQueryParam("force", "true")
	}
	return checkResponse(req.Delete("/downloads/" + url.PathEscape(gid)))
}

// Detach drops a slot on the server.
func (s *RemoteDownloadService) Detach(ctx context.Context, gid string) (bool, error) {
	req, done := s.request(ctx)
	defer done()

	var out struct {
		Detached bool `json:"detached"`
	}
	if err := checkResponse(req.SetResult(&out).Delete("/slots/" + url.PathEscape(gid))); err != nil {
		return false, err
	}
	return out.Detached, nil
}

// Shutdown stops the service.
func (s *RemoteDownloadService) Shutdown() error {
	s.cancel()
	return nil
}

// StreamEvents returns a channel that receives real-time download events via SSE.
func (s *RemoteDownloadService) StreamEvents(ctx context.Context) (<-chan any, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan any, types.ProgressChannelBuffer)
	go s.streamWithReconnect(ctx, ch)
	return ch, cancel, nil
}

func (s *RemoteDownloadService) streamWithReconnect(ctx context.Context, ch chan any) {
	defer close(ch)
	backoff := 1 * time.Second
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ctx.Done():
			return
		default:
		}

		err := s.connectSSE(ctx, ch)
		if err == nil {
			return // Clean shutdown (e.g. server closed stream cleanly or context canceled during request)
		}
		utils.Debug("event stream disconnected: %v", err)

		// Check context again before sleeping
		select {
		case <-s.ctx.Done():
			return
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			// Continue
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *RemoteDownloadService) connectSSE(ctx context.Context, ch chan any) error {
	merged, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	resp, err := s.sseClient.R().
		SetContext(merged).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		Get("/events")
	if err != nil {
		if merged.Err() != nil {
			return nil
		}
		return err
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("failed to connect to event stream: %s", resp.Status())
	}

	reader := bufio.NewReader(body)
	for {
		eventType := ""
		var dataLines []string

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if merged.Err() != nil {
					return nil
				}
				return err
			}
			line = strings.TrimRight(line, "\r\n")

			// Blank line dispatches event
			if line == "" {
				break
			}
			// Comment/heartbeat
			if strings.HasPrefix(line, ":") {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if strings.HasPrefix(line, "data:") {
				dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
				continue
			}
		}

		if eventType == "" || len(dataLines) == 0 {
			continue
		}

		msg, err := events.Decode(eventType, []byte(strings.Join(dataLines, "\n")))
		if err != nil {
			utils.Debug("skipping event %q: %v", eventType, err)
			continue
		}

		select {
		case ch <- msg:
		case <-merged.Done():
			return nil
		}
	}
}
