package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Sandboxed CI often lacks an IPv6 loopback, so every helper binds tcp4.
func listenLoopback4() (net.Listener, error) {
	return net.Listen("tcp4", "127.0.0.1:0")
}

func startOn(ln net.Listener, handler http.Handler) *httptest.Server {
	srv := &httptest.Server{
		Listener: ln,
		Config:   &http.Server{Handler: handler},
	}
	srv.Start()
	return srv
}

// NewHTTPServer starts a loopback server, falling back to httptest's own
// listener when tcp4 is unavailable.
func NewHTTPServer(handler http.Handler) *httptest.Server {
	ln, err := listenLoopback4()
	if err != nil {
		return httptest.NewServer(handler)
	}
	return startOn(ln, handler)
}

// NewHTTPServerT is NewHTTPServer for tests that cannot run without a
// loopback listener: the test is skipped instead.
func NewHTTPServerT(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := listenLoopback4()
	if err != nil {
		t.Skipf("tcp4 listener unavailable: %v", err)
		return nil
	}
	return startOn(ln, handler)
}

// ClosedURL returns the URL of a server that has already shut down, for
// exercising unreachable endpoints.
func ClosedURL(t *testing.T) string {
	t.Helper()
	srv := NewHTTPServerT(t, http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}
