// Package testutil provides testing utilities for riptide.
package testutil

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// MockServer is a configurable HTTP file server for direct transfer tests.
type MockServer struct {
	Server *httptest.Server

	// Configuration
	FileSize       int64         // Size of the served file
	ContentType    string        // Content-Type header value
	Filename       string        // Filename in Content-Disposition header
	RandomData     bool          // If true, serve random data; otherwise serve zeros
	Latency        time.Duration // Artificial latency per request
	ByteLatency    time.Duration // Latency per 32KB chunk (simulates slow connection)
	FailAfterBytes int64         // Abort the body after this many bytes (0 = no fail)
	StatusCode     int           // Respond with this status and no body (0 = 200)
	HideLength     bool          // Omit Content-Length so the size is unknown

	// Tracking
	RequestCount atomic.Int64
	BytesServed  atomic.Int64

	data          []byte
	CustomHandler http.HandlerFunc
}

// MockServerOption is a function that configures a MockServer.
type MockServerOption func(*MockServer)

// WithHandler sets a custom request handler.
func WithHandler(h http.HandlerFunc) MockServerOption {
	return func(m *MockServer) {
		m.CustomHandler = h
	}
}

// WithFileSize sets the file size to serve.
func WithFileSize(size int64) MockServerOption {
	return func(m *MockServer) {
		m.FileSize = size
	}
}

// WithBody serves exactly body instead of generated data.
func WithBody(body []byte) MockServerOption {
	return func(m *MockServer) {
		m.data = body
		m.FileSize = int64(len(body))
	}
}

// WithContentType sets the Content-Type header.
func WithContentType(ct string) MockServerOption {
	return func(m *MockServer) {
		m.ContentType = ct
	}
}

// WithFilename sets the filename in Content-Disposition header.
// An empty name omits the header.
func WithFilename(name string) MockServerOption {
	return func(m *MockServer) {
		m.Filename = name
	}
}

// WithRandomData enables serving random bytes instead of zeros.
func WithRandomData(random bool) MockServerOption {
	return func(m *MockServer) {
		m.RandomData = random
	}
}

// WithLatency adds artificial latency per request.
func WithLatency(d time.Duration) MockServerOption {
	return func(m *MockServer) {
		m.Latency = d
	}
}

// WithByteLatency adds artificial latency per chunk served.
func WithByteLatency(d time.Duration) MockServerOption {
	return func(m *MockServer) {
		m.ByteLatency = d
	}
}

// WithFailAfterBytes causes the connection to drop after serving N bytes.
func WithFailAfterBytes(n int64) MockServerOption {
	return func(m *MockServer) {
		m.FailAfterBytes = n
	}
}

// WithStatus makes every request fail with code.
func WithStatus(code int) MockServerOption {
	return func(m *MockServer) {
		m.StatusCode = code
	}
}

// WithUnknownLength omits Content-Length.
func WithUnknownLength() MockServerOption {
	return func(m *MockServer) {
		m.HideLength = true
	}
}

func newMockServer(opts []MockServerOption) *MockServer {
	m := &MockServer{
		FileSize:    1024 * 1024, // 1MB default
		ContentType: "application/octet-stream",
		Filename:    "testfile.bin",
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.data == nil {
		m.data = make([]byte, m.FileSize)
		if m.RandomData {
			_, _ = rand.Read(m.data)
		}
	}
	return m
}

// NewMockServer creates a new mock HTTP server with the given options.
func NewMockServer(opts ...MockServerOption) *MockServer {
	m := newMockServer(opts)
	m.Server = NewHTTPServer(http.HandlerFunc(m.handleRequest))
	return m
}

// NewMockServerT creates a new mock HTTP server and skips the test if binding fails.
func NewMockServerT(t *testing.T, opts ...MockServerOption) *MockServer {
	t.Helper()
	m := newMockServer(opts)
	m.Server = NewHTTPServerT(t, http.HandlerFunc(m.handleRequest))
	t.Cleanup(m.Close)
	return m
}

// URL returns the server's URL.
func (m *MockServer) URL() string {
	return m.Server.URL
}

// Data returns the bytes the server serves.
func (m *MockServer) Data() []byte {
	return m.data
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	if m.Server != nil {
		m.Server.Close()
	}
}

func (m *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	if m.CustomHandler != nil {
		m.CustomHandler(w, r)
		return
	}

	m.RequestCount.Add(1)

	if m.Latency > 0 {
		time.Sleep(m.Latency)
	}

	if m.StatusCode != 0 && m.StatusCode != http.StatusOK {
		http.Error(w, http.StatusText(m.StatusCode), m.StatusCode)
		return
	}

	w.Header().Set("Content-Type", m.ContentType)
	if !m.HideLength {
		w.Header().Set("Content-Length", strconv.FormatInt(m.FileSize, 10))
	}
	if m.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, m.Filename))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	flusher, _ := w.(http.Flusher)
	written := int64(0)
	chunkSize := int64(32 * 1024)
	for written < m.FileSize {
		if m.FailAfterBytes > 0 && written >= m.FailAfterBytes {
			// Hijack and drop the connection so the client sees a short body
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
				}
			}
			return
		}

		end := written + chunkSize
		if end > m.FileSize {
			end = m.FileSize
		}
		n, err := w.Write(m.data[written:end])
		if err != nil {
			return // Client disconnected
		}
		written += int64(n)
		m.BytesServed.Add(int64(n))

		if flusher != nil {
			flusher.Flush()
		}
		if m.ByteLatency > 0 {
			time.Sleep(m.ByteLatency)
		}
	}
}
