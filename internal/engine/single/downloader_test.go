package single

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/testutil"
)

type progressLog struct {
	mu     sync.Mutex
	values []int
	done   int
}

func (p *progressLog) progress(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, percent)
}

func (p *progressLog) finished() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
}

func (p *progressLog) snapshot() ([]int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...), p.done
}

func TestDownload_WritesFileAndReportsCompletion(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithFileSize(256*1024), testutil.WithRandomData(true))
	dir := testutil.TempDir(t, "single")
	dest := filepath.Join(dir, "out.bin")

	var log progressLog
	d := NewDownloader(nil)
	got, err := d.Download(context.Background(), server.URL()+"/file", dest, log.progress, log.finished)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if got != dest {
		t.Errorf("path = %q, want %q", got, dest)
	}
	if err := testutil.CompareFileContent(dest, server.Data()); err != nil {
		t.Error(err)
	}
	if testutil.FileExists(dest + types.IncompleteSuffix) {
		t.Error("working file should be gone after rename")
	}

	values, done := log.snapshot()
	if done != 1 {
		t.Errorf("onDone called %d times, want 1", done)
	}
	if len(values) == 0 || values[len(values)-1] != 100 {
		t.Errorf("last progress = %v, want trailing 100", values)
	}
	for _, v := range values {
		if v < 0 || v > 100 {
			t.Errorf("progress %d out of range", v)
		}
	}
}

func TestDownload_CreatesParentDirectories(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithBody([]byte("hello")))
	dir := testutil.TempDir(t, "single")
	dest := filepath.Join(dir, "a", "b", "c.txt")

	if _, err := NewDownloader(nil).Download(context.Background(), server.URL(), dest, nil, nil); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if err := testutil.CompareFileContent(dest, []byte("hello")); err != nil {
		t.Error(err)
	}
}

func TestDownload_DirectoryUsesContentDisposition(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithBody([]byte("payload")), testutil.WithFilename("report.pdf"))
	dir := testutil.TempDir(t, "single")

	got, err := NewDownloader(nil).Download(context.Background(), server.URL()+"/dl?id=7", dir, nil, nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if want := filepath.Join(dir, "report.pdf"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestDownload_DirectoryFallsBackToURLName(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithBody([]byte("payload")), testutil.WithFilename(""))
	dir := testutil.TempDir(t, "single")

	got, err := NewDownloader(nil).Download(context.Background(), server.URL()+"/files/ubuntu.iso", dir, nil, nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if want := filepath.Join(dir, "ubuntu.iso"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestDownload_DirectoryFallbackName(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithBody([]byte("x")), testutil.WithFilename(""))
	dir := testutil.TempDir(t, "single")

	got, err := NewDownloader(nil).Download(context.Background(), server.URL()+"/", dir, nil, nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if want := filepath.Join(dir, fallbackName); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestDownload_UnknownLengthReportsIndeterminate(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithFileSize(128*1024), testutil.WithUnknownLength())
	dir := testutil.TempDir(t, "single")

	var log progressLog
	d := NewDownloader(nil)
	d.ProgressInterval = 0
	if _, err := d.Download(context.Background(), server.URL(), filepath.Join(dir, "f"), log.progress, log.finished); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	values, done := log.snapshot()
	if done != 1 {
		t.Errorf("onDone called %d times, want 1", done)
	}
	if len(values) < 2 {
		t.Fatalf("expected progress during transfer, got %v", values)
	}
	for _, v := range values[:len(values)-1] {
		if v != -1 {
			t.Errorf("progress %d for unknown length, want -1", v)
		}
	}
	if values[len(values)-1] != 100 {
		t.Errorf("final progress = %d, want 100", values[len(values)-1])
	}
}

func TestDownload_HTTPErrorIsTransferError(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithStatus(http.StatusNotFound))
	dir := testutil.TempDir(t, "single")
	dest := filepath.Join(dir, "missing.bin")

	var log progressLog
	_, err := NewDownloader(nil).Download(context.Background(), server.URL(), dest, log.progress, log.finished)
	if err == nil {
		t.Fatal("expected error for 404")
	}

	var te *TransferError
	if !errors.As(err, &te) {
		t.Fatalf("error %T is not a TransferError", err)
	}
	if te.URL != server.URL() {
		t.Errorf("TransferError.URL = %q", te.URL)
	}
	if !IsTransferError(err) {
		t.Error("IsTransferError should report true")
	}
	if _, done := log.snapshot(); done != 0 {
		t.Error("onDone must not fire on failure")
	}
	if testutil.FileExists(dest) || testutil.FileExists(dest+types.IncompleteSuffix) {
		t.Error("no file should be left behind")
	}
}

func TestDownload_TruncatedBodyFails(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithFileSize(512*1024), testutil.WithFailAfterBytes(64*1024))
	dir := testutil.TempDir(t, "single")
	dest := filepath.Join(dir, "short.bin")

	var log progressLog
	_, err := NewDownloader(nil).Download(context.Background(), server.URL(), dest, log.progress, log.finished)
	if err == nil {
		t.Fatal("expected error for truncated body")
	}
	if !IsTransferError(err) {
		t.Errorf("error %T is not a TransferError", err)
	}
	if _, done := log.snapshot(); done != 0 {
		t.Error("onDone must not fire on failure")
	}
	if testutil.FileExists(dest) {
		t.Error("destination should not exist after a failed transfer")
	}
}

func TestDownload_Cancellation(t *testing.T) {
	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(4*1024*1024),
		testutil.WithByteLatency(20*time.Millisecond),
	)
	dir := testutil.TempDir(t, "single")

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := NewDownloader(nil).Download(ctx, server.URL(), filepath.Join(dir, "slow.bin"), nil, nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestDownload_CancelledBeforeResponse(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithLatency(400*time.Millisecond))
	dir := testutil.TempDir(t, "single")
	dest := filepath.Join(dir, "late.bin")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var log progressLog
	_, err := NewDownloader(nil).Download(ctx, server.URL(), dest, log.progress, log.finished)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if !IsTransferError(err) {
		t.Errorf("error %T is not a TransferError", err)
	}
	if updates, done := log.snapshot(); len(updates) != 0 || done != 0 {
		t.Errorf("callbacks fired before any response: %d updates, %d done", len(updates), done)
	}
	if testutil.FileExists(dest) {
		t.Error("destination created for a request that never got a response")
	}
}

func TestDownload_SendsUserAgentAndHeaders(t *testing.T) {
	var gotUA, gotCookie string
	server := testutil.NewMockServerT(t, testutil.WithHandler(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		_, _ = w.Write([]byte("ok"))
	}))
	dir := testutil.TempDir(t, "single")

	d := NewDownloader(&types.RuntimeConfig{UserAgent: "riptide-test/1.0"})
	d.Headers = map[string]string{"Cookie": "session=abc"}
	if _, err := d.Download(context.Background(), server.URL(), filepath.Join(dir, "ok"), nil, nil); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if gotUA != "riptide-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotCookie != "session=abc" {
		t.Errorf("Cookie = %q", gotCookie)
	}
}

func TestNewDownloader_InvalidProxyFallsBack(t *testing.T) {
	d := NewDownloader(&types.RuntimeConfig{ProxyURL: "://bad"})
	if d.Client == nil || d.Client.Transport == nil {
		t.Fatal("client should still be built")
	}
}

func TestCopyFile(t *testing.T) {
	tmpDir := testutil.TempDir(t, "copy")
	data := []byte("some bytes to copy")
	srcPath := testutil.CreateTestFile(t, tmpDir, "src.bin", data)
	dstPath := filepath.Join(tmpDir, "dst.bin")

	if err := copyFile(srcPath, dstPath); err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}
	if err := testutil.CompareFileContent(dstPath, data); err != nil {
		t.Error(err)
	}
}

func TestCopyFile_SourceNotExists(t *testing.T) {
	tmpDir := testutil.TempDir(t, "copy")

	err := copyFile(filepath.Join(tmpDir, "nonexistent.bin"), filepath.Join(tmpDir, "dst.bin"))
	if err == nil {
		t.Error("copyFile should fail for nonexistent source")
	}
	if !os.IsNotExist(err) {
		t.Errorf("error = %v, want not-exist", err)
	}
}
