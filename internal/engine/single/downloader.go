package single

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vfaronov/httpheader"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/utils"
)

// fallbackName is used when neither the response nor the URL names the file.
const fallbackName = "download.bin"

// TransferError wraps any failure of a direct transfer.
type TransferError struct {
	URL  string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %v", e.URL, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Downloader streams one HTTP resource to disk over a single connection.
// It has no resume support: an interrupted transfer restarts from zero.
type Downloader struct {
	Client           *http.Client
	Runtime          *types.RuntimeConfig
	Headers          map[string]string // Custom HTTP headers (cookies, auth, etc.)
	ProgressInterval time.Duration     // Minimum gap between progress callbacks
}

// NewDownloader creates a downloader honoring the proxy and TLS settings in runtime.
func NewDownloader(runtime *types.RuntimeConfig) *Downloader {
	transport := &http.Transport{
		IdleConnTimeout:       types.DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   types.DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: types.DefaultResponseHeaderTimeout,
		DialContext: (&net.Dialer{
			Timeout:   types.DialTimeout,
			KeepAlive: types.KeepAliveDuration,
		}).DialContext,
	}

	if runtime != nil && runtime.ProxyURL != "" {
		parsedURL, err := url.Parse(runtime.ProxyURL)
		if err != nil {
			utils.Debug("Direct transfer: invalid proxy URL %s: %v", runtime.ProxyURL, err)
			transport.Proxy = http.ProxyFromEnvironment
		} else if strings.HasPrefix(parsedURL.Scheme, "socks5") {
			utils.Debug("Direct transfer: using SOCKS5 proxy %s", parsedURL.Host)
			dialer, dialErr := proxy.SOCKS5("tcp", parsedURL.Host, nil, proxy.Direct)
			if dialErr != nil {
				utils.Debug("Direct transfer: failed to create SOCKS5 dialer: %v", dialErr)
				transport.Proxy = http.ProxyFromEnvironment
			} else {
				transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}
		} else {
			transport.Proxy = http.ProxyURL(parsedURL)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	if runtime != nil && runtime.SkipTLSVerification {
		utils.Debug("Direct transfer: TLS verification disabled")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Downloader{
		Client:           &http.Client{Transport: transport},
		Runtime:          runtime,
		ProgressInterval: types.ProgressEmitInterval,
	}
}

// Download fetches rawurl into dest and returns the final path. When dest is
// an existing directory, or ends in a separator, the file name comes from
// Content-Disposition or the URL.
//
// onProgress receives a percentage, or -1 when the length is unknown, at most
// once per ProgressInterval, and 100 once the file is in place. onDone then
// runs exactly once, only on success. Either callback may be nil.
func (d *Downloader) Download(ctx context.Context, rawurl, dest string, onProgress func(percent int), onDone func()) (string, error) {
	fail := func(path string, err error) (string, error) {
		return "", &TransferError{URL: rawurl, Path: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return fail(dest, err)
	}
	for key, val := range d.Headers {
		req.Header.Set(key, val)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", d.Runtime.GetUserAgent())
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return fail(dest, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			utils.Debug("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(dest, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	destPath := resolveDestination(dest, rawurl, resp.Header)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fail(destPath, err)
	}

	workingPath := destPath + types.IncompleteSuffix
	outFile, err := os.Create(workingPath)
	if err != nil {
		return fail(destPath, err)
	}

	success := false
	defer func() {
		_ = outFile.Close()
		if !success {
			_ = os.Remove(workingPath)
		}
	}()

	total := resp.ContentLength
	report := func(written int64) {
		if onProgress == nil {
			return
		}
		if total > 0 {
			onProgress(int(written * 100 / total))
		} else {
			onProgress(-1)
		}
	}
	throttle := &rate.Sometimes{Interval: d.ProgressInterval}
	if d.ProgressInterval <= 0 {
		throttle = &rate.Sometimes{Every: 1}
	}

	start := time.Now()
	var written int64
	buf := make([]byte, types.TransferBuffer)

	for {
		select {
		case <-ctx.Done():
			return fail(destPath, ctx.Err())
		default:
		}

		nr, readErr := resp.Body.Read(buf)
		if nr > 0 {
			nw, writeErr := outFile.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
				throttle.Do(func() { report(written) })
			}
			if writeErr != nil {
				return fail(destPath, fmt.Errorf("write error: %w", writeErr))
			}
			if nr != nw {
				return fail(destPath, io.ErrShortWrite)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			if ctx.Err() != nil {
				return fail(destPath, ctx.Err())
			}
			return fail(destPath, fmt.Errorf("read error: %w", readErr))
		}
	}

	if total > 0 && written != total {
		return fail(destPath, fmt.Errorf("short body: got %d of %d bytes", written, total))
	}

	if err := outFile.Sync(); err != nil {
		return fail(destPath, fmt.Errorf("sync error: %w", err))
	}
	if err := outFile.Close(); err != nil {
		return fail(destPath, fmt.Errorf("close error: %w", err))
	}

	if err := os.Rename(workingPath, destPath); err != nil {
		// Fallback: copy if rename fails (cross-device)
		if copyErr := copyFile(workingPath, destPath); copyErr != nil {
			return fail(destPath, fmt.Errorf("failed to finalize file: %w", copyErr))
		}
		_ = os.Remove(workingPath)
	}
	success = true

	if onProgress != nil {
		onProgress(100)
	}
	if onDone != nil {
		onDone()
	}

	elapsed := time.Since(start)
	utils.Debug("Downloaded %s (%s) in %s", destPath, utils.HumanBytes(written), elapsed.Round(time.Millisecond))
	return destPath, nil
}

// resolveDestination picks the output file for dest.
func resolveDestination(dest, rawurl string, header http.Header) string {
	isDir := dest == "" || strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(os.PathSeparator))
	if !isDir {
		if info, err := os.Stat(dest); err == nil && info.IsDir() {
			isDir = true
		}
	}
	if !isDir {
		return dest
	}

	if dest == "" {
		dest = "."
	}
	return filepath.Join(dest, filenameFor(rawurl, header))
}

func filenameFor(rawurl string, header http.Header) string {
	if _, name, _ := httpheader.ContentDisposition(header); name != "" {
		if clean := utils.SanitizeFileName(filepath.Base(name)); clean != "" {
			return clean
		}
	}
	if name := utils.FileNameFromURL(rawurl); name != "" {
		return name
	}
	return fallbackName
}

// IsTransferError reports whether err came from a direct transfer.
func IsTransferError(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}

// copyFile copies a file from src to dst (fallback when rename fails)
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if err := in.Close(); err != nil {
			utils.Debug("Error closing input file: %v", err)
		}
	}()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			utils.Debug("Error closing output file: %v", err)
		}
	}()

	buf := make([]byte, 1024*1024)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		return err
	}
	return out.Sync()
}
