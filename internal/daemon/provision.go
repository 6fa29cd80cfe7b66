package daemon

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofrs/flock"
	"github.com/h2non/filetype"

	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/utils"
)

// ExecutableName is the file name extracted from the release archive.
const ExecutableName = "aria2c.exe"

// Provisioner fetches the pinned aria2 release and installs its executable.
type Provisioner struct {
	ReleaseURL string
	InstallDir string

	client *resty.Client
}

// NewProvisioner creates a provisioner installing into installDir.
func NewProvisioner(releaseURL, installDir string) *Provisioner {
	return &Provisioner{
		ReleaseURL: releaseURL,
		InstallDir: installDir,
		client:     resty.New().SetTimeout(types.ReleaseFetchTimeout),
	}
}

// Target is where the executable is installed.
func (p *Provisioner) Target() string {
	return filepath.Join(p.InstallDir, ExecutableName)
}

// Provision downloads the archive to a temp file, extracts the single
// aria2c member into InstallDir and removes the archive. A file lock on the
// install dir keeps concurrent riptide processes from racing.
func (p *Provisioner) Provision(ctx context.Context) (string, error) {
	if p.InstallDir == "" || p.ReleaseURL == "" {
		return "", &ProvisioningError{Step: "prepare", Err: fmt.Errorf("install dir and release url are required")}
	}
	if err := os.MkdirAll(p.InstallDir, 0o755); err != nil {
		return "", &ProvisioningError{Step: "prepare", Err: err}
	}

	lock := flock.New(filepath.Join(p.InstallDir, ".provision.lock"))
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return "", &ProvisioningError{Step: "lock", Err: err}
	}
	if !locked {
		return "", &ProvisioningError{Step: "lock", Err: fmt.Errorf("install dir is locked")}
	}
	defer func() { _ = lock.Unlock() }()

	// Another process may have finished while we waited for the lock
	if info, err := os.Stat(p.Target()); err == nil && info.Size() > 0 {
		return p.Target(), nil
	}

	tmp, err := os.CreateTemp("", "riptide-aria2-*.zip")
	if err != nil {
		return "", &ProvisioningError{Step: "prepare", Err: err}
	}
	archive := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(archive) }()

	resp, err := p.client.R().
		SetContext(ctx).
		SetOutput(archive).
		Get(p.ReleaseURL)
	if err != nil {
		return "", &ProvisioningError{Step: "fetch", Err: err}
	}
	if resp.IsError() {
		return "", &ProvisioningError{Step: "fetch", Err: fmt.Errorf("unexpected HTTP status %d", resp.StatusCode())}
	}

	if err := checkZip(archive); err != nil {
		return "", &ProvisioningError{Step: "verify", Err: err}
	}

	if err := extractExecutable(archive, p.Target()); err != nil {
		return "", &ProvisioningError{Step: "extract", Err: err}
	}

	utils.Info("aria2 installed at %s", p.Target())
	return p.Target(), nil
}

// checkZip sniffs the archive header so an HTML error page is rejected early.
func checkZip(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 261)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	if !filetype.Is(head[:n], "zip") {
		return fmt.Errorf("downloaded file is not a zip archive")
	}
	return nil
}

// extractExecutable copies the first member ending in aria2c.exe to target.
func extractExecutable(archive, target string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ExecutableName) {
			continue
		}

		src, err := f.Open()
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		partial := target + types.IncompleteSuffix
		dst, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			_ = dst.Close()
			_ = os.Remove(partial)
			return err
		}
		if err := dst.Close(); err != nil {
			_ = os.Remove(partial)
			return err
		}
		return os.Rename(partial, target)
	}
	return ErrMemberMissing
}
