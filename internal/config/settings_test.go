package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

func TestDefaultSettings(t *testing.T) {
	t.Setenv("RIPTIDE_HOME", t.TempDir())
	settings := DefaultSettings()

	if settings == nil {
		t.Fatal("DefaultSettings returned nil")
	}

	t.Run("GeneralSettings", func(t *testing.T) {
		if !strings.Contains(strings.ToLower(settings.General.FolderPath), "downloads") {
			t.Errorf("Default folder should contain 'Downloads', got: %s", settings.General.FolderPath)
		}
		if settings.General.OpenOnFinish {
			t.Error("OpenOnFinish should be false by default")
		}
		if settings.General.MaxParallelDownloads != 3 {
			t.Errorf("MaxParallelDownloads = %d, want 3", settings.General.MaxParallelDownloads)
		}
		if settings.General.LogRetentionCount != 5 {
			t.Errorf("LogRetentionCount = %d, want 5", settings.General.LogRetentionCount)
		}
	})

	t.Run("DaemonSettings", func(t *testing.T) {
		if settings.Daemon.RPCURL != "http://localhost:6800/jsonrpc" {
			t.Errorf("unexpected RPC URL: %s", settings.Daemon.RPCURL)
		}
		if settings.Daemon.Secret != "aria2rpc" {
			t.Errorf("unexpected secret: %s", settings.Daemon.Secret)
		}
		if !strings.HasPrefix(settings.Daemon.InstallDir, GetRiptideDir()) {
			t.Errorf("install dir %s should live under %s", settings.Daemon.InstallDir, GetRiptideDir())
		}
		if !settings.Daemon.AutoProvision || !settings.Daemon.RestartOnFailure {
			t.Error("auto provision and restart on failure should default to true")
		}
		if !strings.HasSuffix(settings.Daemon.ReleaseURL, ".zip") {
			t.Errorf("release URL should point at a zip archive, got %s", settings.Daemon.ReleaseURL)
		}
	})

	t.Run("APISettings", func(t *testing.T) {
		if settings.API.Listen != "127.0.0.1:6900" {
			t.Errorf("unexpected listen address: %s", settings.API.Listen)
		}
		if settings.API.Token != "" {
			t.Error("API token should be empty by default")
		}
	})
}

func TestDefaultSettings_Consistency(t *testing.T) {
	s1 := DefaultSettings()
	s2 := DefaultSettings()

	if s1 == s2 {
		t.Error("DefaultSettings should return new instance each time")
	}
	if *s1 != *s2 {
		t.Error("Default settings should be consistent")
	}
}

func TestGetSettingsPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("RIPTIDE_HOME", home)

	path := GetSettingsPath()
	if !strings.HasPrefix(path, home) {
		t.Errorf("Settings path should be under riptide dir. Path: %s, Dir: %s", path, home)
	}
	if !strings.HasSuffix(path, "settings.yaml") {
		t.Errorf("Settings path should end with 'settings.yaml', got: %s", path)
	}
}

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("RIPTIDE_HOME", t.TempDir())

	settings, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if *settings != *DefaultSettings() {
		t.Errorf("expected defaults, got %+v", settings)
	}

	// An explicit path that doesn't exist is tolerated too
	settings, err = LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings with missing explicit path failed: %v", err)
	}
	if settings.Daemon.Secret != types.DefaultRPCSecret {
		t.Errorf("expected default secret, got %q", settings.Daemon.Secret)
	}
}

func TestLoadSettings_FileOverridesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("RIPTIDE_HOME", home)

	content := `general:
  folder_path: /srv/media
  open_on_finish: true
  max_parallel_downloads: 7
daemon:
  secret: hunter2
  restart_on_failure: false
connections:
  proxy_url: socks5://127.0.0.1:1080
`
	if err := os.WriteFile(filepath.Join(home, "settings.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}

	if settings.General.FolderPath != "/srv/media" {
		t.Errorf("FolderPath = %q", settings.General.FolderPath)
	}
	if !settings.General.OpenOnFinish {
		t.Error("OpenOnFinish should be true")
	}
	if settings.General.MaxParallelDownloads != 7 {
		t.Errorf("MaxParallelDownloads = %d, want 7", settings.General.MaxParallelDownloads)
	}
	if settings.Daemon.Secret != "hunter2" {
		t.Errorf("Secret = %q", settings.Daemon.Secret)
	}
	if settings.Daemon.RestartOnFailure {
		t.Error("RestartOnFailure should be false")
	}
	// Untouched keys keep their defaults
	if settings.Daemon.RPCURL != types.DefaultRPCURL {
		t.Errorf("RPCURL = %q, want default", settings.Daemon.RPCURL)
	}
	if settings.Connections.ProxyURL != "socks5://127.0.0.1:1080" {
		t.Errorf("ProxyURL = %q", settings.Connections.ProxyURL)
	}
}

func TestLoadSettings_EnvOverride(t *testing.T) {
	t.Setenv("RIPTIDE_HOME", t.TempDir())
	t.Setenv("RIPTIDE_DAEMON_SECRET", "from-env")
	t.Setenv("RIPTIDE_GENERAL_MAX_PARALLEL_DOWNLOADS", "9")

	settings, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if settings.Daemon.Secret != "from-env" {
		t.Errorf("Secret = %q, want from-env", settings.Daemon.Secret)
	}
	if settings.General.MaxParallelDownloads != 9 {
		t.Errorf("MaxParallelDownloads = %d, want 9", settings.General.MaxParallelDownloads)
	}
}

func TestLoadSettings_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("general: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSettings(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestSaveAndLoadSettings(t *testing.T) {
	home := t.TempDir()
	t.Setenv("RIPTIDE_HOME", home)

	original := DefaultSettings()
	original.General.FolderPath = filepath.Join(home, "dl")
	original.General.MaxParallelDownloads = 5
	original.Daemon.Secret = "s3cr3t"
	original.API.Token = "tok"

	path := filepath.Join(home, "settings.yaml")
	if err := SaveSettings(path, original); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	loaded, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if *loaded != *original {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", loaded, original)
	}

	if _, err := os.Stat(filepath.Join(home, ".tmp-settings.yaml")); !os.IsNotExist(err) {
		t.Error("temp file should have been renamed away")
	}
}

func TestToRuntimeConfig(t *testing.T) {
	s := &Settings{
		General: GeneralSettings{FolderPath: "/data", MaxParallelDownloads: 4},
		Connections: ConnectionSettings{
			UserAgent:           "Riptide/1.0",
			ProxyURL:            "http://proxy:3128",
			SkipTLSVerification: true,
		},
	}

	rc := s.ToRuntimeConfig()
	want := types.RuntimeConfig{
		FolderPath:           "/data",
		MaxParallelDownloads: 4,
		UserAgent:            "Riptide/1.0",
		ProxyURL:             "http://proxy:3128",
		SkipTLSVerification:  true,
	}
	if *rc != want {
		t.Errorf("ToRuntimeConfig() = %+v, want %+v", *rc, want)
	}
}

func TestGetRiptideDir_Override(t *testing.T) {
	t.Setenv("RIPTIDE_HOME", "/opt/riptide")
	if got := GetRiptideDir(); got != "/opt/riptide" {
		t.Errorf("GetRiptideDir() = %s", got)
	}
	if got := GetLogsDir(); got != filepath.Join("/opt/riptide", "logs") {
		t.Errorf("GetLogsDir() = %s", got)
	}
}

func TestEnsureDirs(t *testing.T) {
	home := filepath.Join(t.TempDir(), "nested")
	t.Setenv("RIPTIDE_HOME", home)

	if err := EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs failed: %v", err)
	}
	for _, dir := range []string{home, GetLogsDir(), GetRuntimeDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s should exist as a directory", dir)
		}
	}
}
