package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General     GeneralSettings    `mapstructure:"general" json:"general"`
	Daemon      DaemonSettings     `mapstructure:"daemon" json:"daemon"`
	Connections ConnectionSettings `mapstructure:"connections" json:"connections"`
	API         APISettings        `mapstructure:"api" json:"api"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	FolderPath           string `mapstructure:"folder_path" json:"folder_path"`
	OpenOnFinish         bool   `mapstructure:"open_on_finish" json:"open_on_finish"`
	MaxParallelDownloads int    `mapstructure:"max_parallel_downloads" json:"max_parallel_downloads"`
	LogRetentionCount    int    `mapstructure:"log_retention_count" json:"log_retention_count"`
}

// DaemonSettings describes how to reach, locate and provision aria2.
type DaemonSettings struct {
	RPCURL           string `mapstructure:"rpc_url" json:"rpc_url"`
	Secret           string `mapstructure:"secret" json:"secret"`
	Executable       string `mapstructure:"executable" json:"executable"`
	InstallDir       string `mapstructure:"install_dir" json:"install_dir"`
	ReleaseURL       string `mapstructure:"release_url" json:"release_url"`
	AutoProvision    bool   `mapstructure:"auto_provision" json:"auto_provision"`
	RestartOnFailure bool   `mapstructure:"restart_on_failure" json:"restart_on_failure"`
}

// ConnectionSettings contains network parameters for direct transfers.
type ConnectionSettings struct {
	UserAgent           string `mapstructure:"user_agent" json:"user_agent"`
	ProxyURL            string `mapstructure:"proxy_url" json:"proxy_url"`
	SkipTLSVerification bool   `mapstructure:"skip_tls_verification" json:"skip_tls_verification"`
}

// APISettings configures the local control API.
type APISettings struct {
	Listen string `mapstructure:"listen" json:"listen"`
	Token  string `mapstructure:"token" json:"token"`
}

// DefaultReleaseURL is the pinned aria2 build fetched when no executable is found.
const DefaultReleaseURL = "https://github.com/aria2/aria2/releases/download/release-1.36.0/aria2-1.36.0-win-64bit-build1.zip"

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()

	return &Settings{
		General: GeneralSettings{
			FolderPath:           filepath.Join(homeDir, "Downloads"),
			OpenOnFinish:         false,
			MaxParallelDownloads: types.DefaultMaxParallel,
			LogRetentionCount:    types.DefaultLogRetentionCount,
		},
		Daemon: DaemonSettings{
			RPCURL:           types.DefaultRPCURL,
			Secret:           types.DefaultRPCSecret,
			InstallDir:       filepath.Join(GetRiptideDir(), "aria2"),
			ReleaseURL:       DefaultReleaseURL,
			AutoProvision:    true,
			RestartOnFailure: true,
		},
		API: APISettings{
			Listen: "127.0.0.1:6900",
		},
	}
}

// GetSettingsPath returns the path to the default settings file.
func GetSettingsPath() string {
	return filepath.Join(GetRiptideDir(), "settings.yaml")
}

func newViper(defaults *Settings) *viper.Viper {
	v := viper.New()

	v.SetDefault("general.folder_path", defaults.General.FolderPath)
	v.SetDefault("general.open_on_finish", defaults.General.OpenOnFinish)
	v.SetDefault("general.max_parallel_downloads", defaults.General.MaxParallelDownloads)
	v.SetDefault("general.log_retention_count", defaults.General.LogRetentionCount)

	v.SetDefault("daemon.rpc_url", defaults.Daemon.RPCURL)
	v.SetDefault("daemon.secret", defaults.Daemon.Secret)
	v.SetDefault("daemon.executable", defaults.Daemon.Executable)
	v.SetDefault("daemon.install_dir", defaults.Daemon.InstallDir)
	v.SetDefault("daemon.release_url", defaults.Daemon.ReleaseURL)
	v.SetDefault("daemon.auto_provision", defaults.Daemon.AutoProvision)
	v.SetDefault("daemon.restart_on_failure", defaults.Daemon.RestartOnFailure)

	v.SetDefault("connections.user_agent", defaults.Connections.UserAgent)
	v.SetDefault("connections.proxy_url", defaults.Connections.ProxyURL)
	v.SetDefault("connections.skip_tls_verification", defaults.Connections.SkipTLSVerification)

	v.SetDefault("api.listen", defaults.API.Listen)
	v.SetDefault("api.token", defaults.API.Token)

	// RIPTIDE_DAEMON_SECRET=... overrides daemon.secret
	v.SetEnvPrefix("RIPTIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadSettings reads settings from path, or from the riptide config dir when
// path is empty. A missing file is not an error; defaults apply.
func LoadSettings(path string) (*Settings, error) {
	v := newViper(DefaultSettings())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("settings")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetRiptideDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	return settings, nil
}

// SaveSettings writes settings to path atomically.
func SaveSettings(path string, s *Settings) error {
	if path == "" {
		path = GetSettingsPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	v := newViper(s)

	// Atomic write: write to temp file, then rename. The temp name keeps the
	// extension so viper can infer the encoding.
	tempPath := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err := v.WriteConfigAs(tempPath); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// ToRuntimeConfig creates the engine RuntimeConfig from user Settings
func (s *Settings) ToRuntimeConfig() *types.RuntimeConfig {
	return &types.RuntimeConfig{
		FolderPath:           s.General.FolderPath,
		MaxParallelDownloads: s.General.MaxParallelDownloads,
		UserAgent:            s.Connections.UserAgent,
		ProxyURL:             s.Connections.ProxyURL,
		SkipTLSVerification:  s.Connections.SkipTLSVerification,
	}
}
