package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/surge-downloader/riptide/internal/config"
	"github.com/surge-downloader/riptide/internal/utils"
)

func resolveConnectBaseURL(target string, allowInsecureHTTP bool) (string, error) {
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("invalid target: %v", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("unsupported scheme %q (use http or https)", u.Scheme)
		}
		if u.Host == "" {
			return "", fmt.Errorf("invalid target: missing host")
		}
		if u.Scheme == "http" && !allowInsecureHTTP && !isLoopbackHost(u.Hostname()) {
			return "", fmt.Errorf("refusing insecure HTTP for non-loopback target, use https://")
		}
		return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
	}

	scheme := "https"
	if isLoopbackHost(hostnameFromTarget(target)) {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, target), nil
}

func hostnameFromTarget(target string) string {
	if host, _, err := net.SplitHostPort(target); err == nil {
		return host
	}
	return target
}

func isLoopbackHost(host string) bool {
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

func resolveHostTarget() string {
	if host := strings.TrimSpace(globalHost); host != "" {
		return host
	}
	return strings.TrimSpace(os.Getenv("RIPTIDE_HOST"))
}

// resolveAPIConnection finds the API of a running serve instance. An explicit
// host wins over the local address file. With requireServer unset, a missing
// server yields an empty base URL and no error.
func resolveAPIConnection(settings *config.Settings, requireServer bool) (string, string, error) {
	target := resolveHostTarget()
	if target == "" {
		if addr := readActiveAddr(); addr != "" {
			token, err := ensureAPIToken(settings)
			if err != nil {
				return "", "", err
			}
			return "http://" + addr, token, nil
		}
		if !requireServer {
			return "", "", nil
		}
		return "", "", errors.New("riptide serve is not running locally, start it or pass --host (or set RIPTIDE_HOST)")
	}

	baseURL, err := resolveConnectBaseURL(target, false)
	if err != nil {
		return "", "", err
	}

	token := strings.TrimSpace(globalToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("RIPTIDE_TOKEN"))
	}
	if token == "" {
		// Only reuse the local token for loopback targets
		if !isLoopbackHost(hostnameFromTarget(target)) {
			return "", "", errors.New("no token provided, use --token or set RIPTIDE_TOKEN")
		}
		if token, err = ensureAPIToken(settings); err != nil {
			return "", "", err
		}
	}
	return baseURL, token, nil
}

func tokenFile() string {
	return filepath.Join(config.GetRiptideDir(), "token")
}

// ensureAPIToken returns api.token when configured, or the token stored next
// to the settings file, generating one on first use.
func ensureAPIToken(settings *config.Settings) (string, error) {
	if settings != nil {
		if token := strings.TrimSpace(settings.API.Token); token != "" {
			return token, nil
		}
	}

	if data, err := os.ReadFile(tokenFile()); err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	}

	token := uuid.New().String()
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(tokenFile(), []byte(token), 0o600); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	utils.Debug("generated API token at %s", tokenFile())
	return token, nil
}
