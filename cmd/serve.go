package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/surge-downloader/riptide/internal/api"
	"github.com/surge-downloader/riptide/internal/config"
	"github.com/surge-downloader/riptide/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine in the background and expose the control API",
	Long: `Run one long-lived engine: the aria2 daemon is supervised, the poll loop
keeps running, and presentation layers drive it over HTTP. Only one serve
instance may run per config directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := initializeGlobalState()

		lock, err := acquireInstanceLock()
		if err != nil {
			return err
		}
		defer releaseInstanceLock(lock)

		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = settings.API.Listen
		}
		token, err := ensureAPIToken(settings)
		if err != nil {
			return err
		}
		if noAuth, _ := cmd.Flags().GetBool("no-auth"); noAuth {
			token = ""
		}

		ln, err := net.Listen("tcp", listen)
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", listen, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, _ := newLocalService(settings)

		stream, cleanup, err := svc.StreamEvents(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		consumer := newConsoleConsumer(os.Stdout, settings.General.OpenOnFinish, settings.General.FolderPath)
		go consumer.Consume(stream)

		gin.SetMode(gin.ReleaseMode)
		srv := &http.Server{
			Handler:           api.NewRouter(svc, token),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				utils.Error(err, "api server stopped")
				stop()
			}
		}()

		addr := advertisedAddr(ln.Addr())
		saveActiveAddr(addr)
		defer removeActiveAddr()

		fmt.Printf("riptide %s serving on http://%s\n", Version, addr)
		fmt.Println("Press Ctrl+C to exit.")

		if err := svc.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: daemon unavailable (%v), direct links only\n", err)
		}

		<-ctx.Done()
		fmt.Println("\nShutting down...")

		// Stopping the service first closes open SSE streams
		err = svc.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			utils.Debug("api shutdown: %v", serr)
		}
		return err
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "Address to listen on (overrides api.listen)")
	serveCmd.Flags().Bool("no-auth", false, "Serve the API without a bearer token")
	rootCmd.AddCommand(serveCmd)
}

func lockFile() string {
	return filepath.Join(config.GetRuntimeDir(), "serve.lock")
}

func addrFile() string {
	return filepath.Join(config.GetRuntimeDir(), "addr")
}

// acquireInstanceLock takes the single-instance lock for serve.
func acquireInstanceLock() (*flock.Flock, error) {
	if err := os.MkdirAll(config.GetRuntimeDir(), 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(lockFile())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("error acquiring lock: %w", err)
	}
	if !locked {
		return nil, errors.New("riptide serve is already running")
	}
	return lock, nil
}

func releaseInstanceLock(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		utils.Debug("Error releasing lock: %v", err)
	}
}

// serveRunning reports whether another process holds the serve lock.
func serveRunning() bool {
	lock := flock.New(lockFile())
	locked, err := lock.TryRLock()
	if err != nil {
		return false
	}
	if locked {
		_ = lock.Unlock()
		return false
	}
	return true
}

// advertisedAddr turns a wildcard listen address into one clients can dial.
func advertisedAddr(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func saveActiveAddr(addr string) {
	if err := os.WriteFile(addrFile(), []byte(addr), 0o644); err != nil {
		utils.Debug("Error writing address file: %v", err)
	}
}

func removeActiveAddr() {
	if err := os.Remove(addrFile()); err != nil && !os.IsNotExist(err) {
		utils.Debug("Error removing address file: %v", err)
	}
}

// readActiveAddr returns the address of the running serve instance. A file
// left behind by a crashed instance is ignored.
func readActiveAddr() string {
	data, err := os.ReadFile(addrFile())
	if err != nil {
		return ""
	}
	addr := strings.TrimSpace(string(data))
	if addr == "" || !serveRunning() {
		return ""
	}
	return addr
}
