package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/pdewitt/citelens"
)

var (
	flagServeAddr    string
	flagServePayload string
	flagServeCORS    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the payload and a viewer session over HTTP",
	Long: `Starts an HTTP server exposing the extraction payload, the parsed
source blocks, and a shared viewer session. With --payload the payload is
read from a JSON file and hot-reloaded when the file changes; otherwise it
comes from the database.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&flagServePayload, "payload", "", "payload JSON file to serve and watch")
	serveCmd.Flags().StringVar(&flagServeCORS, "cors", "", "comma-separated allowed CORS origins")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.Serve.Addr
	if flagServeAddr != "" {
		addr = flagServeAddr
	}
	corsOrigins := flagServeCORS
	if corsOrigins == "" {
		corsOrigins = os.Getenv("CITELENS_CORS_ORIGINS")
	}

	engine, err := citelens.New(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	payload, err := initialPayload(cmd.Context(), engine)
	if err != nil {
		return err
	}

	h := newServeHandler(engine, payload)
	defer h.close()

	var watcher *fsnotify.Watcher
	if flagServePayload != "" {
		watcher, err = watchPayload(flagServePayload, h)
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /payload", h.handlePayload)
	mux.HandleFunc("GET /sources", h.handleSources)
	mux.HandleFunc("GET /sources/{id}/blocks", h.handleBlocks)
	mux.HandleFunc("GET /sources/{id}/search", h.handleSearch)
	mux.HandleFunc("GET /sources/{id}/text", h.handleText)
	mux.HandleFunc("POST /session/click", h.handleClick)
	mux.HandleFunc("POST /session/navigate", h.handleNavigate)
	mux.HandleFunc("POST /session/clear", h.handleClear)
	mux.HandleFunc("GET /session/state", h.handleState)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(cfg.Serve.APIKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func initialPayload(ctx context.Context, engine citelens.Engine) (*citelens.Payload, error) {
	if flagServePayload != "" {
		return citelens.LoadPayloadFile(flagServePayload)
	}
	return engine.Payload(ctx)
}

// watchPayload reloads the served payload when the file changes. Editors
// often replace files via rename, so the parent directory is watched and
// events are filtered to the payload path.
func watchPayload(path string, h *serveHandler) (*fsnotify.Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				p, err := citelens.LoadPayloadFile(abs)
				if err != nil {
					slog.Warn("payload reload failed", "file", abs, "error", err)
					continue
				}
				h.setPayload(p)
				slog.Info("payload reloaded", "file", abs, "sources", len(p.Sources), "fields", len(p.Fields))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("payload watcher error", "error", err)
			}
		}
	}()
	return watcher, nil
}
