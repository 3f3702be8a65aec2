package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/api"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/config"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/matching"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/scheduler"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/storage"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/vectorspace"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server, match worker and scheduler (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running reelmatch server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "reelmatch.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// newLogger builds the process logger from log.level and log.format. Logs go
// to stderr so stdout stays free for the MCP stdio transport.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newModel builds the vector space model, reading the corpus file when one
// is configured.
func newModel(cfg config.Config, logger *slog.Logger) (*vectorspace.Model, error) {
	opts := []vectorspace.Option{
		vectorspace.WithMaxFeatures(cfg.Matching.MaxFeatures),
		vectorspace.WithLogger(logger),
	}
	if p := cfg.Matching.CorpusPath; p != "" {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("opening corpus: %w", err)
		}
		defer f.Close()
		docs, err := vectorspace.LoadCorpus(f)
		if err != nil {
			return nil, fmt.Errorf("reading corpus %s: %w", p, err)
		}
		opts = append(opts, vectorspace.WithCorpus(docs))
	}
	return vectorspace.New(opts...), nil
}

func runServer(withMCP bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	logger.Info("starting reelmatch", "version", version)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("reelmatch is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("reelmatch is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	store.SetLogger(logger)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()

	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	model, err := newModel(cfg, logger)
	if err != nil {
		return err
	}
	// Matching retries initialization lazily, so a failure here is not fatal.
	if err := model.Initialize(); err != nil {
		logger.Error("vector space model unavailable", "error", err)
	} else {
		logger.Info("vector space model ready", "dimensions", model.Dimensions())
	}

	matcher := matching.NewMatcher(model, store,
		matching.WithLogger(logger),
		matching.WithConcurrency(cfg.Matching.EmbedConcurrency),
	)
	svc := matching.NewService(store, matcher, matching.ServiceConfig{
		DefaultThreshold:    &cfg.Matching.DefaultThreshold,
		UsePostingThreshold: cfg.Matching.UsePostingThreshold,
	}, logger)

	w := worker.NewWorker(store, svc, cfg.PollInterval(), logger)
	go w.Run(ctx)

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(store, cfg.Scheduler.RematchSpec, logger)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()
	}

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store, Matching: svc, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", "error", err)
			}
		}()
		logger.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewAppHandler(api.AppDeps{
			Store:    store,
			Matching: svc,
			Token:    cfg.API.Token,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reelmatch listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("reelmatch is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop reelmatch (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to reelmatch (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      cfg.API.Token,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	reportStatus(ctx, client, cfg)
	return nil
}

func reportStatus(ctx context.Context, client *apiClient, cfg config.Config) {
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := client.get(ctx, "/health")
	running := false
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case resp.StatusCode == http.StatusOK:
		resp.Body.Close()
		running = true
		printStatus("Server", "running on port %d", cfg.Server.Port)
	default:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	}

	if running && cfg.API.Token != "" {
		var st storage.Stats
		if resp, err := client.get(ctx, "/stats"); err == nil && decodeJSON(resp, &st) == nil {
			printStatus("Candidates", "%d (%d job seekers)", st.Candidates, st.JobSeekers)
			printStatus("Active postings", "%d", st.ActivePosting)
			printStatus("Matches", "%d", st.Matches)
			printStatus("Queued jobs", "%d", st.PendingJobs)
		}
	}

	printStatus("Default threshold", "%.2f", cfg.Matching.DefaultThreshold)
	printStatus("Scheduler", "%s", schedulerLabel(cfg))
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
}

func schedulerLabel(cfg config.Config) string {
	if !cfg.Scheduler.Enabled {
		return "disabled"
	}
	return cfg.Scheduler.RematchSpec
}
