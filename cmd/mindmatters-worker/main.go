// ABOUTME: Entry point for the MindMatters background worker daemon
// ABOUTME: Serves the app origin offline-first and runs sync and reminders

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/mindmatters/internal/config"
	"github.com/2389/mindmatters/internal/worker"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
           _           _                  _   _
 _ __ ___ (_)_ __   __| |_ __ ___   __ _| |_| |_ ___ _ __ ___
| '_ ' _ \| | '_ \ / _' | '_ ' _ \ / _' | __| __/ _ \ '__/ __|
| | | | | | | | | | (_| | | | | | | (_| | |_| ||  __/ |  \__ \
|_| |_| |_|_|_| |_|\__,_|_| |_| |_|\__,_|\__|\__\___|_|  |___/
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: mindmatters-worker <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the worker")
		fmt.Println("  init      Create a new config file interactively")
		fmt.Println("  health    Check worker health")
		fmt.Println("  status    Show worker status")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "status":
		err = runStatus(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, logCloser := setupLogger(cfg.Logging)
	defer func() { _ = logCloser.Close() }()
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Listen:    %s\n", cfg.WorkerURL())
	green.Print("    ▶ ")
	fmt.Printf("Origin:    %s\n", cfg.Origin.URL)
	green.Print("    ▶ ")
	fmt.Printf("Cache:     %s\n", cfg.CacheName())
	green.Print("    ▶ ")
	fmt.Printf("Sync:      ")
	if cfg.Sync.Endpoint == "" {
		yellow.Println("disabled (no endpoint)")
	} else {
		fmt.Printf("%s every %s\n", cfg.Sync.Endpoint, cfg.Sync.Interval)
	}
	fmt.Println()

	w, err := worker.New(cfg, worker.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("creating worker: %w", err)
	}

	return w.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	body, err := get(ctx, cfg.WorkerURL()+"/_worker/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if strings.TrimSpace(string(body)) != "OK" {
		return fmt.Errorf("unhealthy: %s", body)
	}

	fmt.Println("healthy")
	return nil
}

func runStatus(ctx context.Context) error {
	cfg, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	body, err := get(ctx, cfg.WorkerURL()+"/_worker/status")
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}

	var status worker.StatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Println("Cache")
	fmt.Printf("  %s (%s)\n", status.Cache.Name, status.Cache.State)
	cyan.Println("Connectivity")
	fmt.Printf("  %s\n", status.Connectivity)
	cyan.Println("Requests")
	fmt.Printf("  cache=%d network=%d fallback=%d\n",
		status.Interceptor.FromCache, status.Interceptor.FromNetwork, status.Interceptor.Fallbacks)
	cyan.Println("Sync")
	if !status.Sync.Configured {
		fmt.Println("  disabled")
	}
	fmt.Printf("  pending=%d", status.Sync.Pending)
	if !status.Sync.LastRun.IsZero() {
		fmt.Printf(" last=%s delivered=%d failed=%d",
			status.Sync.LastRun.Format("Jan 02 15:04"), status.Sync.Last.Delivered, status.Sync.Last.Failed)
	}
	fmt.Println()
	cyan.Println("Notifications")
	fmt.Printf("  displayed=%d scheduled=%d windows=%d\n",
		len(status.Notifications), len(status.Timers), len(status.Windows))
	fmt.Printf("\nUptime: %s\n", status.Uptime)
	return nil
}

func get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("mindmatters worker configuration setup")
	fmt.Println("======================================")
	fmt.Println()

	dataDir := config.DataDir()

	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Worker ---")
	httpAddr := prompt(reader, "Listen address", config.DefaultHTTPAddr)
	originURL := prompt(reader, "App origin URL", config.DefaultOriginURL)

	fmt.Println("\n--- Storage ---")
	dbPath := prompt(reader, "Entry database path", filepath.Join(dataDir, "entries.db"))
	cachePath := prompt(reader, "Cache database path", filepath.Join(dataDir, "cache.db"))

	fmt.Println("\n--- Sync ---")
	endpoint := prompt(reader, "Remote sync endpoint (leave empty to disable)", "")

	fmt.Println("\n--- Notifications ---")
	webhook := prompt(reader, "Notification webhook URL (optional)", "")

	fmt.Println("\n--- Logging ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")
	logFile := prompt(reader, "Log file (optional)", "")

	var cfg strings.Builder
	cfg.WriteString("# mindmatters worker configuration\n")
	cfg.WriteString("# Generated by mindmatters-worker init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("origin:\n")
	cfg.WriteString(fmt.Sprintf("  url: %q\n", originURL))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("cache:\n")
	cfg.WriteString(fmt.Sprintf("  name_prefix: %q\n", config.DefaultCachePrefix))
	cfg.WriteString(fmt.Sprintf("  version: %q\n", config.DefaultCacheVersion))
	cfg.WriteString(fmt.Sprintf("  path: %q\n", cachePath))
	cfg.WriteString("\n")

	cfg.WriteString("sync:\n")
	cfg.WriteString(fmt.Sprintf("  endpoint: %q\n", endpoint))
	cfg.WriteString("  interval: \"15m\"\n")
	cfg.WriteString("  timeout: \"10s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("notifications:\n")
	cfg.WriteString("  journal_path: \"/journal\"\n")
	if webhook != "" {
		cfg.WriteString(fmt.Sprintf("  webhook_url: %q\n", webhook))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))
	if logFile != "" {
		cfg.WriteString(fmt.Sprintf("  file: %q\n", logFile))
	}

	// Validate before writing so a typo doesn't leave a broken file behind
	if _, err := config.Parse([]byte(cfg.String())); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the worker:")
	fmt.Printf("  mindmatters-worker serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
