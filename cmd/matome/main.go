// Package main is the matome CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/matome/internal/config"
	"github.com/hyperjump/matome/internal/ingest"
	"github.com/hyperjump/matome/internal/metrics"
	"github.com/hyperjump/matome/internal/models"
	"github.com/hyperjump/matome/internal/platform"
	"github.com/hyperjump/matome/internal/search"
	"github.com/hyperjump/matome/internal/server"
	"github.com/hyperjump/matome/internal/stats"
	"github.com/hyperjump/matome/internal/store"
	"github.com/hyperjump/matome/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/matome/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "matome server" from the project dir uses the project's
// config (including debug). Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "sync":
		runSync()
	case "search":
		runSearch()
	case "stats":
		runStats()
	case "version", "--version", "-v":
		fmt.Printf("matome version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (sync progress, search queries, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if len(components.Clients) == 0 {
		logger.Warn("no platform tokens configured, sync endpoints will report unknown platform")
	}

	srv := server.NewServer(
		components.Engine,
		components.Aggregator,
		components.Coordinator,
		components.Store,
		&cfg.Server,
		logger,
		components.Metrics,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runSync() {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	platformName := fs.String("platform", "", "sync a single platform (chatwork or notion); default syncs all")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		// Use the HTTP API when the server is running so the in-progress
		// guard covers both paths.
		runs, err := syncViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
			os.Exit(1)
		}
		printSyncRuns(runs)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	var runs []*models.SyncRun
	if *platformName != "" {
		run, err := components.Coordinator.Sync(ctx, platform.Platform(*platformName))
		if err != nil && run == nil {
			fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
			os.Exit(1)
		}
		if run != nil {
			runs = append(runs, run)
		}
	} else {
		runs = components.Coordinator.SyncAll(ctx)
	}
	printSyncRuns(runs)
}

func printSyncRuns(runs []*models.SyncRun) {
	for _, run := range runs {
		line := fmt.Sprintf("%-10s %-12s %d message(s)", run.Platform, run.Status, run.MessagesCount)
		if run.SkippedCount > 0 {
			line += fmt.Sprintf(", %d skipped", run.SkippedCount)
		}
		if run.ErrorMessage != "" {
			line += fmt.Sprintf("  (%s)", run.ErrorMessage)
		}
		fmt.Println(line)
	}
}

func syncViaHTTP(serverURL string) ([]*models.SyncRun, error) {
	resp, err := http.Post(serverURL+"/api/sync", "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Success bool              `json:"success"`
		Error   string            `json:"error"`
		Runs    []*models.SyncRun `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("sync failed: %s", out.Error)
	}
	return out.Runs, nil
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	platformName := fs.String("platform", "", "filter by platform (chatwork or notion)")
	page := fs.Int("page", 1, "result page (1-based)")
	perPage := fs.Int("per-page", 0, "results per page (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: matome search [flags] <query>")
		os.Exit(1)
	}
	queryStr := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryStr == "" {
		fmt.Println("Usage: matome search [flags] <query>")
		os.Exit(1)
	}

	req := &models.SearchRequest{
		Query:    queryStr,
		Platform: *platformName,
		Page:     *page,
		PerPage:  *perPage,
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		resp, err := searchViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response = resp
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()

		response, err = components.Engine.Search(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("%d result(s), page %d/%d\n", response.Total, response.Page, response.TotalPages)
		for _, msg := range response.Items {
			when := ""
			if msg.CreatedAt != nil {
				when = msg.CreatedAt.Format("2006-01-02 15:04")
			}
			fmt.Printf("\n[%s] %s  %s  %s\n", msg.Platform, msg.Title, msg.AuthorName, when)
			fmt.Println(utils.Truncate(msg.Content, 200))
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, req *models.SearchRequest) (*models.SearchResponse, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	if req.Platform != "" {
		params.Set("platform", req.Platform)
	}
	if req.Page > 0 {
		params.Set("page", fmt.Sprintf("%d", req.Page))
	}
	if req.PerPage > 0 {
		params.Set("per_page", fmt.Sprintf("%d", req.PerPage))
	}
	resp, err := http.Get(serverURL + "/api/search?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		models.SearchResponse
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("search failed: %s", out.Error)
	}
	return &out.SearchResponse, nil
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var result *models.Stats
	if *serverURL != "" {
		res, err := statsViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
		result = res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()

		result, err = components.Aggregator.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("total_messages:  %d\n", result.TotalMessages)
		for _, pc := range result.PlatformStats {
			fmt.Printf("  %-10s %d\n", pc.Platform, pc.Count)
		}
		if result.LastSync != nil {
			fmt.Printf("last_sync:       %s\n", result.LastSync.Format(time.RFC3339))
		}
		if len(result.PopularSearches) > 0 {
			fmt.Println("popular_searches:")
			for _, q := range result.PopularSearches {
				fmt.Printf("  %-20s %d\n", q.Query, q.Count)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statsViaHTTP(serverURL string) (*models.Stats, error) {
	resp, err := http.Get(serverURL + "/api/stats")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Success bool          `json:"success"`
		Error   string        `json:"error"`
		Stats   *models.Stats `json:"stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("stats failed: %s", out.Error)
	}
	return out.Stats, nil
}

// Components holds initialized services.
type Components struct {
	Store       store.Store
	Clients     []platform.Client
	Coordinator *ingest.Coordinator
	Engine      *search.Engine
	Aggregator  *stats.Aggregator
	Metrics     *metrics.Metrics
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Only platforms with a token configured get a client; the others are
	// simply absent from sync.
	var clients []platform.Client
	if cfg.Platforms.Chatwork.Token != "" {
		clients = append(clients, platform.NewChatworkClient(&cfg.Platforms.Chatwork))
	}
	if cfg.Platforms.Notion.Token != "" {
		clients = append(clients, platform.NewNotionClient(&cfg.Platforms.Notion))
	}

	m := metrics.New()
	coordinator := ingest.NewCoordinator(st, clients, &cfg.Sync, logger, ingest.WithMetrics(m))
	engine := search.NewEngine(st, &cfg.Search, logger, search.WithMetrics(m))
	aggregator := stats.NewAggregator(st, &cfg.Search)

	return &Components{
		Store:       st,
		Clients:     clients,
		Coordinator: coordinator,
		Engine:      engine,
		Aggregator:  aggregator,
		Metrics:     m,
	}, nil
}

func printUsage() {
	fmt.Println(`matome - Unified message search across chat and notes platforms

Usage:
  matome server [flags]           Start the HTTP server
  matome sync [flags]             Pull recent messages from all configured platforms
  matome search [flags] <query>   Search synchronized messages
  matome stats [flags]            Show corpus and sync statistics
  matome version                  Show version
  matome help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/matome/config.yaml)
  --debug            Enable debug logging (sync progress, search queries, etc.)

Sync Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --platform string  Sync only one platform: chatwork or notion (direct mode only)

Search Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --platform string  Filter results by platform: chatwork or notion
  --page int         Result page, 1-based (default: 1)
  --per-page int     Results per page (default: server default)
  --output string    Output format: text or json (default: text)

Stats Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Tokens are read from config or the CHATWORK_API_TOKEN and NOTION_API_TOKEN
environment variables.

Examples:
  matome server
  matome sync
  matome sync --server "" --platform chatwork
  matome search deploy checklist
  matome search --platform notion --output json roadmap
  matome stats`)
}
