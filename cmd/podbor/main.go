// Package main is the Podbor CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/velestore/podbor/internal/catalog"
	"github.com/velestore/podbor/internal/cli"
	"github.com/velestore/podbor/internal/config"
	"github.com/velestore/podbor/internal/corpus"
	"github.com/velestore/podbor/internal/resolver"
	"github.com/velestore/podbor/internal/server"
	"github.com/velestore/podbor/internal/session"
	"github.com/velestore/podbor/internal/storage"
	"github.com/velestore/podbor/internal/watcher"
	"github.com/velestore/podbor/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/podbor/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "podbor server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
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
	case "ask":
		runAsk()
	case "popular":
		runPopular()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("podbor version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (watcher events, resolve requests, etc.)")
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

	logger.Info("catalog loaded",
		zap.String("path", cfg.Catalog.Path),
		zap.Int("items", components.Engine.Snapshot().Len()),
	)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.EnabledOrDefault() {
		engine := components.Engine
		watchOpts := []watcher.Option{
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS) * time.Millisecond),
		}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(cfg.Catalog.Path, func(path string) {
			if err := engine.ReloadFromFile(); err != nil {
				logger.Warn("dataset reload failed, keeping previous corpus",
					zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("dataset reloaded",
				zap.String("path", path),
				zap.Int("items", engine.Snapshot().Len()),
			)
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Engine,
		components.Sessions,
		components.Storage,
		cfg,
		logger,
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
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQueryText joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting (e.g. "шапка до 500 руб" vs шапка до 500 руб).
func buildQueryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// askArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "podbor ask \"шапка\" -session u1"
// would otherwise leave -session unparsed.
func askArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: podbor ask [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
A price limit inside the query is honored: "шапка до 500 руб" only returns
products cheaper than 500. When nothing matches, the answer is a clarification
prompt; repeat the command with the same --session and extra details to refine.

Examples:
  podbor ask шапка
  podbor ask "шапка до 500 руб"              # same as above, quoted
  podbor ask --session u1 тёплая             # refine an earlier query
  podbor ask --output json диван             # structured JSON for other apps
`)
}

func runAsk() {
	askArgs := askArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = resolve locally without a server)")
	sessionID := fs.String("session", "", "session ID for multi-turn clarification (default: random)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(askArgs)

	if fs.NArg() < 1 {
		printAskUsage(fs)
		os.Exit(1)
	}
	query := buildQueryText(fs.Args())
	if query == "" {
		printAskUsage(fs)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	id := *sessionID
	if id == "" {
		id = uuid.New().String()
	}

	if *serverURL != "" {
		result, err := resolveViaHTTP(*serverURL, id, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Resolve failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteTurnResult(os.Stdout, result, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct mode (when server is not running).
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

	result := components.Sessions.Turn(context.Background(), id, query)
	if err := cli.WriteTurnResult(os.Stdout, &result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func resolveViaHTTP(serverURL, sessionID, text string) (*session.TurnResult, error) {
	body, err := json.Marshal(map[string]string{"session_id": sessionID, "text": text})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/resolve", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result session.TurnResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func runPopular() {
	fs := flag.NewFlagSet("popular", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read storage directly)")
	limit := fs.Int("limit", 0, "number of products (0 = configured default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := cli.OutputText
	if *outputFormat == "json" {
		format = cli.OutputJSON
	}

	var products []storage.PopularProduct
	if *serverURL != "" {
		res, err := popularViaHTTP(*serverURL, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Popular failed: %v\n", err)
			os.Exit(1)
		}
		products = res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		n := *limit
		if n <= 0 {
			n = cfg.Search.PopularLimit
		}
		products, err = store.TopProducts(context.Background(), n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Popular failed: %v\n", err)
			os.Exit(1)
		}
	}

	if err := cli.WritePopularProducts(os.Stdout, products, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func popularViaHTTP(serverURL string, limit int) ([]storage.PopularProduct, error) {
	u := serverURL + "/api/v1/popular"
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Products []storage.PopularProduct `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Products, nil
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	Threshold     float64 `json:"threshold"`
	TopN          int     `json:"top_n"`
	CollapseScore float64 `json:"collapse_score"`
	CatalogPath   string  `json:"catalog_path,omitempty"`
	DatabasePath  string  `json:"database_path,omitempty"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Items          int                   `json:"items"`
	VocabularySize int                   `json:"vocabulary_size"`
	Sessions       int                   `json:"sessions"`
	Config         *statusConfigResponse `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = load the catalog directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		rows, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
			os.Exit(1)
		}
		c, err := corpus.Build(rows)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build corpus: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Items:          c.Len(),
			VocabularySize: c.VocabularySize(),
			Config: &statusConfigResponse{
				Threshold:     cfg.Search.Threshold,
				TopN:          cfg.Search.TopN,
				CollapseScore: cfg.Search.CollapseScore,
				CatalogPath:   cfg.Catalog.Path,
				DatabasePath:  cfg.Storage.DatabasePath,
			},
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("items:            %d   # products in the corpus\n", status.Items)
		fmt.Printf("vocabulary_size:  %d   # distinct indexed terms\n", status.VocabularySize)
		fmt.Printf("sessions:         %d   # active conversations\n", status.Sessions)
		if status.Config != nil {
			fmt.Println()
			fmt.Println("# configuration")
			fmt.Printf("threshold:        %.2f\n", status.Config.Threshold)
			fmt.Printf("top_n:            %d\n", status.Config.TopN)
			fmt.Printf("collapse_score:   %.2f\n", status.Config.CollapseScore)
			if status.Config.CatalogPath != "" {
				fmt.Printf("catalog_path:     %s\n", status.Config.CatalogPath)
			}
			if status.Config.DatabasePath != "" {
				fmt.Printf("database_path:    %s\n", status.Config.DatabasePath)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Engine   *resolver.Engine
	Sessions *session.Manager
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	rows, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	c, err := corpus.Build(rows)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to build corpus: %w", err)
	}

	opts := resolver.Options{
		Threshold:     cfg.Search.Threshold,
		TopN:          cfg.Search.TopN,
		CollapseScore: cfg.Search.CollapseScore,
	}
	engine := resolver.NewEngine(c, cfg.Catalog.Path, opts)
	sessions := session.NewManager(engine, store, store, logger)

	return &Components{
		Storage:  store,
		Engine:   engine,
		Sessions: sessions,
	}, nil
}

func printUsage() {
	fmt.Println(`podbor - product recommendation engine for the catalog

Usage:
  podbor server [flags]           Start the HTTP server
  podbor ask [flags] <query>      Resolve a product query
  podbor popular [flags]          Show the most shown products
  podbor status [flags]           Show corpus and configuration status
  podbor version                  Show version
  podbor help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/podbor/config.yaml)
  --debug            Enable debug logging (watcher events, resolve requests, etc.)

Ask Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to resolve locally.
  --session string   Session ID for multi-turn clarification (default: random)
  --output string    Output format: text or json (default: text)

Popular Flags:
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to read storage directly.
  --limit int        Number of products (0 = configured default)
  --output string    Output format: text or json

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to load the catalog directly.
  --output string    Output format: text or json (default: text)

Examples:
  podbor server
  podbor ask "шапка до 500 руб"
  podbor ask --session u1 тёплая      # refine an earlier query
  podbor ask --output json диван
  podbor popular --limit 5
  podbor status --output json`)
}
