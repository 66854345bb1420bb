// Package main is the docquery CLI entry point.
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
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bitunfold/docquery/internal/archive"
	"github.com/bitunfold/docquery/internal/config"
	"github.com/bitunfold/docquery/internal/coordinator"
	"github.com/bitunfold/docquery/internal/embedding"
	"github.com/bitunfold/docquery/internal/index"
	"github.com/bitunfold/docquery/internal/llm"
	"github.com/bitunfold/docquery/internal/loader"
	"github.com/bitunfold/docquery/internal/models"
	"github.com/bitunfold/docquery/internal/persist"
	"github.com/bitunfold/docquery/internal/server"
	"github.com/bitunfold/docquery/internal/splitter"
	"github.com/bitunfold/docquery/internal/watcher"
	"github.com/bitunfold/docquery/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

// loadConfig loads the config at path. When the default path does not exist
// the built-in defaults are used, so "docquery server" works from an empty
// directory.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func main() {
	// A local .env can carry DOCQUERY_SECRET; absence is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "insert":
		runInsert()
	case "query":
		runQuery()
	case "list":
		runList()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("docquery version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	mock := fs.Bool("mock", false, "use mock embedding and synthesis backends (no Ollama required)")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
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
		zap.String("config_path", *configPath),
		zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger, *mock)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	initCtx, initCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := components.Coordinator.Initialize(initCtx); err != nil {
		initCancel()
		logger.Fatal("Failed to initialize index", zap.Error(err))
	}
	initCancel()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		coord := components.Coordinator
		watchSvc, err = watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(ctx context.Context, path string) {
				if err := coord.Insert(ctx, path, ""); err != nil {
					logger.Warn("watch insert failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		if err != nil {
			logger.Fatal("Failed to create watcher", zap.Error(err))
		}
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		go watchSvc.SyncExistingFiles(watchCtx)
	}

	srv := server.New(components.Coordinator, &cfg.Server, server.WithLogger(logger))
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	if watchSvc != nil {
		_ = watchSvc.Stop()
	}
	if err := components.Coordinator.Persist(); err != nil {
		logger.Warn("final persist failed", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// Components holds initialized services for the server.
type Components struct {
	Embedder    embedding.Embedder
	Archive     *archive.Store
	Coordinator *coordinator.Coordinator
}

func (c *Components) Close() {
	if c.Coordinator != nil {
		_ = c.Coordinator.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, mock bool) (*Components, error) {
	var embedder embedding.Embedder
	var synth llm.Synthesizer
	if mock {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		synth = llm.NewMockSynthesizer()
		logger.Warn("running with mock embedding and synthesis backends")
	} else {
		embedder = embedding.NewOllamaEmbedder(
			cfg.Embedding.BaseURL,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			cfg.Embedding.CacheSize,
		)
		synth = llm.NewOllamaSynthesizer(cfg.LLM.BaseURL, cfg.LLM.Model)
	}

	pm := persist.NewManager(
		cfg.Storage.IndexDir,
		cfg.Storage.PreviewsPath,
		persist.WithLogger(logger),
		persist.WithIndexOptions(
			index.WithLogger(logger),
			index.WithWeights(cfg.Index.SemanticWeight, cfg.Index.KeywordWeight),
		),
	)

	coordOpts := []coordinator.Option{coordinator.WithLogger(logger)}
	var store *archive.Store
	if cfg.Storage.ArchivePath != "" {
		var err error
		store, err = archive.Open(cfg.Storage.ArchivePath)
		if err != nil {
			_ = embedder.Close()
			return nil, fmt.Errorf("failed to open document archive: %w", err)
		}
		coordOpts = append(coordOpts, coordinator.WithArchive(store))
	}

	coord := coordinator.New(
		pm,
		loader.New(),
		splitter.New(cfg.Index.ChunkSize),
		embedder,
		synth,
		cfg.Index.TopK,
		coordOpts...,
	)
	return &Components{
		Embedder:    embedder,
		Archive:     store,
		Coordinator: coord,
	}, nil
}

// apiClient calls the running server's HTTP API.
type apiClient struct {
	baseURL string
	secret  string
}

func newAPIClient(fs *flag.FlagSet) (*apiClient, []string) {
	serverURL := fs.String("server", "http://localhost:5602", "server URL")
	secret := fs.String("secret", "", "API secret (default: DOCQUERY_SECRET env)")
	_ = fs.Parse(os.Args[2:])

	s := *secret
	if s == "" {
		s = os.Getenv("DOCQUERY_SECRET")
	}
	if s == "" {
		s = "password"
	}
	return &apiClient{baseURL: strings.TrimRight(*serverURL, "/"), secret: s}, fs.Args()
}

func (c *apiClient) do(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runInsert() {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	docID := fs.String("id", "", "document id (default: generated)")
	client, args := newAPIClient(fs)

	if len(args) < 1 {
		fmt.Println("Usage: docquery insert [flags] <file>")
		os.Exit(1)
	}
	path, err := filepath.Abs(args[0])
	if err != nil {
		fmt.Printf("Invalid path: %v\n", err)
		os.Exit(1)
	}

	payload := map[string]string{"file_path": path}
	if *docID != "" {
		payload["doc_id"] = *docID
	}
	if err := client.do(http.MethodPost, "/api/v1/documents", payload, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Insert failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document inserted: %s\n", path)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	client, args := newAPIClient(fs)

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		fmt.Println("Usage: docquery query [flags] <question>")
		os.Exit(1)
	}

	var resp models.QueryResponse
	if err := client.do(http.MethodPost, "/api/v1/query",
		map[string]string{"text": question}, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(resp.Text)
	if len(resp.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range resp.Sources {
			fmt.Printf("  [%.2f] %s: %s\n", src.Similarity, src.NodeID, utils.Preview(src.Text, 80))
		}
	}
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	client, _ := newAPIClient(fs)

	var docs []models.DocumentInfo
	if err := client.do(http.MethodGet, "/api/v1/documents", nil, &docs); err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		fmt.Println("No documents indexed.")
		return
	}
	for _, doc := range docs {
		fmt.Printf("%s\t%s\n", doc.ID, doc.Text)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	client, _ := newAPIClient(fs)

	var status struct {
		Ready          bool  `json:"ready"`
		Chunks         int   `json:"chunks"`
		Documents      int   `json:"documents"`
		DiskUsageBytes int64 `json:"disk_usage_bytes"`
	}
	if err := client.do(http.MethodGet, "/api/v1/status", nil, &status); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ready:            %t\n", status.Ready)
	fmt.Printf("documents:        %d\n", status.Documents)
	fmt.Printf("chunks:           %d\n", status.Chunks)
	fmt.Printf("disk_usage_bytes: %d\n", status.DiskUsageBytes)
}

func printUsage() {
	fmt.Println(`docquery - document index and retrieval server

Usage:
  docquery server [flags]            Start the HTTP server
  docquery insert [flags] <file>     Insert a document into the index
  docquery query [flags] <question>  Ask a question over indexed documents
  docquery list [flags]              List indexed documents
  docquery status [flags]            Show index status
  docquery version                   Show version
  docquery help                      Show this help

Server Flags:
  --config string    Config file path (default: config.yaml)
  --debug            Enable debug logging
  --mock             Use mock embedding/synthesis backends (no Ollama required)

Client Flags (insert, query, list, status):
  --server string    Server URL (default: http://localhost:5602)
  --secret string    API secret (default: DOCQUERY_SECRET env)

Insert Flags:
  --id string        Document id (default: generated)

Examples:
  docquery server
  docquery insert notes.txt
  docquery insert --id meeting-notes notes.txt
  docquery query "what did we decide about the deadline?"
  docquery list
  docquery status`)
}
