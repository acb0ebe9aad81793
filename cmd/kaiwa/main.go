// Package main is the Kaiwa CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kaiwa/internal/archive"
	"github.com/hyperjump/kaiwa/internal/cli"
	"github.com/hyperjump/kaiwa/internal/config"
	"github.com/hyperjump/kaiwa/internal/embedding"
	"github.com/hyperjump/kaiwa/internal/generator"
	"github.com/hyperjump/kaiwa/internal/indexer"
	"github.com/hyperjump/kaiwa/internal/rag"
	"github.com/hyperjump/kaiwa/internal/retrieval"
	"github.com/hyperjump/kaiwa/internal/server"
	"github.com/hyperjump/kaiwa/internal/session"
	"github.com/hyperjump/kaiwa/internal/watcher"
	"github.com/hyperjump/kaiwa/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kaiwa/config.yaml"
	defaultServerURL  = "http://localhost:8080"
	defaultSessionID  = "default_session"
)

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if it exists. When neither exists the built-in
// defaults are used, so a fresh checkout runs with only an API key in .env.
// Returns the config and the path that was actually loaded ("" for defaults).
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
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys usually live in .env next to the binary; a missing file is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "chat":
		runChat()
	case "upload":
		runUpload()
	case "ask":
		runAsk()
	case "history":
		runHistory()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kaiwa version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (turn states, index swaps, etc.)")
	document := fs.String("document", "", "document to load at startup (overrides document.path)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *document != "" {
		cfg.Document.Path = *document
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

	components, err := initializeComponents(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Document.Path != "" {
		if _, err := components.Indexer.UploadFile(context.Background(), cfg.Document.Path); err != nil {
			logger.Error("initial document load failed", zap.String("path", cfg.Document.Path), zap.Error(err))
		}
		if cfg.Document.Watch {
			watchSvc, err := startDocumentWatcher(watchCtx, cfg, components.Indexer, logger)
			if err != nil {
				logger.Fatal("Failed to start watcher", zap.Error(err))
			}
			defer watchSvc.Stop()
		}
	}

	srvOpts := []server.Option{}
	if components.Archive != nil {
		srvOpts = append(srvOpts, server.WithArchive(components.Archive))
	}
	srv := server.NewServer(components.Conversation, components.Indexer, cfg, logger, srvOpts...)
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
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// startDocumentWatcher re-indexes cfg.Document.Path whenever it changes on disk.
func startDocumentWatcher(ctx context.Context, cfg *config.Config, ix *indexer.Indexer, logger *zap.Logger) (*watcher.Watcher, error) {
	w, err := watcher.NewWatcher(cfg.Document.Path,
		func(path string) {
			doc, changed, err := ix.SyncFile(ctx, path)
			switch {
			case err != nil:
				logger.Warn("watch re-index failed", zap.String("path", path), zap.Error(err))
			case changed:
				logger.Info("document re-indexed", zap.String("path", path), zap.Int("chunks", doc.ChunkCount))
			}
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(time.Duration(cfg.Document.DebounceMS)*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "show debug logs")
	file := fs.String("file", "", "document to load before the first question")
	sessionID := fs.String("session", defaultSessionID, "session id")
	newSession := fs.Bool("new", false, "start a fresh session with a random id")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewCLILogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cli.EmbeddingProgress(os.Stderr))
	if err != nil {
		cli.WriteError(os.Stderr, err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := *file
	if path == "" {
		path = cfg.Document.Path
	}
	if path != "" {
		doc, err := components.Indexer.UploadFile(ctx, path)
		if err != nil {
			cli.WriteError(os.Stderr, err)
			os.Exit(1)
		}
		_ = cli.WriteDocument(os.Stdout, doc, cli.OutputText)
	}

	id := *sessionID
	if *newSession {
		id = uuid.NewString()
	}
	chat := cli.NewChat(components.Conversation, components.Indexer, id)
	if err := chat.Run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		cli.WriteError(os.Stderr, err)
		os.Exit(1)
	}
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kaiwa upload [flags] <file>")
		os.Exit(1)
	}
	format := mustOutputFormat(*outputFormat)
	doc, err := uploadViaHTTP(*serverURL, fs.Arg(0))
	if err != nil {
		cli.WriteError(os.Stderr, err)
		os.Exit(1)
	}
	if err := cli.WriteDocument(os.Stdout, doc, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAsk() {
	args := flagsFirst(os.Args[2:])
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	sessionID := fs.String("session", defaultSessionID, "session id")
	outputFormat := fs.String("output", "text", "output format: text or json")
	showSources := fs.Bool("sources", false, "list the retrieved chunks")
	_ = fs.Parse(args)

	question := joinArgs(fs.Args())
	if question == "" {
		fmt.Println("Usage: kaiwa ask [flags] <question>")
		os.Exit(1)
	}
	format := mustOutputFormat(*outputFormat)
	ans, err := askViaHTTP(*serverURL, *sessionID, question)
	if err != nil {
		cli.WriteError(os.Stderr, err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, ans, format, *showSources); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	archivePath := fs.String("archive", "", "read the transcript from this archive database instead of the server")
	sessionID := fs.String("session", defaultSessionID, "session id")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := mustOutputFormat(*outputFormat)
	var (
		h   *historyResponse
		err error
	)
	if *archivePath != "" {
		h, err = historyFromArchive(context.Background(), *archivePath, *sessionID)
	} else {
		h, err = historyViaHTTP(*serverURL, *sessionID)
	}
	if err != nil {
		cli.WriteError(os.Stderr, err)
		os.Exit(1)
	}
	if err := cli.WriteHistory(os.Stdout, h.SessionID, h.History, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	status, err := statusViaHTTP(*serverURL)
	if err != nil {
		cli.WriteError(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Sessions: %d\n", status.Sessions)
	if status.Document == nil {
		fmt.Println("Document: none")
		return
	}
	fmt.Printf("Document: %s (%s)\n", status.Document.Name, status.Document.ID)
	fmt.Printf("Chunks:   %d\n", status.Chunks)
	if status.Archive != nil {
		fmt.Printf("Archived turns: %d\n", status.Archive.Turns)
	}
}

func mustOutputFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// joinArgs joins positional args so multi-word questions work with or without quotes.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// flagsFirst moves flags that appear after the question to the front, since
// the flag package stops at the first positional argument.
func flagsFirst(args []string) []string {
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

// Components holds initialized services.
type Components struct {
	Embedder     embedding.Embedder
	Generator    generator.Generator
	Conversation *rag.Conversation
	Indexer      *indexer.Indexer
	Archive      *archive.SQLiteArchive
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Archive != nil {
		_ = c.Archive.Close()
	}
}

// initializeComponents wires the pipeline from cfg. progress, when non-nil,
// receives embedding progress for every upload.
func initializeComponents(cfg *config.Config, logger *zap.Logger, progress func(done, total int)) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	gen, err := generator.New(&cfg.Generator)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	retriever, err := retrieval.New(&cfg.Retrieval, embedder)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap())
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	rwOpts := []rag.RewriterOption{rag.WithRewriterLogger(logger)}
	if cfg.Rewrite.Guard {
		rwOpts = append(rwOpts, rag.WithGuard(rag.LengthGuard{MaxRatio: cfg.Rewrite.MaxLengthRatio}))
	}
	convOpts := []rag.Option{rag.WithLogger(logger)}
	idxOpts := []indexer.IndexerOption{
		indexer.WithLogger(logger),
		indexer.WithKeywords(cfg.Retrieval.Strategy == config.StrategyHybrid),
		indexer.WithBatchSize(cfg.Embedding.BatchSize),
	}
	if progress != nil {
		idxOpts = append(idxOpts, indexer.WithProgress(progress))
	}

	var arch *archive.SQLiteArchive
	if cfg.Archive.Path != "" {
		arch, err = archive.NewSQLiteArchive(cfg.Archive.Path)
		if err != nil {
			_ = embedder.Close()
			return nil, fmt.Errorf("failed to open archive: %w", err)
		}
		convOpts = append(convOpts, rag.WithObserver(arch))
		idxOpts = append(idxOpts, indexer.WithObserver(arch))
		logger.Info("archive enabled", zap.String("path", cfg.Archive.Path))
	}

	conv := rag.NewConversation(
		session.NewStore(),
		rag.NewRewriter(gen, rwOpts...),
		retriever,
		rag.NewComposer(gen),
		convOpts...,
	)
	ix := indexer.NewIndexer(embedder, chunker, conv, idxOpts...)

	return &Components{
		Embedder:     embedder,
		Generator:    gen,
		Conversation: conv,
		Indexer:      ix,
		Archive:      arch,
	}, nil
}

func printUsage() {
	fmt.Println(`kaiwa - Chat with a document

Usage:
  kaiwa server [flags]              Start the HTTP server
  kaiwa chat [flags]                Interactive chat in the terminal
  kaiwa upload [flags] <file>       Upload a document to a running server
  kaiwa ask [flags] <question>      Ask a question in a server session
  kaiwa history [flags]             Show a session's turns
  kaiwa status [flags]              Show server status
  kaiwa version                     Show version
  kaiwa help                        Show this help

Server Flags:
  --config string     Config file path (default: /usr/local/etc/kaiwa/config.yaml, or ./config.yaml)
  --debug             Enable debug logging
  --document string   Document to load at startup

Chat Flags:
  --config string     Config file path
  --file string       Document to load before chatting (default: document.path from config)
  --session string    Session id (default: default_session)
  --new               Use a fresh random session id

Ask Flags:
  --server string     Server URL (default: http://localhost:8080)
  --session string    Session id (default: default_session)
  --sources           List the retrieved chunks
  --output string     Output format: text or json (default: text)

History Flags:
  --server string     Server URL (default: http://localhost:8080)
  --archive string    Read the transcript from an archive database instead
  --session string    Session id (default: default_session)
  --output string     Output format: text or json (default: text)

Environment:
  GROQ_API_KEY (or the variable named by generator.api_key_env) is read from
  the environment or a .env file in the working directory.

Examples:
  kaiwa chat --file report.pdf
  kaiwa server --document report.pdf
  kaiwa upload handbook.docx
  kaiwa ask What is the refund policy?
  kaiwa ask --session alice "And for digital goods?"
  kaiwa history --session alice --output json`)
}
