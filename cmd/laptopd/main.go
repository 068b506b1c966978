// File path: cmd/laptopd/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nicodishanthj/laptop-insights/internal/api"
	"github.com/nicodishanthj/laptop-insights/internal/common"
	"github.com/nicodishanthj/laptop-insights/internal/config"
	"github.com/nicodishanthj/laptop-insights/internal/data/artifacts"
	"github.com/nicodishanthj/laptop-insights/internal/pipeline"
)

func main() {
	logger := common.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Warn("laptopd: .env file not loaded", "error", err)
	} else {
		logger.Info("laptopd: environment loaded from .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("laptopd: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}

	addr := flag.String("addr", ":8000", "listen address")
	indexPath := flag.String("index", "", "path to the flat vector index file")
	metadataPath := flag.String("metadata", "", "path to the slot metadata file")
	dbPath := flag.String("db", "", "path to the dynamic SQLite database")
	backend := flag.String("index-backend", "", "vector index backend (flat or chroma)")
	generator := flag.String("generator", "", "generative model provider (gemini, openai, ollama, local)")
	embedder := flag.String("embedder", "", "embedding provider (gemini, openai, ollama, local)")
	topK := flag.Int("top-k", 0, "passages retrieved per query")
	requestTimeout := flag.String("request-timeout", "", "deadline applied to each chat request (e.g. 45s)")
	seedFile := flag.String("seed", "", "load catalog rows from a JSON seed file into -db and exit")
	syncChroma := flag.Bool("sync-chroma", false, "copy the flat index and metadata into the ChromaDB collection and exit")
	flag.Parse()

	override := config.Config{
		IndexPath:    *indexPath,
		MetadataPath: *metadataPath,
		DBPath:       *dbPath,
		IndexBackend: *backend,
		Generator:    *generator,
		Embedder:     *embedder,
		TopK:         *topK,
	}
	if trimmed := strings.TrimSpace(*requestTimeout); trimmed != "" {
		dur, err := time.ParseDuration(trimmed)
		if err != nil {
			logger.Error("laptopd: invalid request timeout", "value", trimmed, "error", err)
			fmt.Println("request timeout error:", err)
			os.Exit(1)
		}
		override.RequestTimeout = dur
	}
	cfg = cfg.Merge(override)

	switch {
	case strings.TrimSpace(*seedFile) != "":
		if err := seedCatalog(ctx, cfg.DBPath, *seedFile); err != nil {
			logger.Error("laptopd: seed failed", "error", err)
			fmt.Println("seed error:", err)
			os.Exit(1)
		}
		return
	case *syncChroma:
		if err := syncChromaCollection(ctx, cfg); err != nil {
			logger.Error("laptopd: chroma sync failed", "error", err)
			fmt.Println("chroma sync error:", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("laptopd: startup initiated", "addr", *addr, "index", cfg.IndexPath, "db", cfg.DBPath,
		"generator", cfg.Generator, "embedder", cfg.Embedder)

	bundle := artifacts.Load(ctx, cfg)
	defer bundle.Close()
	if !bundle.Ready() {
		logger.Warn("laptopd: serving in degraded mode, chat requests will be rejected", "error", bundle.Err())
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           api.NewServer(pipeline.New(bundle), bundle.Catalog()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("laptopd: shutdown incomplete", "error", err)
		}
	}()

	logger.Info("laptopd: server listening", "addr", *addr, "health", "/healthz", "ready", "/readyz")
	fmt.Printf("Serving on %s\n", *addr)
	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("laptopd: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/readyz", reachable))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("laptopd: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}
