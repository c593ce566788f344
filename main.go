package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flatsync/api"
	"flatsync/config"
	"flatsync/httputil"
	"flatsync/logging"
	"flatsync/scheduler"
	"flatsync/scraper"
	"flatsync/storage"
	"flatsync/workers"
)

var (
	crawlNow = flag.Bool("crawl", false, "Run one crawl and exit")
)

func main() {
	flag.Parse()

	logFile, err := logging.Setup("flatsync.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting flatsync...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Crawl plan: %d links, detail concurrency %d", len(cfg.Crawl.Links), cfg.Crawl.DetailConcurrency)

	clients := httputil.NewClients(cfg.UpstreamProxy)
	if cfg.UpstreamProxy != "" {
		log.Printf("Upstream proxy: %s", cfg.UpstreamProxy)
	}

	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))

	opsStore, err := storage.NewOpsStore(cfg.OpsDBPath)
	if err != nil {
		log.Fatalf("Failed to open ops database: %v", err)
	}
	defer opsStore.Close()
	log.Printf("Ops database: %s", cfg.OpsDBPath)

	pages := scraper.NewListingPageClient(clients.Upstream)
	details := scraper.NewDetailPageClient(clients.Upstream, cfg.Crawl.DetailURLTemplate)
	orchestrator := scraper.NewOrchestrator(cfg, pages, details, pgStore, opsStore)

	if *crawlNow {
		log.Println("Running crawl...")
		codes, err := orchestrator.RunCrawl(ctx)
		if err != nil {
			log.Fatalf("Crawl failed: %v", err)
		}
		log.Printf("Crawl complete, %d listings stored", len(codes))
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, opsStore)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	livenessWorker := workers.NewLivenessWorker(pgStore, opsStore, clients.Upstream, cfg.Crawl.DetailURLTemplate)
	go livenessWorker.Run(ctx, 24*time.Hour, 20, 30*time.Minute)
	sched.SetWorkers(livenessWorker)
	log.Println("Liveness worker started")

	handler := api.NewHandler(pgStore, opsStore)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		log.Printf("HTTP API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
