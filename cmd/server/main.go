package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/preflab/pairwise/internal/api"
	"github.com/preflab/pairwise/internal/config"
	"github.com/preflab/pairwise/internal/db"
	"github.com/preflab/pairwise/internal/manifest"
	"github.com/preflab/pairwise/internal/middleware"
	"github.com/preflab/pairwise/internal/web"
)

func main() {
	// Local setups keep their PAIRWISE_* settings in a .env file; absence
	// is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.ExportConfigured() {
		log.Printf("warning: no export token configured, /export.csv will refuse every request")
	}

	m, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		log.Fatalf("manifest: %v", err)
	}
	if cfg.CheckFiles {
		if err := m.CheckFiles(cfg.StaticDir); err != nil {
			log.Fatalf("manifest: %v", err)
		}
	}
	log.Printf("manifest loaded: %d sets from %s", len(m), cfg.ManifestPath)

	conn, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer conn.Close()
	store, err := db.NewSQLiteStore(conn)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	tmpl, err := web.NewTemplates()
	if err != nil {
		log.Fatalf("templates: %v", err)
	}

	mux := http.NewServeMux()
	api.NewRouter(store, cfg, m, tmpl).Register(mux)

	handler := middleware.SecureHeaders(middleware.NoStore(mux))
	server := &http.Server{Addr: cfg.Addr, Handler: handler}

	// signal.Notify requires a buffered channel
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		server.Close()
	}()

	log.Printf("pairwise study server listening on %s (trials=%d, metrics=%d)", cfg.Addr, cfg.NTrials, len(cfg.Metrics))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
