package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pvivy/internal/catalog"
	"pvivy/internal/classifier"
	"pvivy/internal/config"
	"pvivy/internal/log"
	"pvivy/internal/simulator"
	"pvivy/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	frontendDir := flag.String("frontend-dir", "frontend/build", "directory containing frontend build")
	validate := flag.Bool("validate", false, "cross-validate when training at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := log.Init(cfg.Debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		log.Fatalf("Failed to load module catalog: %v", err)
	}
	log.Infow("catalog loaded", "path", cfg.Catalog, "modules", cat.Len())

	hub := ws.NewHub()
	engine := simulator.New(cfg, cat, classifier.FileSource{Path: cfg.Model})
	engine.SetCallback(ws.NewBridge(hub))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loadOrTrain(ctx, engine, cfg.Model, *validate); err != nil {
		log.Fatalf("Failed to prepare classifier: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(ctx, engine, hub, *frontendDir),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("shutdown", "error", err)
		}
	}()

	log.Infow("starting server", "addr", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

// newMux wires the health check, WebSocket endpoint, JSON API and optional
// frontend. Training started over the WebSocket is bound to ctx.
func newMux(ctx context.Context, engine *simulator.Engine, hub *ws.Hub, frontendDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/ws", ws.NewHandler(ctx, hub, engine))
	ws.NewAPI(engine).Register(mux)

	if frontendDir != "" {
		if _, err := os.Stat(frontendDir); err == nil {
			log.Infow("serving frontend", "dir", frontendDir)
			mux.Handle("/", http.FileServer(http.Dir(frontendDir)))
		}
	}
	return mux
}

// loadOrTrain loads the saved classifier, or trains one from the catalog and
// saves it to path when none exists yet.
func loadOrTrain(ctx context.Context, engine *simulator.Engine, path string, validate bool) error {
	m, err := engine.Detector().Model(ctx)
	if err == nil {
		log.Infow("classifier loaded", "path", path, "model_id", m.ID.String(), "classes", len(m.Classes))
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	log.Infow("no saved classifier, training from catalog", "path", path)
	m, res, err := engine.Train(ctx, validate)
	if err != nil {
		return err
	}
	if res.Report != nil {
		log.Infow("cross-validation", "mean_accuracy", res.Report.Mean, "folds", len(res.Report.Folds))
	}
	if path == "" {
		return nil
	}
	if err := classifier.WriteFile(path, m); err != nil {
		return fmt.Errorf("saving classifier: %w", err)
	}
	log.Infow("classifier saved", "path", path)
	return nil
}
