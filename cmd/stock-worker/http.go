package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MilkyWatch/StockBox/config"
	"github.com/MilkyWatch/StockBox/internal/services/checker"
)

type workerHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	checker *checker.Checker
	cfg     *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.checker == nil {
			_, _ = w.Write([]byte(`{"error":"checker not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.checker.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Секреты не показываем, только операционные настройки воркера.
		out := map[string]any{
			"checkIntervalSeconds":  opts.cfg.StockBox.CheckIntervalSeconds,
			"partitionConcurrency":  opts.cfg.StockBox.PartitionConcurrency,
			"historyRetentionHours": opts.cfg.StockBox.HistoryRetentionHours,
			"fetchConcurrency":      opts.cfg.StockBox.FetchConcurrency,
			"fetchRatePerSecond":    opts.cfg.StockBox.FetchRatePerSecond,
			"fetchAttempts":         opts.cfg.StockBox.FetchAttempts,
			"notifyConcurrency":     opts.cfg.StockBox.NotifyConcurrency,
			"notifyAttempts":        opts.cfg.StockBox.NotifyAttempts,
			"storefrontMode":        opts.cfg.StockBox.StorefrontMode,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.checker == nil {
			_, _ = w.Write([]byte(`{"error":"checker not wired"}`))
			return
		}
		opts.checker.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
