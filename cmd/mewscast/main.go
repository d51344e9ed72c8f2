package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/bryanweaver/mewscast-sub000/internal/app"
	"github.com/bryanweaver/mewscast-sub000/internal/config"
	"github.com/bryanweaver/mewscast-sub000/internal/logger"
	"github.com/bryanweaver/mewscast-sub000/internal/metrics"
)

func main() {
	var (
		topic     = flag.String("topic", "", "post about a specific topic instead of trending news")
		dryRun    = flag.Bool("dry-run", false, "generate but do not post or record")
		followups = flag.Bool("followups", false, "post pending source-link replies and exit")
		prune     = flag.Bool("prune", false, "prune expired history records and exit")
		history   = flag.Bool("history", false, "print recent post history and exit")
	)
	flag.Parse()

	// Check if we should start HTTP server for monitoring
	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		go startMonitoringServer()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	posting := !*dryRun && !*prune && !*history
	if err := cfg.Validate(posting); err != nil {
		log.Fatalf("config error: %v", err)
	}

	a := app.New(cfg)
	ctx := context.Background()

	switch {
	case *history:
		fmt.Print(a.HistorySummary())
	case *prune:
		a.PruneHistory()
	case *followups:
		if err := a.RunFollowups(ctx); err != nil {
			logger.Error("followup run failed", "error", err)
			os.Exit(1)
		}
	default:
		if err := a.Run(ctx, *topic, *dryRun); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
	}
}

func startMonitoringServer() {
	port := os.Getenv("MONITORING_PORT")
	if port == "" {
		port = "8080"
	}

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/metrics", metricsHandler)

	log.Printf("Starting monitoring server on port %s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Printf("Monitoring server error: %v", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := "ok"
	if !stats["is_healthy"].(bool) {
		status = "error"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	response := map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
