package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"GoScan/internal/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	cachePath := flag.String("cache", "", "path to the compile cache database (empty disables caching)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(getEnv("GOSCAN_LOG_LEVEL", "info")),
	}))
	slog.SetDefault(logger)

	port := getEnv("GOSCAN_PORT", "8080")
	dataDir := getEnv("GOSCAN_DATA_DIR", "data")

	logger.Info("starting GoScan",
		"version", Version,
		"port", port,
		"data_dir", dataDir,
		"cache", *cachePath,
	)

	// Initialize the scanner manager (mmap-adopts persisted scanners).
	mgr, err := server.NewManager(dataDir, *cachePath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize scanner manager: %v\n", err)
		os.Exit(1)
	}
	defer mgr.CloseAll()

	// Create HTTP handler and register API routes.
	handler := server.NewHandler(mgr, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	// Health check endpoint.
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		data, _ := sonnet.Marshal(map[string]string{
			"status":  "healthy",
			"version": Version,
		})
		w.Write(data)
	})

	// Root info endpoint.
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		data, _ := sonnet.Marshal(map[string]string{
			"name":    "GoScan",
			"version": Version,
		})
		w.Write(data)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
