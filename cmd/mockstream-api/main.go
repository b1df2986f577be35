package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/mmrzaf/mockstream/internal/api"
	"github.com/mmrzaf/mockstream/internal/app"
	"github.com/mmrzaf/mockstream/internal/config"
	"github.com/mmrzaf/mockstream/internal/infra/repos/runs"
	"github.com/mmrzaf/mockstream/internal/infra/repos/schemas"
	"github.com/mmrzaf/mockstream/internal/logging"
	"github.com/mmrzaf/mockstream/internal/registry"
)

func main() {
	cfg := config.Load()

	schemasDir := flag.String("schemas-dir", cfg.SchemasDir, "Schemas directory")
	runsDSN := flag.String("runs-dsn", cfg.RunsDSN, "Run history database (sqlite path or postgres:// DSN)")
	bindAddr := flag.String("bind", cfg.BindAddr, "Bind address")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level")
	flag.Parse()

	logger := logging.NewLogger(*logLevel).WithComponent("api_main")

	runRepo := runs.New(*runsDSN)
	if err := runRepo.Init(); err != nil {
		logger.Errorw("startup.failed", map[string]any{"error": err.Error(), "stage": "init_run_repo"})
		os.Exit(1)
	}
	defer runRepo.Close()

	runService := app.NewRunService(schemas.NewFileRepository(*schemasDir), runRepo, registry.DefaultTypeRegistry(), logger)

	mux := http.NewServeMux()
	api.NewHandler(runService).Routes(mux)

	logger.Infow("startup.listening", map[string]any{"bind": *bindAddr})
	if err := http.ListenAndServe(*bindAddr, api.LoggingMiddleware(logger.WithComponent("http"), mux)); err != nil {
		logger.Errorw("startup.failed", map[string]any{"error": err.Error(), "stage": "listen"})
		os.Exit(1)
	}
}
