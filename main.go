package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"

	"github.com/TWRT/task-tracker/internal/api"
	"github.com/TWRT/task-tracker/internal/api/middleware"
	"github.com/TWRT/task-tracker/internal/config"
	"github.com/TWRT/task-tracker/internal/repository"
	"github.com/TWRT/task-tracker/internal/service"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "server configuration file")
	flag.Parse()

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.MustLoad(configPath)
	log := mustMakeLogger(cfg.LogLevel)

	store, err := repository.Open(context.Background(), cfg.Database.URL, cfg.Database.Name, log)
	if err != nil {
		log.Error("cannot open task store", "error", err)
		os.Exit(1)
	}
	log.Info("task store ready")

	taskService := service.NewTaskService(store, log)
	router := api.SetupRouter(taskService, log, middleware.AuthConfig{
		Required:  cfg.Auth.Required,
		JWTSecret: cfg.Auth.JWTSecret,
		JWTIssuer: cfg.Auth.JWTIssuer,
	})
	if !cfg.Auth.Required {
		log.Warn("authentication is disabled")
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info("task tracker http server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.HTTP.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				log.Info("shutdown requested")
				serverErr := server.Shutdown(ctx)
				return errors.Join(serverErr, store.Close())
			},
		},
	)

	exitCode := <-wait
	log.Info("task tracker exited", "code", exitCode)
	os.Exit(exitCode)
}

func mustMakeLogger(logLevel string) *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
