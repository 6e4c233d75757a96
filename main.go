package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"gitlab-trace/internal/client"
	"gitlab-trace/internal/config"
	"gitlab-trace/internal/handler"
	"gitlab-trace/internal/repository"
	"gitlab-trace/internal/service"
	"gitlab-trace/internal/trace"
)

// Initialises Redis, resolves the GitLab project, sets up HTTP handlers, and starts the HTTP server.
func main() {
	cfg := config.LoadConfig()
	mergeConfigFile(cfg)
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.GetLogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("2006-01-02 15:04:05"))
			}
			return a
		},
	})))

	slog.Info("GitLab Trace starting", "version", handler.Version)

	// Log configuration (sanitized)
	slog.Info("Configuration loaded",
		"log_level", cfg.LogLevel,
		"authentication_enabled", cfg.EnableAuthentication,
		"project_url", cfg.GitLabProjectURL,
		"gitlab_token_configured", cfg.GitLabToken != "",
		"skip_tls_verify", cfg.GitLabSkipTLS,
		"port", cfg.Port,
	)

	slog.Info("Initializing Redis connection...")
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rdb := redis.NewClient(opt)

	// Each manager gets its own transport so their sequences run independently
	slog.Debug("Initializing service layer dependencies")
	bindings := repository.NewRedisRepository(rdb)
	requirements := service.NewRequirementsManager(client.NewGitLabClient(cfg), bindings)
	reviews := service.NewReviewsManager(client.NewGitLabClient(cfg), bindings)
	tracker := service.NewTracker(requirements, reviews, bindings)
	slog.Info("Service layer dependencies initialized successfully")

	if cfg.HasGitLabCredentials() {
		resolved, err := tracker.SetCredentials(ctx, cfg.GitLabProjectURL, cfg.GitLabToken)
		if err != nil {
			slog.Error("Failed to resolve GitLab project at startup", "error", err, "project_url", cfg.GitLabProjectURL)
		} else if !resolved {
			slog.Warn("GitLab project not found, set credentials via PUT /credentials", "project_url", cfg.GitLabProjectURL)
		}
	} else {
		slog.Warn("No GitLab credentials configured, set them via PUT /credentials")
	}

	writer := handler.NewResponseWriter()
	mux := handler.NewRouter(cfg, handler.Handlers{
		Health:       handler.NewHealthHandler(rdb, requirements, reviews),
		Requirements: handler.NewRecordHandler[trace.Requirement](requirements, handler.RequirementFilter(tracker.Selection), writer),
		Reviews:      handler.NewRecordHandler[trace.Review](reviews, handler.ReviewFilter(), writer),
		Tracker: handler.NewTrackerHandler(tracker, map[string]handler.TagSource{
			requirements.Name(): requirements,
			reviews.Name():      reviews,
		}, tracker.Selection, writer),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Server listening", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP server error", "error", err)
	}

	tracker.Wait()
	if err := rdb.Close(); err != nil {
		slog.Error("Failed to close Redis client", "error", err)
	}
}

// mergeConfigFile fills missing GitLab settings from the CLI configuration file
func mergeConfigFile(cfg *config.Config) {
	path, err := config.DefaultFilePath()
	if err != nil {
		return
	}

	file, err := config.LoadFile(path)
	if err != nil {
		if !errors.Is(err, config.ErrNoConfigFile) {
			slog.Warn("Ignoring unreadable configuration file", "error", err, "path", path)
		}
		return
	}
	cfg.MergeFile(file)
}
