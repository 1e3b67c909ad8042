package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jo-hoe/formulastore/internal/backend"
	"github.com/jo-hoe/formulastore/internal/common"
	"github.com/jo-hoe/formulastore/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// data URLs of camera images easily exceed echo's defaults
const requestBodyLimit = "64M"

func getConfigPath() (string, bool) {
	// First check if config path is provided via environment variable
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath, true
	}

	// Default to config.yaml in current working directory
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return filepath.Join(cwd, "config.yaml"), false
}

func main() {
	// Load configuration
	configPath, explicit := getConfigPath()
	config, err := core.LoadConfigOrDefault(configPath, explicit)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	if err := config.ApplyEnvironment(os.LookupEnv); err != nil {
		slog.Error("invalid environment configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(config)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	coreService, err := core.NewCoreService(startupCtx, config)
	cancelStartup()
	if err != nil {
		slog.Error("failed to initialize core service", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	requestShutdown := func() {
		select {
		case quit <- syscall.SIGTERM:
		default:
		}
	}

	server := defineServer()
	apiService := backend.NewAPIService(config, coreService, requestShutdown)
	apiService.SetRoutes(server)

	portString := fmt.Sprintf(":%d", config.Port)

	// Start HTTP server in a goroutine to allow graceful shutdown
	go func() {
		slog.Info("starting server", "port", config.Port, "database", config.Database.Type)
		if err := server.Start(portString); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			requestShutdown()
		}
	}()

	// Wait for interrupt signal (or the shutdown endpoint) to gracefully shutdown the server
	<-quit
	slog.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if err := coreService.Close(); err != nil {
		slog.Error("core service close error", "error", err)
	}
}

func setupLogging(config *core.ServiceConfig) {
	// Validate already rejected unknown levels
	level, _ := config.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func defineServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	// Configure request logger to skip "/probe" endpoint (health check)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/probe"
		},
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogError:     true,
		LogRemoteIP:  true,
		LogRoutePath: true,
		LogRequestID: true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"route", v.RoutePath,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				slog.Error("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(requestBodyLimit))
	e.Pre(middleware.RemoveTrailingSlash())

	e.Validator = &common.GenericEchoValidator{}

	return e
}
