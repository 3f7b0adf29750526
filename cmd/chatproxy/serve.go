package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	openaiapi "github.com/tjfontaine/polyglot-chat-proxy/internal/api/openai"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/chat"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/config"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/frontdoor"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/gateway"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/server"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/telemetry"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/tokens"
)

const (
	serviceName     = "chat-proxy"
	shutdownTimeout = 30 * time.Second
)

var serveFlags struct {
	port     int
	logLevel string
	dryRun   bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat proxy server",
	Long: `Start the chat proxy server.

Configuration is read from the config file, then CHATPROXY_* environment
variables (nested keys separated by "__", e.g. CHATPROXY_SERVER__PORT).
A .env file in the working directory is loaded first.

Examples:
  # Start with defaults on port 5001
  chatproxy serve

  # Override port and log level
  chatproxy serve --port 8080 --log-level debug

  # Validate config without starting server
  chatproxy serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", 0, "override listen port")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serveFlags.port != 0 {
		cfg.Server.Port = serveFlags.port
	}
	if serveFlags.logLevel != "" {
		cfg.Log.Level = serveFlags.logLevel
	}

	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if cfg.OpenAI.APIKey == "" {
		logger.Warn("no OpenAI API key configured; only the test model will answer")
	}

	if serveFlags.dryRun {
		logger.Info("configuration valid", slog.Int("port", cfg.Server.Port), slog.String("default_model", cfg.Chat.DefaultModel))
		return nil
	}

	tp, shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.Telemetry.Tracing, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	srv := newServer(cfg, logger, tp)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// newServer wires the gateway, chat service and HTTP handlers.
func newServer(cfg *config.Config, logger *slog.Logger, tp trace.TracerProvider) *server.Server {
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tp)),
	}
	client := openaiapi.NewClient(cfg.OpenAI.APIKey,
		openaiapi.WithBaseURL(cfg.OpenAI.BaseURL),
		openaiapi.WithHTTPClient(httpClient),
	)

	gw := gateway.New(client,
		gateway.WithModelAliases(cfg.Gateway.ModelAliases),
		gateway.WithMaxTokens(cfg.Gateway.MaxTokens),
		gateway.WithLogger(logger),
		gateway.WithTracerProvider(tp),
	)

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Metrics {
		metrics = telemetry.NewMetrics()
	}

	svc := chat.NewService(gw,
		chat.WithTestModel(cfg.Chat.TestModel),
		chat.WithTokenCounter(tokens.Fallback(tokens.NewOpenAICounter(), tokens.NewEstimator()), metrics),
		chat.WithLogger(logger),
	)

	srv := server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
	}, logger)

	handler := frontdoor.NewHandler(svc, frontdoor.Defaults{
		Model:        cfg.Chat.DefaultModel,
		SystemPrompt: cfg.Chat.DefaultSystemPrompt,
		Temperature:  cfg.Chat.DefaultTemperature,
	}, logger, metrics)
	handler.RegisterRoutes(srv.Router)

	if metrics != nil {
		srv.Router.Handle("/metrics", metrics.Handler())
	}

	return srv
}
