package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"planrelay/pkg/config"
	"planrelay/pkg/llm"
	"planrelay/pkg/llm/middleware/logging"
	"planrelay/pkg/llm/middleware/metrics"
	"planrelay/pkg/llmimpl/google"
	"planrelay/pkg/logx"
	"planrelay/pkg/plan"
	"planrelay/pkg/version"
	"planrelay/pkg/webapi"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /generate-plan (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logx.NewLogger("planrelay")

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	prompt, err := loadPrompt(cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		version.NewCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := buildClient(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}

	generator, err := plan.NewGenerator(client, prompt, nil)
	if err != nil {
		return logx.Wrap(err, "creating plan generator")
	}

	logger.Info("%s starting (model=%s, origins=%s, verbosity=%s)",
		version.Info(), modelName(client), cfg.AllowedOrigins, cfg.LogVerbosity)

	if err := webapi.NewServer(generator, cfg, registry).Run(ctx); err != nil {
		return logx.Wrap(err, "serving")
	}
	logger.Info("Server stopped")
	return nil
}

// buildClient creates the upstream client once for the whole process. Without a
// credential it returns nil and logs the startup warning; the server still starts.
func buildClient(ctx context.Context, cfg *config.Config, registry prometheus.Registerer, logger *logx.Logger) (llm.LLMClient, error) {
	if !cfg.HasAPIKey() {
		logger.Error(webapi.MsgMissingAPIKey)
		return nil, nil
	}

	base, err := google.NewGeminiClient(ctx, google.Options{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.UpstreamBaseURL,
	})
	if err != nil {
		return nil, logx.Wrap(err, "creating Gemini client")
	}

	// Metrics outermost so logged failures are also counted.
	return llm.Chain(base,
		metrics.Middleware(metrics.NewPrometheusRecorder(registry), nil),
		logging.Middleware(logx.NewLogger("gemini")),
	), nil
}

func modelName(client llm.LLMClient) string {
	if client == nil {
		return "none"
	}
	return client.GetModelName()
}
