package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"planrelay/pkg/config"
	"planrelay/pkg/logx"
	"planrelay/pkg/plan"
)

// options are the flags shared by all subcommands.
type options struct {
	configPath string
}

// newRootCmd creates the top-level "planrelay" command. Without a subcommand it serves.
func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "planrelay",
		Short:         "Lesson-plan relay for the Gemini API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		fmt.Sprintf("path to YAML config file (default $%s)", config.EnvConfigPath))

	root.AddCommand(
		newServeCmd(opts),
		newRenderCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves the config path, loads it and applies the log level.
// DEBUG=1 in the environment keeps debug output regardless of log_verbosity.
func loadConfig(opts *options) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, logx.Wrap(err, "loading config")
	}
	if os.Getenv("DEBUG") == "" {
		logx.SetLevel(cfg.LogVerbosity.Level())
	}
	return cfg, nil
}

// loadPrompt parses the configured prompt template, or the built-in one.
func loadPrompt(cfg *config.Config) (*plan.PromptTemplate, error) {
	text, err := cfg.LoadPromptTemplate()
	if err != nil {
		return nil, logx.Wrap(err, "loading prompt template")
	}
	prompt, err := plan.NewPromptTemplate(text)
	if err != nil {
		return nil, logx.Errorf("invalid prompt template: %w", err)
	}
	return prompt, nil
}
