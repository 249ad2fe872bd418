// Package cli wires configuration, logging and the front ends into the
// swagtest command.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swagtest/internal/backend"
	"swagtest/internal/config"
	"swagtest/internal/console"
	"swagtest/internal/logging"
	"swagtest/internal/service"
)

// annotation that keeps a command's logs off stdout
const fileLogOnly = "swagtest/file-log-only"

var rootExamples = `
  Browser console against a running collaborator service:
	swagtest backend --base-url http://localhost:8000 &
	swagtest serve --service-url http://127.0.0.1:5000

  Terminal console, reloading when the file changes:
	swagtest tui ./swagger.json --embedded --watch

  Headless run, saving the CSV:
	swagtest run https://petstore.swagger.io/v2/swagger.json --embedded --out ./reports
`

// app is what every command shares once the root has parsed its flags.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	configPath string
}

func Root(ctx context.Context) *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "swagtest",
		Short:         "Generate, execute and export API tests from Swagger 2.0 documents",
		Example:       rootExamples,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to the YAML config file (default "+config.DefaultFile+" if present)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	root.PersistentFlags().String("log-file", "", "Append logs to this file")

	root.AddCommand(
		serveCmd(ctx, a),
		tuiCmd(ctx, a),
		runCmd(ctx, a),
		backendCmd(ctx, a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	toConsole := cmd.Annotations[fileLogOnly] == ""
	logger, err := logging.New(cfg.Log.Level, cfg.Log.File, toConsole)
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug("initialized with configuration", zap.String("command", cmd.Name()), zap.Any("config", cfg))
	return nil
}

// service is the collaborator the console talks to: the one at the
// configured URL, or an in-process one when embedded.
func (a *app) service() console.Service {
	if a.cfg.Console.Embedded {
		return backend.NewCore(a.backendOptions(), a.logger)
	}
	return service.New(a.cfg.Console.ServiceURL, a.cfg.Console.Timeout, a.logger)
}

func (a *app) backendOptions() backend.Options {
	return backend.Options{
		BaseURL:     a.cfg.Backend.BaseURL,
		Concurrency: a.cfg.Backend.Concurrency,
		Timeout:     a.cfg.Backend.Timeout,
	}
}

// location is the positional argument, else the configured one.
func (a *app) location(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if a.cfg.Console.Location != "" {
		return a.cfg.Console.Location, nil
	}
	return "", fmt.Errorf("a swagger location is required")
}
