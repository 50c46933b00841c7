package cmd

import (
	"context"
	"fmt"
	"strings"

	"betboard/config"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the collaborators shared by all commands
type RootOptions struct {
	LogLevel  string
	LogFormat string
	Output    string // "text" | "json"

	loadConfig func() *config.Config
	newApp     func(ctx context.Context, cfg *config.Config) (*App, error)
}

// ValidOutputs defines the allowed output formats
var ValidOutputs = []string{"text", "json"}

// NewRootCommand creates the root command of the betboard CLI
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{
		loadConfig: config.Get,
		newApp:     NewApp,
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "betboard",
		Short:         "Betting events backend",
		Long:          "Create betting events, admit stakes, settle outcomes and reconcile bank deposits.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidOutput(opts.Output) {
				return fmt.Errorf("invalid output %q: must be one of %v", opts.Output, ValidOutputs)
			}

			cfg := opts.loadConfig()
			level, format := cfg.LogLevel, cfg.LogFormat
			if opts.LogLevel != "" {
				level = opts.LogLevel
			}
			if opts.LogFormat != "" {
				format = opts.LogFormat
			}
			return setupLogging(level, format)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format json|text (overrides LOG_FORMAT)")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "text", "output format (text|json)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newEventCommand(opts))
	cmd.AddCommand(newStakeCommand(opts))
	cmd.AddCommand(newDepositsCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))

	return cmd
}

// withApp builds the application for one command invocation and closes it afterwards
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(app *App) error) error {
	app, err := o.newApp(cmd.Context(), o.loadConfig())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func (o *RootOptions) printer(cmd *cobra.Command) *printer {
	return &printer{format: o.Output, w: cmd.OutOrStdout()}
}

func isValidOutput(format string) bool {
	for _, f := range ValidOutputs {
		if f == format {
			return true
		}
	}
	return false
}

// setupLogging configures the global logrus logger
func setupLogging(level, format string) error {
	parsed, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(parsed)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q: must be json or text", format)
	}
	return nil
}
