// Package cmd implements the pytask CLI
package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/interp"

	"github.com/ngld/pytask/pkg/buildsys"
	"github.com/ngld/pytask/pkg/config"
	"github.com/ngld/pytask/pkg/pytasks"
)

var rootCmd = &cobra.Command{
	Use:   "pytask [flags] [task...] [KEY=VALUE...]",
	Short: "Task runner for Python packages",
	Long: `This command sets up virtual environments, builds, installs and cleans a Python package.
Without arguments it runs the "all" task. Arguments of the form KEY=VALUE are passed to the
project's pytasks.star script as options.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}

		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		taskArgs, options := splitArgs(args)
		if len(taskArgs) == 0 {
			taskArgs = []string{"all"}
		}

		ctx, logger, project, err := setup(cmd, options)
		if err != nil {
			return err
		}

		err = project.Run(ctx, taskArgs, buildsys.RunOptions{
			DryRun: dryRun,
			Force:  force,
		})
		if err != nil {
			if _, ok := interp.IsExitStatus(err); !ok {
				logger.Error().Err(err).Msgf("Failed to run %s", strings.Join(taskArgs, ", "))
			}
			return err
		}

		return nil
	},
}

// splitArgs separates task names from KEY=VALUE options
func splitArgs(args []string) ([]string, map[string]string) {
	taskArgs := make([]string, 0)
	options := make(map[string]string)

	for _, part := range args {
		pos := strings.Index(part, "=")
		if pos > 0 {
			options[part[:pos]] = part[pos+1:]
		} else {
			taskArgs = append(taskArgs, part)
		}
	}

	return taskArgs, options
}

// setup loads the config and the task graph for the selected project
func setup(cmd *cobra.Command, options map[string]string) (context.Context, *zerolog.Logger, *pytasks.Project, error) {
	root, err := projectRoot(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
		if err = cfg.Validate(); err != nil {
			return nil, nil, nil, err
		}
	}

	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}

	var logger zerolog.Logger
	if cfg.Log.JSON {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(NewConsoleWriter(os.Stderr, root))
	}
	logger = logger.Level(cfg.LogLevel())

	ctx := buildsys.WithLogger(cmd.Context(), &logger)
	logger.Debug().Str("path", root).Msgf("Using project %s", root)

	project, err := pytasks.Load(ctx, cfg, root, options)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load tasks")
		return nil, nil, nil, err
	}

	return ctx, &logger, project, nil
}

func init() {
	rootCmd.PersistentFlags().StringP("dir", "C", "", "project directory (default: the nearest parent containing pytask.toml or setup.py)")
	rootCmd.PersistentFlags().String("log-level", "info", "minimum level of the displayed messages")
	rootCmd.PersistentFlags().Bool("log-json", false, "print log messages as JSON")

	rootCmd.Flags().BoolP("dry-run", "n", false, "dry run; only print the commands, don't execute anything")
	rootCmd.Flags().BoolP("force", "f", false, "force build; always execute the passed steps even if they don't have to run")
}

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	if status, ok := interp.IsExitStatus(err); ok {
		return int(status)
	}

	if eris.Is(err, context.Canceled) {
		return 130
	}

	return 1
}

// Execute runs the CLI and exits with the status of the failed command (if any)
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	code := exitCode(err)
	if code == 1 {
		colorstring.Fprintf(os.Stderr, "[red]Error:[reset] %s\n", err)
	}

	if code != 0 {
		os.Exit(code)
	}
}
