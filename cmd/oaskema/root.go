package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/reoring/oaskema/config"
	"github.com/reoring/oaskema/i18n"
	"github.com/reoring/oaskema/internal/logging"
)

// errInvalid marks a payload that failed validation. The failure has already
// been printed, so main only sets the exit status.
var errInvalid = errors.New("payload is invalid")

// app carries state shared by the subcommands of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger

	logLevel    string
	logLevelSet bool
	configPath  string
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, log: logging.NewNop()}
	root := &cobra.Command{
		Use:           "oaskema",
		Short:         "Validate API payloads against OpenAPI documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(a.logLevel)
			if err != nil {
				return err
			}
			a.log = logging.NewWriter(a.stderr, level)
			a.logLevelSet = cmd.Flags().Changed("log-level")
			return nil
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")

	root.AddCommand(newValidateCmd(a), newInspectCmd(a), newServeCmd(a))
	return root
}

// loadConfig returns the config file contents, or defaults when no file was
// given. A non-empty spec flag overrides the file's spec.
func (a *app) loadConfig(spec string) (config.Config, error) {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		if cfg, err = config.Load(a.configPath); err != nil {
			return config.Config{}, err
		}
		if !a.logLevelSet {
			level, err := logging.ParseLevel(cfg.Log.Level)
			if err != nil {
				return config.Config{}, fmt.Errorf("config: %w", err)
			}
			a.log = logging.NewWriter(a.stderr, level)
		}
	}
	i18n.SetLanguage(cfg.Language)
	if spec != "" {
		cfg.Spec = spec
	}
	if cfg.Spec == "" {
		return config.Config{}, errors.New("no OpenAPI document: pass --spec or set spec in --config")
	}
	return cfg, nil
}
