// Command debtsummary operates the debt summary cache: it runs the batch
// aggregator, serves metrics, and answers one-off summary queries.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-debt-summary/internal/config"
	"github.com/goliatone/go-debt-summary/internal/logging"
	"github.com/goliatone/go-debt-summary/pkg/di"
)

const serviceName = "debtsummary"

// containerFactory builds the wired subsystem for one command invocation.
type containerFactory func(logLevel, logFormat string) (*di.Container, error)

func main() {
	if err := newRootCmd(envContainer).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// envContainer loads DEBT_SUMMARY_* configuration; non-empty flag values
// override the logging settings.
func envContainer(logLevel, logFormat string) (*di.Container, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	log, err := logging.New(serviceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return di.NewContainer(cfg, di.WithLogger(log))
}

func newRootCmd(build containerFactory) *cobra.Command {
	var logLevel, logFormat string

	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Debt summary aggregation and cache operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides DEBT_SUMMARY_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format json|console (overrides DEBT_SUMMARY_LOG_FORMAT)")

	open := func() (*di.Container, error) {
		return build(logLevel, logFormat)
	}

	rootCmd.AddCommand(
		newServeCmd(open),
		newBatchCmd(open),
		newSummaryCmd(open),
		newDebtsCmd(open),
		newInvalidateCmd(open),
		newSchemaCmd(open),
	)
	return rootCmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseUserID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q: %w", arg, err)
	}
	return id, nil
}
