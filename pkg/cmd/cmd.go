package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/privtrace/internal/settings"
	"github.com/maxgio92/privtrace/pkg/cmd/options"
	"github.com/maxgio92/privtrace/pkg/cmd/replay"
	"github.com/maxgio92/privtrace/pkg/cmd/serve"
	"github.com/maxgio92/privtrace/pkg/cmd/wait"
)

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   settings.CmdName,
		Short: fmt.Sprintf("%s is a memory access and call history tracer", settings.CmdName),
		Long: fmt.Sprintf(`
%s attributes the bytes each function reads and writes to heap and static objects,
per invocation of the function, and records the calls made by every invocation.
It consumes the callouts of a dynamic binary instrumentation host, either from a log
or streamed over a Unix socket.
`, settings.CmdName),
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	cmd.PersistentFlags().String(options.FlagLogLevel, options.LogLevelInfo, "Sets the log level (trace, debug, info, warn, error, fatal, panic)")
	cmd.PersistentFlags().String(options.FlagConfig, "", fmt.Sprintf("Config file (e.g. %s)", settings.ConfigFile))

	cmd.AddCommand(replay.NewCommand(replay.NewOptions(
		replay.WithCommonOptions(o.CommonOptions),
	)))
	cmd.AddCommand(serve.NewCommand(serve.NewOptions(
		serve.WithCommonOptions(o.CommonOptions),
	)))
	cmd.AddCommand(wait.NewCommand(wait.NewOptions(
		wait.WithCommonOptions(o.CommonOptions),
	)))

	return cmd
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(
		log.ConsoleWriter{Out: os.Stderr},
	).With().Timestamp().Logger()

	opts := NewOptions(
		WithContext(ctx),
		WithLogger(logger),
	)

	if err := NewCommand(opts).Execute(); err != nil {
		cancel()
		os.Exit(1)
	}
}
