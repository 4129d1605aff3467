package serve

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxgio92/privtrace/internal/settings"
	"github.com/maxgio92/privtrace/pkg/cmd/options"
	"github.com/maxgio92/privtrace/pkg/ingest"
	"github.com/maxgio92/privtrace/pkg/replay"
	"github.com/maxgio92/privtrace/pkg/symtable"
)

const (
	CmdName = "serve"

	flagSocketPath = "socket-path"
)

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   CmdName,
		Short: "Trace the callout streams received on a Unix socket",
		Long: fmt.Sprintf(`
%s %s listens on a Unix socket and traces the callout logs streamed by
instrumentation hosts, one connection at a time, into a single trace.
The final report is written on termination.
`, settings.CmdName, CmdName),
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}

	cmd.Flags().StringVarP(&o.socketPath, flagSocketPath, "s", settings.SocketPath, fmt.Sprintf("Path to the %s socket file", settings.CmdName))
	options.AddTraceFlags(cmd)

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	if err := o.Setup(cmd, CmdName); err != nil {
		return err
	}

	symbols := symtable.NewStaticSymTab()
	tracer, err := options.NewTracer(o.Config, o.Logger, symbols)
	if err != nil {
		return errors.Wrap(err, "failed to create tracer")
	}

	handler := func(ctx context.Context, r io.Reader) error {
		driver := replay.NewDriver(tracer, symbols, replay.WithLogger(o.Logger))
		return replay.NewReplayer(driver, replay.WithReplayerLogger(o.Logger)).Run(ctx, r)
	}

	socketPath := o.Config.GetString(flagSocketPath)
	server := ingest.NewServer(socketPath, handler, o.Logger)
	if err = server.Listen(o.Ctx); err != nil {
		return err
	}
	server.NotifyReadiness()
	o.Logger.Info().Str("socket", socketPath).Msg("waiting for callout streams")

	<-o.Ctx.Done()
	o.Logger.Info().Msg("terminating...")
	if err = server.Shutdown(); err != nil {
		o.Logger.Warn().Err(err).Msg("failed to shut down the server")
	}
	<-server.Done()

	return options.Finalize(o.Config, tracer)
}
