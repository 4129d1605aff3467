package replay

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxgio92/privtrace/internal/output"
	"github.com/maxgio92/privtrace/internal/settings"
	"github.com/maxgio92/privtrace/pkg/cmd/options"
	"github.com/maxgio92/privtrace/pkg/replay"
	"github.com/maxgio92/privtrace/pkg/symtable"
)

const (
	CmdName = "replay"

	flagEvents = "events"
	flagStatus = "status"
	stdinName  = "-"
)

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   CmdName,
		Short: "Replay a callout log and write the trace report",
		Long: fmt.Sprintf(`
%s %s feeds a callout log recorded by an instrumentation host to the tracer,
then writes the final report.
`, settings.CmdName, CmdName),
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}

	cmd.Flags().StringVarP(&o.events, flagEvents, "e", stdinName, "Callout log to replay (- for standard input)")
	cmd.Flags().BoolVar(&o.status, flagStatus, false, "Periodically print the replay progress")
	options.AddTraceFlags(cmd)

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	if err := o.Setup(cmd, CmdName); err != nil {
		return err
	}

	in, size, err := o.openEvents()
	if err != nil {
		return err
	}
	defer in.Close()

	symbols := symtable.NewStaticSymTab()
	tracer, err := options.NewTracer(o.Config, o.Logger, symbols)
	if err != nil {
		return errors.Wrap(err, "failed to create tracer")
	}

	replayer := replay.NewReplayer(
		replay.NewDriver(tracer, symbols, replay.WithLogger(o.Logger)),
		replay.WithReplayerLogger(o.Logger),
	)

	ctx, cancel := context.WithCancel(o.Ctx)
	defer cancel()
	if o.Config.GetBool(flagStatus) && output.IsTerminal(os.Stderr) {
		go o.printStatusBar(ctx, replayer, size)
	}

	start := time.Now()
	runErr := replayer.Run(ctx, in)
	cancel()
	o.Logger.Info().
		Uint64("records", replayer.Records()).
		Dur("elapsed", time.Since(start)).
		Msg("replay completed")

	// A partial trace is still reported.
	if err = options.Finalize(o.Config, tracer); err != nil {
		return err
	}

	return errors.Wrap(runErr, "failed to replay callout log")
}

// openEvents opens the callout log. The size is negative when unknown.
func (o *Options) openEvents() (io.ReadCloser, int64, error) {
	name := o.Config.GetString(flagEvents)
	if name == stdinName || name == "" {
		return io.NopCloser(os.Stdin), -1, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to open callout log")
	}
	fi, err := f.Stat()
	if err != nil || !fi.Mode().IsRegular() {
		return f, -1, nil
	}

	return f, fi.Size(), nil
}

func (o *Options) printStatusBar(ctx context.Context, r *replay.Replayer, size int64) {
	var last uint64
	output.StatusBar(ctx,
		1*time.Second, // bar refresh interval.
		func() {
			progress := -1.0
			if size > 0 {
				progress = float64(r.BytesRead()) / float64(size) * 100
			}
			records := r.Records()
			output.PrintRight(os.Stderr, output.PrettyReplayStatus(progress, records-last, records, r.BytesRead()))
			last = records
		},
	)
}
