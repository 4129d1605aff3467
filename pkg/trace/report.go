package trace

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/maxgio92/privtrace/internal/utils"
)

// Report writes the current state to w and releases the retired objects
// already reported.
func (t *Tracer) Report(w io.Writer) error {
	return t.emitter.Emit(w)
}

// WriteCallGraph writes the aggregated call graph to w in DOT format.
func (t *Tracer) WriteCallGraph(w io.Writer) error {
	return t.calls.WriteDOT(w)
}

// Finalize commits the pending events and writes the final report. It
// must be called once, at the end of the traced execution. An output file
// that cannot be created is logged and does not fail the run.
func (t *Tracer) Finalize() error {
	if t.finalized {
		return ErrFinalized
	}
	t.finalized = true
	t.events.Flush()

	err := t.writeReport(utils.ExpandFileName(t.outFile, os.Getpid()))
	t.logSummary()
	if errors.Is(err, ErrOutputUnavailable) {
		t.logger.Error().Err(err).Msg("report will be missing")
		return nil
	}

	return err
}

func (t *Tracer) flushSegment() {
	t.events.Flush()
	t.segments++
	name := fmt.Sprintf("%s.%d", utils.ExpandFileName(t.outFile, os.Getpid()), t.segments)
	if err := t.writeReport(name); err != nil {
		t.logger.Error().Err(err).Int("segment", t.segments).Msg("failed to write report segment")
		return
	}
	t.logger.Debug().Int("segment", t.segments).Msg("report segment written")
}

func (t *Tracer) writeReport(name string) error {
	if t.output != nil {
		return errors.Wrap(t.Report(t.output), "failed to write report")
	}

	f, err := os.Create(name)
	if err != nil {
		return errors.Wrapf(ErrOutputUnavailable, "%s: %v", name, err)
	}
	defer f.Close()

	if err = t.Report(f); err != nil {
		return errors.Wrapf(err, "failed to write report to %s", name)
	}
	t.logger.Info().Str("path", name).Msg("report written")

	return nil
}
