package trace

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stats summarizes the work done by a tracer.
type Stats struct {
	Functions      int
	LiveObjects    int
	RetiredObjects int
	StaticObjects  int

	Allocs   uint64
	Frees    uint64
	Reallocs uint64

	BytesRead    uint64
	BytesWritten uint64
	Committed    uint64
	Merged       uint64
	Calls        uint64
	Segments     int
}

func (s Stats) String() string {
	return fmt.Sprintf("functions: %s | objects: %s live, %s retired | read: %s | written: %s | calls: %s",
		humanize.Comma(int64(s.Functions)),
		humanize.Comma(int64(s.LiveObjects)),
		humanize.Comma(int64(s.RetiredObjects)),
		humanize.Bytes(s.BytesRead),
		humanize.Bytes(s.BytesWritten),
		humanize.Comma(int64(s.Calls)),
	)
}

func (t *Tracer) Stats() Stats {
	events := t.events.Stats()

	return Stats{
		Functions:      t.regs.Len(),
		LiveObjects:    t.tracker.Index().Len(),
		RetiredObjects: t.tracker.Retired().Len(),
		StaticObjects:  t.ledger.Synthesized(),
		Allocs:         t.counters.allocs,
		Frees:          t.counters.frees,
		Reallocs:       t.counters.reallocs,
		BytesRead:      t.counters.bytesRead,
		BytesWritten:   t.counters.bytesWritten,
		Committed:      events.Committed,
		Merged:         events.Merged,
		Calls:          t.calls.Calls(),
		Segments:       t.segments,
	}
}

func (t *Tracer) logSummary() {
	s := t.Stats()
	t.logger.Info().
		Str("read", humanize.Bytes(s.BytesRead)).
		Str("written", humanize.Bytes(s.BytesWritten)).
		Str("allocs", humanize.Comma(int64(s.Allocs))).
		Str("frees", humanize.Comma(int64(s.Frees))).
		Int("functions", s.Functions).
		Int("live_objects", s.LiveObjects).
		Int("static_objects", s.StaticObjects).
		Uint64("merged", s.Merged).
		Uint64("calls", s.Calls).
		Int("segments", s.Segments).
		Msg("trace finished")
}
