package replay

import (
	"context"
	"io"
	"sync/atomic"

	log "github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultQueueSize = 1024

// Replayer decodes a callout log and feeds it to a Driver. Decoding runs
// ahead of the driver; records are applied by a single goroutine.
type Replayer struct {
	driver    *Driver
	queueSize int
	logger    log.Logger

	bytesRead atomic.Uint64
	records   atomic.Uint64
}

type ReplayerOption func(*Replayer)

func WithQueueSize(size int) ReplayerOption {
	return func(r *Replayer) {
		r.queueSize = size
	}
}

func WithReplayerLogger(logger log.Logger) ReplayerOption {
	return func(r *Replayer) {
		r.logger = logger
	}
}

func NewReplayer(driver *Driver, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		driver:    driver,
		queueSize: defaultQueueSize,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "replayer").Logger()

	return r
}

// BytesRead returns the number of input bytes consumed so far. It is safe
// to call while Run is in progress.
func (r *Replayer) BytesRead() uint64 {
	return r.bytesRead.Load()
}

// Records returns the number of records applied so far. It is safe to call
// while Run is in progress.
func (r *Replayer) Records() uint64 {
	return r.records.Load()
}

// Run replays in until its end, the first error or the cancellation of ctx.
func (r *Replayer) Run(ctx context.Context, in io.Reader) error {
	g, ctx := errgroup.WithContext(ctx)
	recs := make(chan Record, r.queueSize)

	g.Go(func() error {
		defer close(recs)
		dec := NewDecoder(&countingReader{r: in, n: &r.bytesRead})
		for {
			rec, err := dec.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case recs <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		for rec := range recs {
			if err := r.driver.Apply(rec); err != nil {
				return err
			}
			r.records.Add(1)
		}
		return nil
	})

	err := g.Wait()
	r.logger.Debug().Uint64("records", r.Records()).Uint64("bytes", r.BytesRead()).Msg("replay finished")

	return err
}

type countingReader struct {
	r io.Reader
	n *atomic.Uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(uint64(n))

	return n, err
}
