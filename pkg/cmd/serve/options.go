package serve

import (
	"context"

	log "github.com/rs/zerolog"

	"github.com/maxgio92/privtrace/pkg/cmd/options"
)

type Options struct {
	socketPath string

	*options.CommonOptions
}

type Option func(o *Options)

func NewOptions(opts ...Option) *Options {
	o := new(Options)
	o.CommonOptions = &options.CommonOptions{
		Ctx:    context.Background(),
		Logger: log.Nop(),
		Config: options.NewConfig(),
	}

	for _, f := range opts {
		f(o)
	}

	return o
}

func WithCommonOptions(common *options.CommonOptions) Option {
	return func(o *Options) {
		o.CommonOptions = common
	}
}

func WithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Ctx = ctx
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}
