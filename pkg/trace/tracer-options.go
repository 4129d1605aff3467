package trace

import (
	"io"

	log "github.com/rs/zerolog"

	"github.com/maxgio92/privtrace/internal/settings"
	"github.com/maxgio92/privtrace/pkg/coalesce"
	"github.com/maxgio92/privtrace/pkg/memory"
	"github.com/maxgio92/privtrace/pkg/report"
	"github.com/maxgio92/privtrace/pkg/symtable"
)

type TracerOptions struct {
	traceMem   bool
	traceCalls bool

	outFile       string
	output        io.Writer
	format        report.Format
	boundaryFuncs []string

	pageSize     uint64
	eventBufSize int

	resolver symtable.Resolver
	logger   log.Logger
}

type TracerOpt func(*TracerOptions)

func defaultTracerOptions() *TracerOptions {
	return &TracerOptions{
		traceMem:     true,
		traceCalls:   true,
		outFile:      settings.DefaultOutFile,
		format:       report.FormatText,
		pageSize:     memory.DefaultPageSize,
		eventBufSize: coalesce.DefaultCapacity,
		logger:       log.Nop(),
	}
}

func WithTraceMem(traceMem bool) TracerOpt {
	return func(o *TracerOptions) {
		o.traceMem = traceMem
	}
}

func WithTraceCalls(traceCalls bool) TracerOpt {
	return func(o *TracerOptions) {
		o.traceCalls = traceCalls
	}
}

// WithOutFile sets the report file name pattern. %p expands to the process
// id and %q{VAR} to the value of the environment variable VAR.
func WithOutFile(pattern string) TracerOpt {
	return func(o *TracerOptions) {
		o.outFile = pattern
	}
}

// WithOutput makes the tracer write every report to w instead of a file.
func WithOutput(w io.Writer) TracerOpt {
	return func(o *TracerOptions) {
		o.output = w
	}
}

func WithReportFormat(format report.Format) TracerOpt {
	return func(o *TracerOptions) {
		o.format = format
	}
}

// WithBoundaryFunctions sets the functions whose entry flushes a report
// segment.
func WithBoundaryFunctions(names ...string) TracerOpt {
	return func(o *TracerOptions) {
		o.boundaryFuncs = names
	}
}

func WithPageSize(pageSize uint64) TracerOpt {
	return func(o *TracerOptions) {
		o.pageSize = pageSize
	}
}

func WithEventBufferSize(size int) TracerOpt {
	return func(o *TracerOptions) {
		o.eventBufSize = size
	}
}

func WithResolver(resolver symtable.Resolver) TracerOpt {
	return func(o *TracerOptions) {
		o.resolver = resolver
	}
}

func WithLogger(logger log.Logger) TracerOpt {
	return func(o *TracerOptions) {
		o.logger = logger
	}
}
