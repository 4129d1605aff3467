package options

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maxgio92/privtrace/internal/settings"
	"github.com/maxgio92/privtrace/pkg/coalesce"
	"github.com/maxgio92/privtrace/pkg/memory"
	"github.com/maxgio92/privtrace/pkg/report"
	"github.com/maxgio92/privtrace/pkg/symtable"
	"github.com/maxgio92/privtrace/pkg/trace"
)

const (
	FlagTraceMem         = "trace-mem"
	FlagTraceCalls       = "trace-calls"
	FlagOutFile          = "out-file"
	FlagBoundaryFunction = "boundary-function"
	FlagPageSize         = "page-size"
	FlagEventBuffer      = "event-buffer"
	FlagFormat           = "format"
	FlagCallGraph        = "call-graph"
	FlagBinary           = "binary"
	FlagLoadBias         = "load-bias"
)

// AddTraceFlags adds the tracer flags to cmd.
func AddTraceFlags(cmd *cobra.Command) {
	cmd.Flags().Bool(FlagTraceMem, true, "Trace memory accesses to heap and static objects")
	cmd.Flags().Bool(FlagTraceCalls, true, "Trace function call histories")
	cmd.Flags().StringP(FlagOutFile, "o", settings.DefaultOutFile,
		"Report file name (%p expands to the process id, %q{VAR} to the environment variable VAR)")
	cmd.Flags().StringSlice(FlagBoundaryFunction, nil,
		"Function whose entry writes a report segment (repeatable)")
	cmd.Flags().Uint64(FlagPageSize, memory.DefaultPageSize, "Page size of the object index (power of two)")
	cmd.Flags().Int(FlagEventBuffer, coalesce.DefaultCapacity,
		"Number of memory references buffered for coalescing (at least 2)")
	cmd.Flags().String(FlagFormat, string(report.FormatText), "Report format (text, json, yaml)")
	cmd.Flags().String(FlagCallGraph, "", "Write the aggregated call graph in DOT format to this file")
	cmd.Flags().String(FlagBinary, "", "ELF executable of the traced program, for symbols and debug info")
	cmd.Flags().Uint64(FlagLoadBias, 0, "Load bias of the traced executable")
}

// NewTracer builds a tracer from the configuration. Symbols declared at
// runtime go to symbols, which is consulted after the executable symbols.
func NewTracer(v *viper.Viper, logger log.Logger, symbols *symtable.StaticSymTab) (*trace.Tracer, error) {
	format, err := report.ParseFormat(v.GetString(FlagFormat))
	if err != nil {
		return nil, err
	}

	resolver := symtable.Chain{}
	if binary := v.GetString(FlagBinary); binary != "" {
		elfTab, err := symtable.NewELFSymTab(
			symtable.WithLoadBias(v.GetUint64(FlagLoadBias)),
			symtable.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		if err = elfTab.Load(binary); err != nil {
			return nil, errors.Wrapf(err, "failed to load symbols of %s", binary)
		}
		resolver = append(resolver, elfTab)
	}
	resolver = append(resolver, symbols)

	return trace.NewTracer(
		trace.WithTraceMem(v.GetBool(FlagTraceMem)),
		trace.WithTraceCalls(v.GetBool(FlagTraceCalls)),
		trace.WithOutFile(v.GetString(FlagOutFile)),
		trace.WithBoundaryFunctions(v.GetStringSlice(FlagBoundaryFunction)...),
		trace.WithPageSize(v.GetUint64(FlagPageSize)),
		trace.WithEventBufferSize(v.GetInt(FlagEventBuffer)),
		trace.WithReportFormat(format),
		trace.WithResolver(resolver),
		trace.WithLogger(logger),
	)
}

// Finalize writes the final report and, if requested, the call graph.
func Finalize(v *viper.Viper, tracer *trace.Tracer) error {
	if err := tracer.Finalize(); err != nil {
		return errors.Wrap(err, "failed to finalize trace")
	}

	path := v.GetString(FlagCallGraph)
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create call graph file")
	}
	defer f.Close()

	return errors.Wrap(tracer.WriteCallGraph(f), "failed to write call graph")
}
