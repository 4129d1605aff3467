package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/privtrace/pkg/report"
)

const calloutLog = `func 0x1000 0x1100 main
func 0x1100 0x1200 work
func 0x1200 0x1300 checkpoint
alloc 0x10000 16
unit
mark 0x1000 4
store 0x10000 8
end 0x1100 call
unit
mark 0x1100 4
load 0x10000 8
end 0x1200 call
`

func newTestCommand(t *testing.T) *cobra.Command {
	t.Helper()
	opts := NewOptions(
		WithContext(context.Background()),
		WithLogger(log.New(log.NewTestWriter(t))),
	)
	return NewCommand(opts)
}

func TestNewCommand(t *testing.T) {
	tests := []struct {
		name     string
		options  *Options
		validate func(*testing.T, *cobra.Command)
	}{
		{
			name: "default command creation",
			options: NewOptions(
				WithContext(context.Background()),
				WithLogger(log.New(log.ConsoleWriter{Out: os.Stderr})),
			),
			validate: func(t *testing.T, cmd *cobra.Command) {
				require.Equal(t, "privtrace", cmd.Name())
				require.Contains(t, cmd.Short, "memory access and call history tracer")
				require.True(t, cmd.HasSubCommands())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewCommand(tt.options)
			require.NotNil(t, cmd)

			if tt.validate != nil {
				tt.validate(t, cmd)
			}
		})
	}
}

func TestCommandFlags(t *testing.T) {
	cmd := newTestCommand(t)

	flag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	require.Equal(t, "string", flag.Value.Type())
	require.Equal(t, "info", flag.DefValue)
	require.Contains(t, flag.Usage, "log level")

	flag = cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	require.Equal(t, "", flag.DefValue)
}

func TestCommandSubcommands(t *testing.T) {
	cmd := newTestCommand(t)

	actual := make([]string, 0)
	for _, sub := range cmd.Commands() {
		actual = append(actual, sub.Name())
	}

	for _, expected := range []string{"replay", "serve", "wait"} {
		require.Contains(t, actual, expected)
	}
}

func TestCommandHelp(t *testing.T) {
	cmd := newTestCommand(t)

	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	help := output.String()
	require.Contains(t, help, "privtrace")
	require.Contains(t, help, "Available Commands:")
	require.Contains(t, help, "replay")
	require.Contains(t, help, "serve")
	require.Contains(t, help, "wait")
}

func TestCommandInvalidFlag(t *testing.T) {
	cmd := newTestCommand(t)

	var output bytes.Buffer
	cmd.SetErr(&output)
	cmd.SetArgs([]string{"--invalid-flag"})

	require.Error(t, cmd.Execute())
	require.Contains(t, output.String(), "unknown flag")
}

func writeLog(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "callouts.log")
	require.NoError(t, os.WriteFile(path, []byte(calloutLog), 0o644))

	return path
}

func TestCommandLogLevelFlag(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		wantErr  bool
	}{
		{"trace level", "trace", false},
		{"debug level", "debug", false},
		{"info level", "info", false},
		{"warn level", "warn", false},
		{"error level", "error", false},
		{"invalid level", "invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cmd := newTestCommand(t)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{
				"--log-level", tt.logLevel,
				"replay",
				"--events", writeLog(t, dir),
				"--out-file", filepath.Join(dir, "out"),
			})

			err := cmd.Execute()
			if tt.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "trace.%q{PRIVTRACE_TEST_SUFFIX}")
	t.Setenv("PRIVTRACE_TEST_SUFFIX", "json")

	cmd := newTestCommand(t)
	cmd.SetArgs([]string{
		"replay",
		"--events", writeLog(t, dir),
		"--out-file", out,
		"--format", "json",
		"--boundary-function", "checkpoint",
		"--call-graph", filepath.Join(dir, "calls.dot"),
	})
	require.NoError(t, cmd.Execute())

	b, err := os.ReadFile(filepath.Join(dir, "trace.json"))
	require.NoError(t, err)
	var doc report.Document
	require.NoError(t, json.Unmarshal(b, &doc))
	require.Len(t, doc.Functions, 4)
	require.Equal(t, "work", doc.Functions[2].Name)
	require.Equal(t, uint64(1), doc.Functions[2].Iteration)

	// The object was shared by main and work when checkpoint was entered.
	b, err = os.ReadFile(filepath.Join(dir, "trace.json.1"))
	require.NoError(t, err)
	doc = report.Document{}
	require.NoError(t, json.Unmarshal(b, &doc))
	require.Len(t, doc.Objects, 1)
	require.Equal(t, uint64(0x10000), doc.Objects[0].Base)

	b, err = os.ReadFile(filepath.Join(dir, "calls.dot"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(strings.TrimSpace(string(b)), "strict digraph") ||
		strings.HasPrefix(strings.TrimSpace(string(b)), "digraph"))
}

func TestReplayCommand_EnvConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PRIVTRACE_FORMAT", "yaml")
	t.Setenv("PRIVTRACE_OUT_FILE", filepath.Join(dir, "env.out"))

	cmd := newTestCommand(t)
	cmd.SetArgs([]string{"replay", "--events", writeLog(t, dir)})
	require.NoError(t, cmd.Execute())

	b, err := os.ReadFile(filepath.Join(dir, "env.out"))
	require.NoError(t, err)
	require.Contains(t, string(b), "functions:")
}

func TestReplayCommand_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "privtrace.yaml")
	require.NoError(t, os.WriteFile(config, []byte(
		"trace-calls: false\nout-file: "+filepath.Join(dir, "cfg.out")+"\n"), 0o644))

	cmd := newTestCommand(t)
	cmd.SetArgs([]string{"--config", config, "replay", "--events", writeLog(t, dir)})
	require.NoError(t, cmd.Execute())

	b, err := os.ReadFile(filepath.Join(dir, "cfg.out"))
	require.NoError(t, err)
	require.NotContains(t, string(b), "ITERATION:")
	require.Contains(t, string(b), "FUNC: 2 work ()")
}

func TestReplayCommand_BadFormat(t *testing.T) {
	dir := t.TempDir()
	cmd := newTestCommand(t)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"replay", "--events", writeLog(t, dir), "--format", "xml"})

	require.ErrorIs(t, cmd.Execute(), report.ErrUnknownFormat)
}
