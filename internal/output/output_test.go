package output_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/privtrace/internal/output"
)

func TestProgressBar(t *testing.T) {
	require.Equal(t, strings.Repeat("█", 5)+strings.Repeat(" ", 5), output.ProgressBar(50, 10))
	require.Equal(t, strings.Repeat(" ", 10), output.ProgressBar(-3, 10))
	require.Equal(t, strings.Repeat("█", 10), output.ProgressBar(250, 10))
}

func TestPrettyReplayStatus(t *testing.T) {
	s := output.PrettyReplayStatus(-1, 1500, 12, 2048)
	require.Contains(t, s, "[streaming]")
	require.Contains(t, s, "1,500")
	require.Contains(t, s, "2.0 kB")

	s = output.PrettyReplayStatus(25, 0, 0, 0)
	require.Contains(t, s, "25.00%")
}

func TestIsTerminal(t *testing.T) {
	require.False(t, output.IsTerminal(&bytes.Buffer{}))
}
