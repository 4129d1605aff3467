package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/privtrace/internal/utils"
)

func TestExpandFileName(t *testing.T) {
	t.Setenv("PRIVTRACE_TEST_RUN", "run7")

	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{name: "plain", pattern: "privtrace.out", want: "privtrace.out"},
		{name: "pid", pattern: "privtrace.out.%p", want: "privtrace.out.4242"},
		{name: "env", pattern: "out.%q{PRIVTRACE_TEST_RUN}.%p", want: "out.run7.4242"},
		{name: "unset env", pattern: "out.%q{PRIVTRACE_TEST_UNSET}", want: "out."},
		{name: "escaped percent", pattern: "100%%", want: "100%"},
		{name: "unknown sequence", pattern: "a%zb", want: "a%zb"},
		{name: "unclosed env", pattern: "a%q{FOO", want: "a%q{FOO"},
		{name: "trailing percent", pattern: "a%", want: "a%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, utils.ExpandFileName(tt.pattern, 4242))
		})
	}
}
