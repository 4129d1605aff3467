package utils

import (
	"os"
	"strconv"
	"strings"
)

// ExpandFileName expands %p to pid and %q{VAR} to the value of the
// environment variable VAR. %% yields a single %. Other sequences, and
// %q without a closed brace, are kept verbatim.
func ExpandFileName(pattern string, pid int) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' || i+1 == len(pattern) {
			b.WriteByte(c)
			continue
		}
		switch pattern[i+1] {
		case 'p':
			b.WriteString(strconv.Itoa(pid))
			i++
		case '%':
			b.WriteByte('%')
			i++
		case 'q':
			end := strings.IndexByte(pattern[i:], '}')
			if i+2 >= len(pattern) || pattern[i+2] != '{' || end < 0 {
				b.WriteByte(c)
				continue
			}
			b.WriteString(os.Getenv(pattern[i+3 : i+end]))
			i += end
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
