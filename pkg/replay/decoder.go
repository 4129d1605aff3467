package replay

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const maxLineSize = 1 << 20

// Decoder reads records from a callout log. Blank lines and anything after
// a '#' are ignored.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &Decoder{scanner: scanner}
}

// Next returns the next record, or io.EOF at the end of the log.
func (d *Decoder) Next() (Record, error) {
	for d.scanner.Scan() {
		d.line++
		text := d.scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		rec, err := ParseRecord(text)
		if err != nil {
			return Record{}, errors.Wrapf(err, "line %d", d.line)
		}
		rec.Line = d.line

		return rec, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Record{}, errors.Wrapf(err, "failed to read line %d", d.line+1)
	}

	return Record{}, io.EOF
}
