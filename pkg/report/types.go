package report

import (
	"strings"

	"github.com/pkg/errors"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var Formats = []Format{FormatText, FormatJSON, FormatYAML}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownFormat, "%q", s)
}

// Document is a snapshot of the tracer state.
type Document struct {
	Functions []FunctionRecord `json:"functions" yaml:"functions"`
	Objects   []ObjectRecord   `json:"objects,omitempty" yaml:"objects,omitempty"`
}

type FunctionRecord struct {
	ID        uint64          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Location  string          `json:"location,omitempty" yaml:"location,omitempty"`
	Iteration uint64          `json:"iteration" yaml:"iteration"`
	Histories []HistoryRecord `json:"histories,omitempty" yaml:"histories,omitempty"`
}

type HistoryRecord struct {
	Iteration uint64       `json:"iteration" yaml:"iteration"`
	Calls     []CallRecord `json:"calls,omitempty" yaml:"calls,omitempty"`
}

type CallRecord struct {
	Callee uint64 `json:"callee" yaml:"callee"`
	Count  uint64 `json:"count" yaml:"count"`
}

type ObjectRecord struct {
	Base     uint64         `json:"base" yaml:"base"`
	Size     uint64         `json:"size" yaml:"size"`
	Retired  bool           `json:"retired" yaml:"retired"`
	Accesses []AccessRecord `json:"accesses" yaml:"accesses"`
}

type AccessRecord struct {
	Func         uint64 `json:"func" yaml:"func"`
	Iteration    uint64 `json:"iteration" yaml:"iteration"`
	BytesRead    uint64 `json:"bytes_read" yaml:"bytes_read"`
	BytesWritten uint64 `json:"bytes_written" yaml:"bytes_written"`
}
