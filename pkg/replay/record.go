package replay

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Op is the kind of a callout log record.
type Op string

const (
	OpFunc         Op = "func"
	OpGlobal       Op = "global"
	OpData         Op = "data"
	OpAlloc        Op = "alloc"
	OpFree         Op = "free"
	OpRealloc      Op = "realloc"
	OpUnit         Op = "unit"
	OpMark         Op = "mark"
	OpLoad         Op = "load"
	OpStore        Op = "store"
	OpModify       Op = "modify"
	OpExit         Op = "exit"
	OpEnd          Op = "end"
	OpEndIndirect  Op = "endi"
	OpCall         Op = "call"
	OpIndirectCall Op = "icall"
)

// arity is the number of leading numeric and the maximum number of
// trailing string fields of each record.
var arity = map[Op]struct{ nums, strs int }{
	OpFunc:         {2, 3},
	OpGlobal:       {2, 1},
	OpData:         {2, 0},
	OpAlloc:        {2, 0},
	OpFree:         {1, 0},
	OpRealloc:      {3, 0},
	OpUnit:         {0, 0},
	OpMark:         {2, 0},
	OpLoad:         {2, 1},
	OpStore:        {2, 1},
	OpModify:       {2, 1},
	OpExit:         {1, 1},
	OpEnd:          {1, 1},
	OpEndIndirect:  {1, 1},
	OpCall:         {2, 0},
	OpIndirectCall: {2, 0},
}

// Record is one decoded line of a callout log.
type Record struct {
	Line int
	Op   Op
	Args []uint64
	Strs []string
}

// Arg returns the i-th numeric argument.
func (r Record) Arg(i int) uint64 {
	return r.Args[i]
}

// Str returns the i-th string argument, or the empty string when the
// record omits it.
func (r Record) Str(i int) string {
	if i < len(r.Strs) {
		return r.Strs[i]
	}
	return ""
}

// ParseRecord parses a single non-blank line.
func ParseRecord(text string) (Record, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Record{}, errors.Wrap(ErrMalformed, "empty line")
	}
	op := Op(fields[0])
	a, ok := arity[op]
	if !ok {
		return Record{}, errors.Wrapf(ErrUnknownRecord, "%q", fields[0])
	}
	fields = fields[1:]
	if len(fields) < a.nums || len(fields) > a.nums+a.strs {
		return Record{}, errors.Wrapf(ErrMalformed, "%s takes %d to %d fields, got %d",
			op, a.nums, a.nums+a.strs, len(fields))
	}

	rec := Record{Op: op, Args: make([]uint64, a.nums)}
	for i := 0; i < a.nums; i++ {
		v, err := strconv.ParseUint(fields[i], 0, 64)
		if err != nil {
			return Record{}, errors.Wrapf(ErrMalformed, "%s: %v", op, err)
		}
		rec.Args[i] = v
	}
	rec.Strs = fields[a.nums:]

	return rec, nil
}
