package replay

import (
	"github.com/pkg/errors"
)

var (
	ErrUnknownRecord = errors.New("unknown record")
	ErrMalformed     = errors.New("malformed record")
	ErrNoUnit        = errors.New("no open unit")
)
