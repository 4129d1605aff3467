package symtable

import (
	"github.com/pkg/errors"
)

var (
	ErrSymTableEmpty = errors.New("symtable is empty")
	ErrInvalidRange  = errors.New("invalid address range")
)
