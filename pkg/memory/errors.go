package memory

import (
	"github.com/pkg/errors"
)

var (
	ErrInvalidPageSize = errors.New("page size must be a power of two")
	ErrRangeOverflow   = errors.New("object range overflows the address space")
	ErrObjectTooLarge  = errors.New("object spans too many pages")
)
