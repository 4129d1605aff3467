package coalesce

import (
	"github.com/pkg/errors"
)

var (
	ErrInvalidCapacity = errors.New("event buffer capacity must be at least 2")
)
