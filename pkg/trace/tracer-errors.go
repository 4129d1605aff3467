package trace

import (
	"github.com/pkg/errors"
)

var (
	ErrNothingToTrace    = errors.New("at least one of memory or call tracing must be enabled")
	ErrFinalized         = errors.New("tracer already finalized")
	ErrOutputUnavailable = errors.New("output file unavailable")
)
