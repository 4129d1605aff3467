package report

import (
	"github.com/pkg/errors"
)

var (
	ErrUnknownFormat = errors.New("unknown report format")
)
