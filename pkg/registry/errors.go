package registry

import (
	"github.com/pkg/errors"
)

var (
	ErrUnknownFunction = errors.New("function id not registered")
)
