package types

import "github.com/pkg/errors"

// Error taxonomy shared by every package of the module. Callers match with
// errors.Is; producers wrap with errors.Wrapf to add context.
var (
	ErrArgument          = errors.New("invalid argument")
	ErrValidation        = errors.New("validation failed")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrBounds            = errors.New("index out of bounds")
	ErrInconsistent      = errors.New("descriptor differs across ranks")
)
