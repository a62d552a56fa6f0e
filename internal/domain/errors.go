package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrDuplicateDate      = errors.New("duplicate date in series")
	ErrNonPositiveCapital = errors.New("starting capital must be positive")
	ErrNonPositivePeriod  = errors.New("holding period must be longer than zero")
)

// MissingColumnError reports that an input series lacks a required field.
type MissingColumnError struct {
	Source string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing required column %q", e.Source, e.Column)
}

// IsMissingColumn reports whether err (or anything it wraps) is a MissingColumnError.
func IsMissingColumn(err error) bool {
	var mc *MissingColumnError
	return errors.As(err, &mc)
}
