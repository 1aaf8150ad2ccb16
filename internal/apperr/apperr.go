package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindIO             Kind = "io"
	KindManifestFormat Kind = "manifest_format"
	KindMissingTable   Kind = "missing_table"
	KindAmbiguousSize  Kind = "ambiguous_size"
	KindLink           Kind = "link"
	KindUsage          Kind = "usage"
)

// AppError tags an error with the kind used to decide how far it propagates:
// per-file kinds are reported and skipped, per-root kinds abort one root,
// usage errors abort before any work.
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func New(kind Kind, message string, cause error) error {
	return &AppError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func NewUsage(format string, args ...interface{}) error {
	return New(KindUsage, fmt.Sprintf(format, args...), nil)
}

func NewIO(message string, cause error) error {
	return New(KindIO, message, cause)
}

// Is reports whether any error in err's chain is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

func IsUsage(err error) bool {
	return Is(err, KindUsage)
}
