// Package errors wraps github.com/cockroachdb/errors and defines the error
// taxonomy shared by the scheduling and dispatch components.
//
// Callers wrap a sentinel with Mark (or one of the helpers below) and test
// with Is, so the category survives any amount of added context:
//
//	return errors.Mark(errors.Wrapf(err, "post to %s", platform), errors.ErrRemoteAPI)
//
//	if errors.Is(err, errors.ErrStaleData) {
//	    // someone else already decided
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"

	"github.com/ifuryst/herald/pkg/util"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
	GetAllHints        = crdb.GetAllHints
	FlattenHints       = crdb.FlattenHints
)

var (
	Is         = crdb.Is
	IsAny      = crdb.IsAny
	As         = crdb.As
	Unwrap     = crdb.Unwrap
	UnwrapOnce = crdb.UnwrapOnce
	UnwrapAll  = crdb.UnwrapAll
)

// Sentinels. Wrap or Mark these, never compare by message.
var (
	// ErrConfiguration means a platform has no usable credentials.
	ErrConfiguration = New("platform not configured")

	// ErrRemoteAPI means the platform answered with a non-success response.
	ErrRemoteAPI = New("remote api error")

	ErrNetwork = New("network error")

	ErrTimeout = New("operation timed out")

	// ErrStaleData means a compare-and-swap lost to a concurrent writer.
	ErrStaleData = New("already processed")

	ErrValidation = New("validation failed")

	ErrNotFound = New("not found")

	// ErrGeneration means the generation pipeline failed after approval.
	ErrGeneration = New("generation failed")

	// ErrStorage means a database write failed.
	ErrStorage = New("storage error")
)

func Configuration(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrConfiguration)
}

func Validation(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrValidation)
}

func NotFound(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// Storage marks err as a storage failure with context. Nil stays nil.
func Storage(err error, context string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, context), ErrStorage)
}

func IsStaleData(err error) bool     { return err != nil && Is(err, ErrStaleData) }
func IsValidation(err error) bool    { return err != nil && Is(err, ErrValidation) }
func IsNotFound(err error) bool      { return err != nil && Is(err, ErrNotFound) }
func IsConfiguration(err error) bool { return err != nil && Is(err, ErrConfiguration) }
func IsTimeout(err error) bool       { return err != nil && Is(err, ErrTimeout) }

// UserMessage renders err the way operators see it. Conflicts and missing
// credentials collapse to fixed phrases; everything else is the error text
// truncated to util.MaxErrorLength.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrStaleData):
		return ErrStaleData.Error()
	case Is(err, ErrConfiguration):
		return ErrConfiguration.Error()
	}
	return util.TruncateError(err.Error())
}
