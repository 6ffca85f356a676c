// Package errs defines the machine-readable error codes shared by the
// retrieval subsystem. Errors are built with [github.com/samber/oops] so the
// code and structured fields travel with the error through %w wrapping.
package errs

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error, shaped
// "area.op.reason".
type Code string

const (
	CodeStorageUnavailable  Code = "storage.open.unavailable"
	CodeStorageFailure      Code = "storage.query.failure"
	CodeNotInitialized      Code = "lifecycle.not_initialized"
	CodeProviderUnavailable Code = "provider.probe.unavailable"
	CodeUpstreamCallFailed  Code = "provider.upstream.failure"
	CodeMalformedResponse   Code = "provider.response.malformed"
	CodeConfigInvalid       Code = "config.validate.invalid"
	CodeBackendUnsupported  Code = "config.backend.unsupported"
	CodePluginDisabled      Code = "plugin.disabled"
	CodeRequestInvalid      Code = "plugin.request.invalid"
)

// Sentinels for errors.Is checks. Callers wrap them with %w to add context.
var (
	ErrNotInitialized     = oops.Code(CodeNotInitialized).New("not initialized")
	ErrStorageUnavailable = oops.Code(CodeStorageUnavailable).New("storage unavailable")
	ErrDisabled           = oops.Code(CodePluginDisabled).New("plugin disabled")
)

// New returns a coded error carrying the given key/value fields.
func New(code Code, msg string, kv ...any) error {
	return oops.Code(code).With(kv...).New(msg)
}

// Errorf returns a coded error with a formatted message. %w is honoured.
func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

// Wrap attaches code and fields to err. A nil err stays nil.
func Wrap(err error, code Code, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(kv...).Wrapf(err, "%s", msg)
}

// CodeOf returns the code carried by err, or "" when err is uncoded.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oe, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch c := oe.Code().(type) {
	case Code:
		return c
	case string:
		return Code(c)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", c))
	}
}

// FieldsOf returns the structured fields attached to err.
func FieldsOf(err error) map[string]any {
	oe, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oe.Context()
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsNotInitialized reports whether err stems from a closed or
// never-initialized component.
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized) || HasCode(err, CodeNotInitialized)
}
