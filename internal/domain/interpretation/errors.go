package interpretation

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the interpretation pipeline can return.
type Kind string

const (
	KindInvalidInput              Kind = "invalid_input"
	KindUpstreamUnavailable       Kind = "upstream_unavailable"
	KindUpstreamTimeout           Kind = "upstream_timeout"
	KindUpstreamAuthError         Kind = "upstream_auth_error"
	KindUpstreamMalformedResponse Kind = "upstream_malformed_response"
	KindEmptyResponse             Kind = "empty_response"
	KindNoJSONFound               Kind = "no_json_found"
	KindJSONParseError            Kind = "json_parse_error"
	KindSchemaValidationError     Kind = "schema_validation_error"
)

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrInvalidInput              = &Error{Kind: KindInvalidInput}
	ErrUpstreamUnavailable       = &Error{Kind: KindUpstreamUnavailable}
	ErrUpstreamTimeout           = &Error{Kind: KindUpstreamTimeout}
	ErrUpstreamAuthError         = &Error{Kind: KindUpstreamAuthError}
	ErrUpstreamMalformedResponse = &Error{Kind: KindUpstreamMalformedResponse}
	ErrEmptyResponse             = &Error{Kind: KindEmptyResponse}
	ErrNoJSONFound               = &Error{Kind: KindNoJSONFound}
	ErrJSONParseError            = &Error{Kind: KindJSONParseError}
	ErrSchemaValidation          = &Error{Kind: KindSchemaValidationError}
)

// Error is the typed failure returned by the pipeline.
type Error struct {
	Kind Kind
	// Field names the missing or invalid field for schema errors.
	Field string
	// Snippet holds the JSON candidate that failed to parse.
	Snippet string
	Msg     string
	Err     error
}

// NewError builds an error of the given kind wrapping err (may be nil).
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func schemaError(field, msg string) *Error {
	return &Error{Kind: KindSchemaValidationError, Field: field, Msg: msg}
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Field != "" {
		s += fmt.Sprintf(" (field %q)", e.Field)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind only, so wrapped details do not affect errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind carried by err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether a fresh attempt can change the outcome.
func Retryable(err error) bool {
	return KindOf(err) == KindUpstreamUnavailable
}
