package domain

import (
	"errors"
	"net/http"
)

type ErrorKind string

const (
	KindInputValidation  ErrorKind = "InputValidationError"
	KindDecode           ErrorKind = "DecodeError"
	KindInvalidDimension ErrorKind = "InvalidDimensionError"
	KindShape            ErrorKind = "ShapeError"
	KindEncode           ErrorKind = "EncodeError"
	KindInference        ErrorKind = "InferenceError"
	KindInternal         ErrorKind = "InternalError"
)

// Error is the structured failure surfaced by a conversion stage.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func HTTPStatus(err error) int {
	if KindOf(err) == KindInputValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
