package apperr

import (
	"errors"
	"net/http"
)

// Code classifies an application error so handlers can map it to an HTTP
// status without string matching.
type Code string

const (
	CodeValidation        Code = "validation"
	CodeNotFound          Code = "not_found"
	CodeAuthorization     Code = "authorization"
	CodeConflict          Code = "conflict"
	CodeInsufficientFunds Code = "insufficient_funds"
)

// Error is a domain error with a machine-readable code and a human-readable
// message. Stores and the policy layer return these; everything else is a
// plain wrapped error and surfaces as a 500.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func Authorization(msg string) *Error {
	return &Error{Code: CodeAuthorization, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

func InsufficientFunds(msg string) *Error {
	return &Error{Code: CodeInsufficientFunds, Message: msg}
}

// From unwraps err into an *Error, or nil if err is not an application error.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// Status returns the HTTP status for err. Unclassified errors are 500.
func Status(err error) int {
	ae := From(err)
	if ae == nil {
		return http.StatusInternalServerError
	}
	switch ae.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAuthorization:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeInsufficientFunds:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
