// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package apierror maps the internal typed/sentinel errors (bitcoin's
// *runes.CenotaphError, pooltx/etching's ErrInsufficientFunds,
// store.ErrNotFound, ...) onto the HTTP error taxonomy of the external
// surface, the same way bitcoin/runes/cenotapherror.go expresses its
// own errors: a plain struct with an Error() method, no
// error-handling framework.
package apierror

import (
	"errors"
	"fmt"

	"github.com/Cobra9786/power/bitcoin/etching"
	"github.com/Cobra9786/power/bitcoin/pooltx"
	"github.com/Cobra9786/power/bitcoin/runes"
	"github.com/Cobra9786/power/store"
)

// Code is one of the taxonomy's machine-readable labels.
type Code string

// The full taxonomy named in the external interfaces.
const (
	CodeOK                  Code = "ok"
	CodeBadRequest          Code = "bad_request"
	CodeUnauthorized        Code = "unauthorized"
	CodeForbidden           Code = "forbidden"
	CodeNotFound            Code = "not_found"
	CodeUnprocessableEntity Code = "unprocessable_entity"
	CodeServerError         Code = "server_error"
)

// Error is the JSON-serializable envelope returned at the HTTP boundary:
// {error:{code, message, reason?}}.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus returns the conventional status code for e.Code.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeOK:
		return 200
	case CodeBadRequest:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeForbidden:
		return 403
	case CodeNotFound:
		return 404
	case CodeUnprocessableEntity:
		return 422
	default:
		return 500
	}
}

// New builds an Error carrying an optional reason (never a stack trace,
// per the error-handling design).
func New(code Code, message string, reason ...string) *Error {
	e := &Error{Code: code, Message: message}
	if len(reason) > 0 {
		e.Reason = reason[0]
	}
	return e
}

// From classifies an arbitrary internal error into the taxonomy. A
// not-found error is surfaced verbatim; a policy rejection (cenotaph,
// insufficient funds) becomes UnprocessableEntity; anything unrecognized
// is a ServerError without its message leaking into Reason.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if errors.Is(err, store.ErrNotFound) {
		return New(CodeNotFound, "resource not found")
	}
	if errors.Is(err, store.ErrAlreadyExists) {
		return New(CodeUnprocessableEntity, "resource already exists", err.Error())
	}

	var cenotaph *runes.CenotaphError
	if errors.As(err, &cenotaph) {
		return New(CodeUnprocessableEntity, "invalid runestone", cenotaph.Error())
	}

	if errors.Is(err, pooltx.ErrInsufficientFunds) || errors.Is(err, etching.ErrInsufficientFunds) {
		return New(CodeUnprocessableEntity, "insufficient funds", err.Error())
	}

	return New(CodeServerError, "internal error")
}
