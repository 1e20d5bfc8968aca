package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/crowvane/nodeconv/internal/config"
	"github.com/crowvane/nodeconv/internal/fetch"
	"github.com/crowvane/nodeconv/internal/manip"
	"github.com/crowvane/nodeconv/internal/model"
	"github.com/crowvane/nodeconv/internal/render"
	"github.com/crowvane/nodeconv/internal/template"
)

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func apiError(status int, app model.AppError, cause error) error {
	return &APIError{Status: status, AppError: app, Cause: cause}
}

func requestError(code, message, hint string) error {
	return apiError(http.StatusBadRequest, model.AppError{
		Code:    code,
		Message: message,
		Stage:   "validate_request",
		Hint:    hint,
	}, nil)
}

func writeErrorFromErr(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var ae *APIError
	if errors.As(err, &ae) {
		writeAppError(w, ae.Status, ae.AppError)
		return
	}

	// Fetch errors carry their own upstream-derived status (502/504/422).
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		writeAppError(w, fe.Status, fe.AppError)
		return
	}

	// Bad user-supplied content: external config, manip rules, render
	// input, template. All client errors.
	var cpe *config.ParseError
	if errors.As(err, &cpe) {
		writeAppError(w, http.StatusBadRequest, cpe.AppError)
		return
	}

	var mpe *manip.ParseError
	if errors.As(err, &mpe) {
		writeAppError(w, http.StatusBadRequest, mpe.AppError)
		return
	}

	var re *render.RenderError
	if errors.As(err, &re) {
		writeAppError(w, http.StatusBadRequest, re.AppError)
		return
	}

	var te *template.TemplateError
	if errors.As(err, &te) {
		writeAppError(w, http.StatusBadRequest, te.AppError)
		return
	}

	// Fallback: internal bug.
	writeAppError(w, http.StatusInternalServerError, model.AppError{
		Code:    "INTERNAL_ERROR",
		Message: "服务端内部错误",
		Stage:   "internal",
		Hint:    err.Error(),
	})
}
