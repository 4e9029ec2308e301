// Package errors defines the error taxonomy shared by the LTR engine, the
// feature store and the search service, together with the mapping from those
// errors to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingParameter  = errors.New("missing parameter")
	ErrUnknownFeature    = errors.New("unknown feature")
	ErrAnalyzerNotFound  = errors.New("analyzer not found")
	ErrTooManyFeatures   = errors.New("too many features")
	ErrNoFeaturesFound   = errors.New("no features found")
	ErrFeatureDisabled   = errors.New("ltr disabled")
	ErrNormalizerRange   = errors.New("normalizer out of range")
	ErrInvalidDefinition = errors.New("invalid definition")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// MissingParameterError reports every required parameter of a feature that
// was absent when the feature was bound to query parameters.
type MissingParameterError struct {
	Feature string
	Params  []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("feature [%s]: Missing required param(s): [%s]", e.Feature, strings.Join(e.Params, ","))
}

func (e *MissingParameterError) Unwrap() error {
	return ErrMissingParameter
}

func MissingParameters(feature string, params []string) *MissingParameterError {
	return &MissingParameterError{Feature: feature, Params: params}
}

func UnknownFeature(name string) *AppError {
	return Newf(ErrUnknownFeature, http.StatusBadRequest,
		"Feature: [%s] provided in active_features does not exist", name)
}

func AnalyzerNotFound(name string) *AppError {
	return Newf(ErrAnalyzerNotFound, http.StatusBadRequest, "No analyzer found for [%s]", name)
}

func TooManyFeatures(query string) *AppError {
	return Newf(ErrTooManyFeatures, http.StatusBadRequest,
		"The feature query [%s] returns too many features", query)
}

func NoFeaturesFound(query string) *AppError {
	return Newf(ErrNoFeaturesFound, http.StatusBadRequest,
		"The feature query [%s] returned no features", query)
}

func FeatureDisabled() *AppError {
	return New(ErrFeatureDisabled, http.StatusServiceUnavailable,
		"LTR plugin is disabled. To enable, update ltr.enabled to true")
}

func InvalidDefinition(format string, args ...any) *AppError {
	return Newf(ErrInvalidDefinition, http.StatusBadRequest, format, args...)
}

func NotFound(kind, name string) *AppError {
	return Newf(ErrNotFound, http.StatusNotFound, "Unknown %s [%s]", kind, name)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMissingParameter), errors.Is(err, ErrUnknownFeature),
		errors.Is(err, ErrAnalyzerNotFound), errors.Is(err, ErrTooManyFeatures),
		errors.Is(err, ErrNoFeaturesFound), errors.Is(err, ErrNormalizerRange),
		errors.Is(err, ErrInvalidDefinition), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrFeatureDisabled), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
