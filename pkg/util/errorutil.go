package util

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Error codes shared by the client and the stand-in server.
const (
	CodeDecodeFailed     = "DECODE_FAILED"
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodeNetwork          = "NETWORK_ERROR"
	CodeValidation       = "VALIDATION_FAILED"
	CodeQuotaExceeded    = "QUOTA_EXCEEDED"
	CodeInvalidState     = "INVALID_STATE"
	CodeRequestInFlight  = "REQUEST_IN_FLIGHT"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
	detailsFieldErrorKey = "fields"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// FieldErrors returns the per-field messages attached to a validation error.
func (e *DomainError) FieldErrors() map[string][]string {
	if e == nil || e.Details == nil {
		return nil
	}
	fields, _ := e.Details[detailsFieldErrorKey].(map[string][]string)
	return fields
}

// Items lists field errors as "field: message" lines in a stable order.
func (e *DomainError) Items() []string {
	fields := e.FieldErrors()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var items []string
	for _, k := range keys {
		for _, msg := range fields[k] {
			items = append(items, k+": "+msg)
		}
	}
	return items
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewFieldValidationError builds a validation error whose message is the aggregated
// summary line and whose details keep the itemized per-field list.
func NewFieldValidationError(detail string, fields map[string][]string) error {
	parts := make([]string, 0, len(fields)+1)
	if detail != "" {
		parts = append(parts, detail)
	}
	de := &DomainError{
		Code:       CodeValidation,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{detailsFieldErrorKey: fields},
	}
	parts = append(parts, de.Items()...)
	de.Message = strings.Join(parts, " ")
	return de
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewAuthRequired reports a privileged action attempted without a stored credential.
func NewAuthRequired(message string) error {
	return NewDomainError(CodeAuthRequired, message, http.StatusUnauthorized, nil)
}

// NewNetworkError reports a transport failure or a non-2xx response.
func NewNetworkError(message string, status int, err error) error {
	return &DomainError{Code: CodeNetwork, Message: message, HTTPStatus: status, Err: err}
}

// NewQuotaExceeded reports a local pre-flight denial.
func NewQuotaExceeded(message string, details map[string]any) error {
	return NewDomainError(CodeQuotaExceeded, message, http.StatusForbidden, details)
}

// NewInvalidState reports an operation invoked from a state that does not permit it.
func NewInvalidState(message string) error {
	return NewDomainError(CodeInvalidState, message, http.StatusConflict, nil)
}

// NewInFlight reports a trigger rejected because a request is already outstanding.
func NewInFlight(message string) error {
	return NewDomainError(CodeRequestInFlight, message, http.StatusConflict, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf returns the error code, or "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
