package jsonapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-jsonapi/server/pkg/errortracking"
	"github.com/go-jsonapi/server/pkg/logger"
	"github.com/go-jsonapi/server/pkg/planner"
	"github.com/go-jsonapi/server/pkg/relationship"
	"github.com/go-jsonapi/server/pkg/schema"
)

// Kind enumerates the §7 error taxonomy.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindPayload            Kind = "payload"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindForbidden          Kind = "forbidden"
	KindUnauthorized       Kind = "unauthorized"
	KindUnsupportedMedia   Kind = "unsupported_media"
	KindInvalidCursor      Kind = "invalid_cursor"
	KindInvalidInclude     Kind = "invalid_include"
	KindSchemaInvalid      Kind = "schema_invalid"
	KindInternal           Kind = "internal"
)

// httpStatus maps each error kind onto its §7 HTTP status.
var httpStatus = map[Kind]int{
	KindValidation:      http.StatusUnprocessableEntity,
	KindPayload:         http.StatusBadRequest,
	KindNotFound:        http.StatusNotFound,
	KindConflict:        http.StatusConflict,
	KindForbidden:       http.StatusForbidden,
	KindUnauthorized:    http.StatusUnauthorized,
	KindUnsupportedMedia: http.StatusUnsupportedMediaType,
	KindInvalidCursor:   http.StatusBadRequest,
	KindInvalidInclude:  http.StatusBadRequest,
	KindSchemaInvalid:   http.StatusInternalServerError,
	KindInternal:        http.StatusInternalServerError,
}

// APIError is the internal error type carrying a taxonomy Kind; handler
// code returns these (or errors classify()-able into one) and the pipeline
// renders them as a JSON:API ErrorDocument.
type APIError struct {
	Kind   Kind
	Title  string
	Detail string
	Source string // optional JSON pointer, e.g. "/data/attributes/title"
	cause  error
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Title + ": " + e.Detail
	}
	return e.Title
}

func (e *APIError) Unwrap() error { return e.cause }

// NewError builds an APIError of the given kind.
func NewError(kind Kind, title, detail string) *APIError {
	return &APIError{Kind: kind, Title: title, Detail: detail}
}

// Wrap builds an APIError that also chains err for errors.Is/As.
func Wrap(kind Kind, title string, err error) *APIError {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &APIError{Kind: kind, Title: title, Detail: detail, cause: err}
}

// Classify maps a lower-layer error (planner/relationship/schema sentinels,
// or an already-built *APIError) onto the taxonomy, defaulting to internal
// for anything unrecognized.
func Classify(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, planner.ErrInvalidCursor):
		return Wrap(KindInvalidCursor, "Invalid pagination cursor", err)
	case errors.Is(err, planner.ErrInvalidInclude), errors.Is(err, relationship.ErrInvalidInclude):
		return Wrap(KindInvalidInclude, "Invalid include path", err)
	case errors.Is(err, planner.ErrUnknownFilterKey), errors.Is(err, planner.ErrUnknownSortField):
		return Wrap(KindValidation, "Invalid query parameter", err)
	case errors.Is(err, relationship.ErrConflict):
		return Wrap(KindConflict, "Relationship conflict", err)
	}

	var schemaErr *schema.InvalidError
	if errors.As(err, &schemaErr) {
		return Wrap(KindSchemaInvalid, "Resource schema misconfigured", err)
	}

	return Wrap(KindInternal, "Internal server error", err)
}

// Render captures internal-kind errors to the configured error tracking
// provider (§7 "internal errors ... are the only kind reported upstream")
// and returns the rendered ErrorDocument plus its HTTP status.
func Render(ctx context.Context, tracker errortracking.Provider, err error) (*ErrorDocument, int) {
	apiErr := Classify(err)
	status, ok := httpStatus[apiErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if apiErr.Kind == KindInternal {
		logger.Error("internal error: %v", err)
		if tracker != nil {
			tracker.CaptureError(ctx, err, errortracking.SeverityError, map[string]interface{}{"kind": string(apiErr.Kind)})
		}
	}

	return &ErrorDocument{Errors: []Error{{
		Status: strconv.Itoa(status),
		Title:  apiErr.Title,
		Detail: apiErr.Detail,
		Source: sourcePointer(apiErr.Source),
		Code:   string(apiErr.Kind),
	}}}, status
}

func sourcePointer(pointer string) *ErrorSource {
	if pointer == "" {
		return nil
	}
	return &ErrorSource{Pointer: pointer}
}
