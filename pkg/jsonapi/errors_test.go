package jsonapi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-jsonapi/server/pkg/errortracking"
	"github.com/go-jsonapi/server/pkg/planner"
	"github.com/go-jsonapi/server/pkg/relationship"
)

func TestClassify_PassesThroughAPIError(t *testing.T) {
	orig := NewError(KindConflict, "dup", "already exists")
	got := Classify(orig)
	assert.Same(t, orig, got)
}

func TestClassify_PlannerSentinels(t *testing.T) {
	assert.Equal(t, KindInvalidCursor, Classify(planner.ErrInvalidCursor).Kind)
	assert.Equal(t, KindInvalidInclude, Classify(planner.ErrInvalidInclude).Kind)
	assert.Equal(t, KindValidation, Classify(planner.ErrUnknownFilterKey).Kind)
	assert.Equal(t, KindValidation, Classify(planner.ErrUnknownSortField).Kind)
}

func TestClassify_RelationshipSentinels(t *testing.T) {
	assert.Equal(t, KindInvalidInclude, Classify(relationship.ErrInvalidInclude).Kind)
	assert.Equal(t, KindConflict, Classify(relationship.ErrConflict).Kind)
}

func TestClassify_UnknownErrorIsInternal(t *testing.T) {
	got := Classify(errors.New("boom"))
	assert.Equal(t, KindInternal, got.Kind)
}

func TestClassify_WrappedSentinel(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), planner.ErrUnknownFilterKey)
	got := Classify(wrapped)
	assert.Equal(t, KindValidation, got.Kind)
}

func TestRender_StatusMapping(t *testing.T) {
	doc, status := Render(context.Background(), nil, NewError(KindNotFound, "missing", ""))
	assert.Equal(t, http.StatusNotFound, status)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "missing", doc.Errors[0].Title)
	assert.Equal(t, string(KindNotFound), doc.Errors[0].Code)
}

func TestRender_InternalErrorReportsToTracker(t *testing.T) {
	tracker := &capturingTracker{}
	_, status := Render(context.Background(), tracker, errors.New("db exploded"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, 1, tracker.calls)
}

func TestRender_NonInternalErrorDoesNotReportToTracker(t *testing.T) {
	tracker := &capturingTracker{}
	_, status := Render(context.Background(), tracker, NewError(KindValidation, "bad", ""))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, 0, tracker.calls)
}

func TestRender_SourcePointer(t *testing.T) {
	apiErr := &APIError{Kind: KindValidation, Title: "bad attribute", Source: "/data/attributes/title"}
	doc, _ := Render(context.Background(), nil, apiErr)
	require.NotNil(t, doc.Errors[0].Source)
	assert.Equal(t, "/data/attributes/title", doc.Errors[0].Source.Pointer)
}

type capturingTracker struct{ calls int }

func (c *capturingTracker) CaptureError(ctx context.Context, err error, severity errortracking.Severity, meta map[string]interface{}) {
	c.calls++
}

func (c *capturingTracker) CaptureMessage(ctx context.Context, msg string, severity errortracking.Severity, meta map[string]interface{}) {
}

func (c *capturingTracker) CapturePanic(ctx context.Context, recovered interface{}, stackTrace []byte, meta map[string]interface{}) {
}
