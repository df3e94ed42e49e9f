package jsonapi

import "context"

// PermissionChecker is the single external collaborator the permissions
// stage calls into (§1 non-goal: "auth providers ... specified only via
// interfaces"). A nil checker means every operation is allowed.
type PermissionChecker interface {
	// Check returns a non-nil *APIError (kind forbidden or unauthorized) to
	// reject the operation, or nil to allow it.
	Check(ctx context.Context, rc *RequestContext) *APIError
}

// PermissionCheckerFunc adapts a plain function to PermissionChecker.
type PermissionCheckerFunc func(ctx context.Context, rc *RequestContext) *APIError

func (f PermissionCheckerFunc) Check(ctx context.Context, rc *RequestContext) *APIError {
	return f(ctx, rc)
}

// QueryParams is the raw HTTP query string shape before planner resolution;
// query_parse.go builds one of these from the request URL.
type QueryParams struct {
	Include []string
	Fields  map[string][]string
	Filters map[string]string
	Sort    []string
	Page    struct {
		Number *int
		Size   *int
		After  string
		Before string
	}
}
