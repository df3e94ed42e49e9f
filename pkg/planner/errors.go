package planner

import "errors"

// Sentinel errors the HTTP layer (pkg/jsonapi) maps onto the §7 error
// taxonomy. Wrapped with fmt.Errorf("...: %w", ErrInvalidCursor) etc. so
// errors.Is still matches.
var (
	ErrInvalidCursor    = errors.New("invalid_cursor")
	ErrInvalidInclude   = errors.New("invalid_include")
	ErrUnknownFilterKey = errors.New("validation")
	ErrUnknownSortField = errors.New("validation")
)
