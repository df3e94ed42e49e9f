// Package pagination implements offset and opaque cursor pagination over a
// resolved query plan (§4.3 "Pagination"), including the cursor codec and
// the multi-key OR-AND predicate chain that makes cursor pagination stable
// under ties.
package pagination

import "github.com/go-jsonapi/server/pkg/planner"

// Result is what the relationship/serializer layer needs to render
// top-level `links` and `meta` for one page (§4.3, §6).
type Result struct {
	Mode PageMode

	// Offset mode.
	Number int
	Size   int
	Total  int64 // -1 when counts are disabled

	// Cursor mode.
	HasMore    bool
	NextCursor string
	PrevCursor string
}

// PageMode mirrors planner.PaginationMode to keep this package's public API
// independent of the planner's internal type.
type PageMode int

const (
	ModeOffset PageMode = iota
	ModeCursor
)

func modeFromPlanner(m planner.PaginationMode) PageMode {
	if m == planner.PageCursor {
		return ModeCursor
	}
	return ModeOffset
}
