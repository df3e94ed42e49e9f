// Package planner turns filter/sort/include/fields/page query parameters
// plus a compiled resource descriptor into an executable query plan: the
// join chain, WHERE predicates, ORDER BY, and column projection (§4.3).
package planner

import "github.com/go-jsonapi/server/pkg/schema"

// PageParams is the raw, unvalidated page[...] query input (§4.3, §6).
type PageParams struct {
	Number *int
	Size   *int
	After  string
	Before string
}

// QueryParams is the raw, unvalidated request shape the JSON:API transport
// decodes HTTP query parameters into (§6).
type QueryParams struct {
	Include []string            // dotted relationship paths
	Fields  map[string][]string // sparse fieldsets, keyed by resource type
	Filters map[string]string   // filter[key] -> raw scalar or comma-joined array value
	Sort    []string            // "field" or "-field", client order preserved
	Page    PageParams
}

// Config carries the environment knobs of §6.
type Config struct {
	QueryDefaultLimit      int
	QueryMaxLimit          int
	EnablePaginationCounts bool
}

// JoinSpec is one deduplicated LEFT JOIN attached to the outer SELECT.
type JoinSpec struct {
	Alias        string
	Table        string
	OnExpr       string
	OnArgs       []interface{}
	Conditional  bool // true for per-concrete-type polymorphic joins
}

// WhereOp enumerates how a WhereClause combines with the ones before it.
type WhereOp string

const (
	WhereAnd WhereOp = "AND"
	WhereOr  WhereOp = "OR"
)

// WhereClause is one resolved predicate, either a plain SQL fragment with
// bound args or a raw group (used for OR-of-AND polymorphic/oneOf expansion).
type WhereClause struct {
	Op    WhereOp
	Expr  string
	Args  []interface{}
}

// OrderClause is one resolved ORDER BY entry.
type OrderClause struct {
	Column string // fully qualified (alias.column or table.column)
	Desc   bool
}

// PaginationMode distinguishes offset and cursor pagination (§4.3).
type PaginationMode int

const (
	PageOffset PaginationMode = iota
	PageCursor
)

// PaginationPlan is the resolved pagination strategy for one request.
type PaginationPlan struct {
	Mode PaginationMode

	// Offset mode.
	Number int
	Size   int

	// Cursor mode.
	CursorValue     string
	CursorBackward  bool

	// FetchSize is the number of rows actually requested from the database:
	// Size (+1 in cursor mode, to detect hasMore).
	FetchSize int
}

// Plan is the fully resolved, ready-to-execute query (§4.3).
type Plan struct {
	Resource *schema.ResourceDescriptor

	Joins       []JoinSpec
	Where       []WhereClause
	Order       []OrderClause
	Distinct    bool
	Columns     []string // physical columns to select on the main table; empty means all
	IncludedFields map[string][]string // sparse fieldsets per included type, passed through to the relationship engine

	Pagination PaginationPlan

	// IncludePaths is the validated list of dotted include paths, passed
	// through to the relationship engine.
	IncludePaths []string
}
