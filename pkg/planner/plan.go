package planner

import (
	"fmt"
	"strings"

	"github.com/go-jsonapi/server/pkg/common"
	"github.com/go-jsonapi/server/pkg/schema"
)

// BuildPlan resolves filter/sort/page query parameters against a compiled
// resource descriptor into an executable Plan (§4.3). Include-path
// validation happens here too (unknown or too-deep paths are rejected with
// ErrInvalidInclude); the actual eager load is pkg/relationship's job.
func BuildPlan(res *schema.ResourceDescriptor, qp QueryParams, cfg Config, lookup Lookup) (*Plan, error) {
	p := &Plan{Resource: res}

	if err := resolveFilters(p, res, qp, lookup); err != nil {
		return nil, err
	}
	if err := resolveSort(p, res, qp); err != nil {
		return nil, err
	}
	if err := resolveIncludes(p, res, qp, lookup); err != nil {
		return nil, err
	}
	if err := resolvePagination(p, qp, cfg); err != nil {
		return nil, err
	}
	resolveSparseFields(p, res, qp)

	return p, nil
}

// resolveIncludes validates every dotted include path names a real
// relationship chain on the resource (§4.3, §7 invalid_include), without
// yet loading anything.
func resolveIncludes(p *Plan, res *schema.ResourceDescriptor, qp QueryParams, lookup Lookup) error {
	const maxIncludeDepth = 5
	for _, path := range qp.Include {
		hops := splitInclude(path)
		if len(hops) > maxIncludeDepth {
			return fmt.Errorf("include %q exceeds max depth: %w", path, ErrInvalidInclude)
		}
		current := res
		for _, hop := range hops {
			rel, ok := current.Relationships[hop]
			if !ok {
				return fmt.Errorf("include %q: %q is not a relationship on %q: %w", path, hop, current.Type, ErrInvalidInclude)
			}
			target, ok := lookup(rel.Target)
			if !ok && !rel.Polymorphic {
				return fmt.Errorf("include %q: relationship %q target unresolved: %w", path, hop, ErrInvalidInclude)
			}
			current = target
		}
		p.IncludePaths = append(p.IncludePaths, path)
	}
	return nil
}

func splitInclude(path string) []string {
	var out []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			out = append(out, path[start:i])
			start = i + 1
		}
	}
	out = append(out, path[start:])
	return out
}

// resolveSparseFields copies the requested sparse fieldsets through to the
// plan, and copies the primary resource's own fieldset into Columns, which
// Execute projects.
func resolveSparseFields(p *Plan, res *schema.ResourceDescriptor, qp QueryParams) {
	if len(qp.Fields) == 0 {
		return
	}
	p.IncludedFields = qp.Fields
	if cols, ok := qp.Fields[res.Type]; ok {
		p.Columns = cols
	}
}

// resolvePagination resolves page[number]/page[size] or page[after]/
// page[before] into a PaginationPlan, applying QueryDefaultLimit/
// QueryMaxLimit (§4.3, §6).
func resolvePagination(p *Plan, qp QueryParams, cfg Config) error {
	size := cfg.QueryDefaultLimit
	if qp.Page.Size != nil {
		size = *qp.Page.Size
	}
	if size <= 0 {
		size = cfg.QueryDefaultLimit
	}
	if cfg.QueryMaxLimit > 0 && size > cfg.QueryMaxLimit {
		size = cfg.QueryMaxLimit
	}

	if qp.Page.After != "" || qp.Page.Before != "" {
		backward := qp.Page.Before != ""
		value := qp.Page.After
		if backward {
			value = qp.Page.Before
		}
		p.Pagination = PaginationPlan{
			Mode: PageCursor, Size: size, CursorValue: value, CursorBackward: backward,
			FetchSize: size + 1,
		}
		return nil
	}

	number := 1
	if qp.Page.Number != nil {
		number = *qp.Page.Number
	}
	if number < 1 {
		number = 1
	}
	p.Pagination = PaginationPlan{Mode: PageOffset, Number: number, Size: size, FetchSize: size}
	return nil
}

// Execute translates a resolved Plan into calls against a common.SelectQuery,
// returning the configured query ready for Scan/ScanModel/Count (§4.3, §4.1
// "database-agnostic" query construction).
func Execute(q common.SelectQuery, p *Plan) common.SelectQuery {
	res := p.Resource
	q = q.Table(res.Table)

	if len(p.Columns) > 0 {
		cols := make([]string, len(p.Columns))
		for i, c := range p.Columns {
			col := c
			if fd, ok := res.Fields[c]; ok {
				col = fd.Column
			}
			cols[i] = qualify(res.Table, col)
		}
		if p.Distinct {
			q = q.ColumnExpr("DISTINCT " + strings.Join(cols, ", "))
		} else {
			q = q.Column(cols...)
		}
	} else if p.Distinct {
		q = q.ColumnExpr("DISTINCT " + qualify(res.Table, "*"))
	}

	for _, j := range p.Joins {
		if len(j.OnArgs) > 0 {
			q = q.LeftJoin(fmt.Sprintf("%s AS %s ON %s", j.Table, j.Alias, j.OnExpr), j.OnArgs...)
		} else {
			q = q.LeftJoin(fmt.Sprintf("%s AS %s ON %s", j.Table, j.Alias, j.OnExpr))
		}
	}

	for _, w := range p.Where {
		switch w.Op {
		case WhereOr:
			q = q.WhereOr(w.Expr, w.Args...)
		default:
			q = q.Where(w.Expr, w.Args...)
		}
	}

	for _, o := range p.Order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		q = q.OrderExpr(fmt.Sprintf("%s %s", o.Column, dir))
	}

	switch p.Pagination.Mode {
	case PageOffset:
		q = q.Limit(p.Pagination.Size).Offset((p.Pagination.Number - 1) * p.Pagination.Size)
	case PageCursor:
		q = q.Limit(p.Pagination.FetchSize)
	}

	return q
}
