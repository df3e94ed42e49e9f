package planner

import (
	"fmt"
	"strings"

	"github.com/go-jsonapi/server/pkg/schema"
)

// resolveSort turns the sort query parameter into OrderClauses, falling
// back to the resource's DefaultSort when the client supplies none (§4.3).
// A leading "-" reverses direction. Dotted fields reuse the precomputed
// join chain, exactly like filters.
func resolveSort(p *Plan, res *schema.ResourceDescriptor, qp QueryParams) error {
	fields := qp.Sort
	if len(fields) == 0 {
		fields = res.DefaultSort
	}

	for _, raw := range fields {
		desc := false
		field := raw
		if strings.HasPrefix(field, "-") {
			desc = true
			field = field[1:]
		}
		if field == "" {
			continue
		}

		if strings.Contains(field, ".") {
			chain, ok := res.JoinIndex[field]
			if !ok {
				return fmt.Errorf("sort field %q: %w", raw, ErrUnknownSortField)
			}
			attachJoinChain(p, res, chain)
			if chain.OneToMany {
				p.Distinct = true
			}
			p.Order = append(p.Order, OrderClause{
				Column: qualify(chain.Hops[len(chain.Hops)-1].Alias, chain.FinalColumn),
				Desc:   desc,
			})
			continue
		}

		fd, ok := res.Fields[field]
		if !ok {
			return fmt.Errorf("sort field %q: %w", raw, ErrUnknownSortField)
		}
		if !fd.Sort {
			return fmt.Errorf("sort field %q is not sortable: %w", raw, ErrUnknownSortField)
		}
		p.Order = append(p.Order, OrderClause{Column: qualify(res.Table, fd.Column), Desc: desc})
	}

	if len(p.Order) == 0 {
		p.Order = append(p.Order, OrderClause{Column: qualify(res.Table, res.IDField), Desc: false})
	}
	return nil
}
