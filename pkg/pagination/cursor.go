package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-jsonapi/server/pkg/planner"
	"github.com/vmihailenco/msgpack/v5"
)

// cursorPayload is the opaque structure encoded into a page[after]/
// page[before] token (§9 "opaque cursor format"). Values line up
// positionally with the resolved ORDER BY columns at encode time; decoding
// never assumes a schema beyond "however many values were encoded".
type cursorPayload struct {
	Values []interface{} `msgpack:"v"`
}

// EncodeCursor packs the sort-key values of one row into an opaque,
// base64url token. Callers (the jsonapi handler, when synthesizing `links`)
// pass the values in the same order as the plan's resolved ORDER BY clauses.
func EncodeCursor(values []interface{}) (string, error) {
	raw, err := msgpack.Marshal(cursorPayload{Values: values})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor reverses EncodeCursor, returning ErrInvalidCursor-wrapped
// errors (via planner.ErrInvalidCursor) for any malformed or truncated
// token so the jsonapi layer maps it onto the invalid_cursor error kind.
func DecodeCursor(token string) ([]interface{}, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor encoding: %w", planner.ErrInvalidCursor)
	}
	var payload cursorPayload
	if err := msgpack.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("malformed cursor payload: %w", planner.ErrInvalidCursor)
	}
	if len(payload.Values) == 0 {
		return nil, fmt.Errorf("empty cursor payload: %w", planner.ErrInvalidCursor)
	}
	return payload.Values, nil
}

// BuildCursorWhere turns a decoded cursor's values plus the plan's resolved
// ORDER BY columns into the multi-key OR-AND predicate chain that makes
// cursor pagination stable across ties (generalized from the EXISTS-based
// single-table cursor filter: the planner has already attached whatever
// joins the sort columns need, so here we compare columns directly instead
// of re-deriving them through a subquery).
//
// For ORDER BY a ASC, b DESC with cursor values (va, vb), forward pagination
// becomes:
//
//	(a > va) OR (a = va AND b < vb)
//
// backward pagination flips every comparison operator.
func BuildCursorWhere(order []planner.OrderClause, values []interface{}, backward bool) (planner.WhereClause, error) {
	if len(order) != len(values) {
		return planner.WhereClause{}, fmt.Errorf("cursor has %d values but plan orders by %d columns: %w", len(values), len(order), planner.ErrInvalidCursor)
	}

	var orGroups []string
	var args []interface{}
	for i := range order {
		var eqParts []string
		var eqArgs []interface{}
		for j := 0; j < i; j++ {
			eqParts = append(eqParts, fmt.Sprintf("%s = ?", order[j].Column))
			eqArgs = append(eqArgs, values[j])
		}

		desc := order[i].Desc
		if backward {
			desc = !desc
		}
		op := ">"
		if desc {
			op = "<"
		}
		eqParts = append(eqParts, fmt.Sprintf("%s %s ?", order[i].Column, op))
		eqArgs = append(eqArgs, values[i])

		orGroups = append(orGroups, "("+strings.Join(eqParts, " AND ")+")")
		args = append(args, eqArgs...)
	}

	return planner.WhereClause{
		Op:   planner.WhereAnd,
		Expr: "(" + strings.Join(orGroups, " OR ") + ")",
		Args: args,
	}, nil
}

// RowCursorValues extracts, in ORDER BY order, the values of one fetched row
// that EncodeCursor needs to produce the next/prev token for that row.
func RowCursorValues(row map[string]interface{}, order []planner.OrderClause) []interface{} {
	out := make([]interface{}, len(order))
	for i, o := range order {
		col := o.Column
		if idx := strings.LastIndexByte(col, '.'); idx >= 0 {
			col = col[idx+1:]
		}
		out[i] = row[col]
	}
	return out
}
