package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-jsonapi/server/pkg/logger"
	"github.com/go-jsonapi/server/pkg/schema"
)

// Lookup resolves a resource type to its compiled descriptor; satisfied by
// *schema.Registry.
type Lookup func(resourceType string) (*schema.ResourceDescriptor, bool)

// modifierAdapter adapts any Where/WhereOr-capable query builder to
// schema.QueryModifier for ApplyFilter closures, recording the calls as
// WhereClause entries instead of mutating a live query (the plan is built
// before any database call happens).
type modifierAdapter struct {
	clauses []WhereClause
}

func (a *modifierAdapter) Where(query string, args ...interface{}) {
	a.clauses = append(a.clauses, WhereClause{Op: WhereAnd, Expr: query, Args: args})
}

func (a *modifierAdapter) WhereOr(query string, args ...interface{}) {
	a.clauses = append(a.clauses, WhereClause{Op: WhereOr, Expr: query, Args: args})
}

var _ schema.QueryModifier = (*modifierAdapter)(nil)

// resolveFilters walks every filter[key] in QueryParams against the
// resource's searchSchema, appending joins and where clauses to the plan
// (§4.3 "Filters").
func resolveFilters(p *Plan, res *schema.ResourceDescriptor, qp QueryParams, lookup Lookup) error {
	for key, rawValue := range qp.Filters {
		sd, ok := res.SearchSchema[key]
		if !ok {
			return fmt.Errorf("filter[%s]: unknown filter key: %w", key, ErrUnknownFilterKey)
		}

		switch {
		case sd.PolymorphicField != "":
			if err := resolvePolymorphicFilter(p, res, sd, rawValue, lookup); err != nil {
				return err
			}
		case len(sd.OneOf) > 0:
			if err := resolveOneOfFilter(p, res, sd, rawValue, lookup); err != nil {
				return err
			}
		case sd.ApplyFilter != nil:
			adapter := &modifierAdapter{}
			if err := sd.ApplyFilter(adapter, parseFilterValue(rawValue)); err != nil {
				return fmt.Errorf("filter[%s]: %w", key, err)
			}
			p.Where = append(p.Where, adapter.clauses...)
		case strings.Contains(sd.ActualField, "."):
			if err := resolveDottedFilter(p, res, sd.ActualField, sd.Operator, rawValue); err != nil {
				return err
			}
		default:
			field := sd.ActualField
			if field == "" {
				field = key
			}
			col := field
			if fd, ok := res.Fields[field]; ok {
				col = fd.Column
			}
			clause, err := buildOperatorClause(qualify(res.Table, col), sd.Operator, rawValue)
			if err != nil {
				return fmt.Errorf("filter[%s]: %w", key, err)
			}
			p.Where = append(p.Where, clause)
		}
	}
	return nil
}

func qualify(table, col string) string {
	return fmt.Sprintf("%s.%s", table, col)
}

// resolveDottedFilter attaches the precomputed join chain for a cross-table
// actualField and filters on its terminal column (§4.3 "dotted actualField").
func resolveDottedFilter(p *Plan, res *schema.ResourceDescriptor, path string, op schema.SearchOperator, rawValue string) error {
	chain, ok := res.JoinIndex[path]
	if !ok {
		return fmt.Errorf("filter path %q: join chain not precomputed", path)
	}
	attachJoinChain(p, res, chain)
	lastAlias := chain.Hops[len(chain.Hops)-1].Alias
	clause, err := buildOperatorClause(qualify(lastAlias, chain.FinalColumn), op, rawValue)
	if err != nil {
		return err
	}
	p.Where = append(p.Where, clause)
	if chain.OneToMany {
		p.Distinct = true
	}
	return nil
}

// attachJoinChain appends every hop of chain to the plan's join set,
// deduplicating by alias (§4.1 "joinIndex", §9 "deterministic
// de-duplication").
func attachJoinChain(p *Plan, res *schema.ResourceDescriptor, chain *schema.JoinChain) {
	parentAlias := res.Table
	for _, hop := range chain.Hops {
		if !hasJoin(p, hop.Alias) {
			p.Joins = append(p.Joins, JoinSpec{
				Alias: hop.Alias,
				Table: hop.Table,
				OnExpr: fmt.Sprintf("%s = %s",
					qualify(parentAlias, hop.ParentColumn),
					qualify(hop.Alias, hop.ChildColumn)),
			})
		}
		parentAlias = hop.Alias
	}
}

func hasJoin(p *Plan, alias string) bool {
	for _, j := range p.Joins {
		if j.Alias == alias {
			return true
		}
	}
	return false
}

// resolvePolymorphicFilter expands a polymorphicField+targetFields
// descriptor into one conditional LEFT JOIN per concrete type plus an OR
// across per-type predicates (§4.3).
func resolvePolymorphicFilter(p *Plan, res *schema.ResourceDescriptor, sd *schema.SearchDescriptor, rawValue string, lookup Lookup) error {
	rel, ok := res.Relationships[sd.PolymorphicField]
	if !ok || !rel.Polymorphic {
		return fmt.Errorf("filter %q: %q is not a polymorphic relationship", sd.Key, sd.PolymorphicField)
	}
	if len(sd.TargetFields) != len(rel.PolymorphicTargets) && len(sd.TargetFields) != 1 {
		logger.Warn("polymorphic filter %q: target field count does not match target type count, reusing first entry per type", sd.Key)
	}

	var orGroup []string
	var args []interface{}
	for i, targetType := range rel.PolymorphicTargets {
		target, ok := lookup(targetType)
		if !ok {
			return fmt.Errorf("filter %q: polymorphic target %q unresolved", sd.Key, targetType)
		}
		alias := fmt.Sprintf("%s__%s__%s", res.Table, sd.PolymorphicField, targetType)
		onExpr := fmt.Sprintf("%s = '%s' AND %s = %s",
			qualify(res.Table, rel.TypeColumn), targetType,
			qualify(res.Table, rel.IDColumn), qualify(alias, target.IDField))
		if !hasJoin(p, alias) {
			p.Joins = append(p.Joins, JoinSpec{Alias: alias, Table: target.Table, OnExpr: onExpr, Conditional: true})
		}

		field := sd.TargetFields[0]
		if i < len(sd.TargetFields) {
			field = sd.TargetFields[i]
		}
		if fd, ok := target.Fields[field]; ok {
			field = fd.Column
		}
		frag, fragArgs, err := operatorFragment(qualify(alias, field), sd.Operator, rawValue)
		if err != nil {
			return err
		}
		orGroup = append(orGroup, fmt.Sprintf("(%s = '%s' AND %s)", qualify(res.Table, rel.TypeColumn), targetType, frag))
		args = append(args, fragArgs...)
	}
	p.Where = append(p.Where, WhereClause{Op: WhereAnd, Expr: "(" + strings.Join(orGroup, " OR ") + ")", Args: args})
	p.Distinct = true
	return nil
}

// resolveOneOfFilter implements token-level search across several fields
// (§4.3 "oneOf with splitBy"). MatchAll requires every token to match at
// least one field (AND-of-ORs); otherwise a single OR chain across fields.
func resolveOneOfFilter(p *Plan, res *schema.ResourceDescriptor, sd *schema.SearchDescriptor, rawValue string, lookup Lookup) error {
	cols := make([]string, 0, len(sd.OneOf))
	for _, f := range sd.OneOf {
		if strings.Contains(f, ".") {
			chain, ok := res.JoinIndex[f]
			if !ok {
				return fmt.Errorf("oneOf field %q: join chain not precomputed", f)
			}
			attachJoinChain(p, res, chain)
			if chain.OneToMany {
				p.Distinct = true
			}
			cols = append(cols, qualify(chain.Hops[len(chain.Hops)-1].Alias, chain.FinalColumn))
		} else {
			col := f
			if fd, ok := res.Fields[f]; ok {
				col = fd.Column
			}
			cols = append(cols, qualify(res.Table, col))
		}
	}

	if sd.SplitBy == "" {
		var orFrags []string
		var args []interface{}
		for _, col := range cols {
			frag, fragArgs, err := operatorFragment(col, sd.Operator, rawValue)
			if err != nil {
				return err
			}
			orFrags = append(orFrags, frag)
			args = append(args, fragArgs...)
		}
		p.Where = append(p.Where, WhereClause{Op: WhereAnd, Expr: "(" + strings.Join(orFrags, " OR ") + ")", Args: args})
		return nil
	}

	tokens := strings.Split(rawValue, sd.SplitBy)
	var tokenGroups []string
	var args []interface{}
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		var orFrags []string
		for _, col := range cols {
			frag, fragArgs, err := operatorFragment(col, sd.Operator, tok)
			if err != nil {
				return err
			}
			orFrags = append(orFrags, frag)
			args = append(args, fragArgs...)
		}
		tokenGroups = append(tokenGroups, "("+strings.Join(orFrags, " OR ")+")")
	}
	if len(tokenGroups) == 0 {
		return nil
	}
	joiner := " OR "
	if sd.MatchAll {
		joiner = " AND "
	}
	p.Where = append(p.Where, WhereClause{Op: WhereAnd, Expr: strings.Join(tokenGroups, joiner), Args: args})
	return nil
}

// parseFilterValue turns a raw comma-or-scalar string into either a single
// string or a []string, for ApplyFilter closures that want the structured
// form.
func parseFilterValue(raw string) interface{} {
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out
	}
	return raw
}

// buildOperatorClause produces one WhereClause for a scalar (non-joined,
// non-polymorphic) filter.
func buildOperatorClause(col string, op schema.SearchOperator, rawValue string) (WhereClause, error) {
	expr, args, err := operatorFragment(col, op, rawValue)
	if err != nil {
		return WhereClause{}, err
	}
	return WhereClause{Op: WhereAnd, Expr: expr, Args: args}, nil
}

// operatorFragment implements the operator semantics of §4.3:
//
//	=        NULL-aware -> IS NULL when value is null
//	like     %value%
//	in       array -> IN; scalar -> equality; null -> IS NULL
//	between  two-element array -> BETWEEN; else equality fallback
//	>,>=,<,<= literal
func operatorFragment(col string, op schema.SearchOperator, rawValue string) (string, []interface{}, error) {
	isNull := rawValue == "" || strings.EqualFold(rawValue, "null")

	switch op {
	case schema.OpEq, "":
		if isNull {
			return col + " IS NULL", nil, nil
		}
		return col + " = ?", []interface{}{rawValue}, nil
	case schema.OpLike:
		return col + " LIKE ?", []interface{}{"%" + rawValue + "%"}, nil
	case schema.OpIn:
		if isNull {
			return col + " IS NULL", nil, nil
		}
		if strings.Contains(rawValue, ",") {
			parts := strings.Split(rawValue, ",")
			placeholders := make([]string, len(parts))
			args := make([]interface{}, len(parts))
			for i, p := range parts {
				placeholders[i] = "?"
				args[i] = strings.TrimSpace(p)
			}
			return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ",")), args, nil
		}
		return col + " = ?", []interface{}{rawValue}, nil
	case schema.OpBetween:
		parts := strings.Split(rawValue, ",")
		if len(parts) == 2 {
			return col + " BETWEEN ? AND ?", []interface{}{strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])}, nil
		}
		return col + " = ?", []interface{}{rawValue}, nil
	case schema.OpGt:
		return col + " > ?", []interface{}{rawValue}, nil
	case schema.OpGte:
		return col + " >= ?", []interface{}{rawValue}, nil
	case schema.OpLt:
		return col + " < ?", []interface{}{rawValue}, nil
	case schema.OpLte:
		return col + " <= ?", []interface{}{rawValue}, nil
	default:
		return "", nil, fmt.Errorf("unsupported operator %q", op)
	}
}

// numericOrString returns v as a float64 when it parses as a number and
// unchanged otherwise. Nothing in this package calls it.
func numericOrString(v string) interface{} {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}
