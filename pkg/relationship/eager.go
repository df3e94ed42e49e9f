package relationship

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-jsonapi/server/pkg/schema"
)

// Included is the flattened, deduplicated set of resources an eager-load
// pass produced, ready for the jsonapi serializer's top-level `included`
// array (§3 "(type, id) pairs ... deduplicated").
type Included struct {
	order   []ResourceIdentifier
	records map[ResourceIdentifier]Record
}

func newIncluded() *Included {
	return &Included{records: make(map[ResourceIdentifier]Record)}
}

func (inc *Included) add(id ResourceIdentifier, rec Record) {
	if _, exists := inc.records[id]; exists {
		return
	}
	inc.records[id] = rec
	inc.order = append(inc.order, id)
}

// All returns the deduplicated (type,id) identifiers in first-seen order;
// Record gives the row for each one.
func (inc *Included) All() []ResourceIdentifier { return inc.order }

// Record returns the loaded row for one resource identifier.
func (inc *Included) Record(id ResourceIdentifier) (Record, bool) {
	r, ok := inc.records[id]
	return r, ok
}

// EagerLoad walks every validated include path against a set of already-
// loaded parent rows, issuing one query per unique (target type, hop) pair
// regardless of how many parent rows need it (§4.4 "one query per target
// type per hop, not per parent row"), and returns the deduplicated included
// set plus a per-path fan-out so the serializer can build `relationships`
// linkage for every parent row.
func EagerLoad(ctx context.Context, loader Loader, lookup Lookup, root *schema.ResourceDescriptor, parents []Record, paths []string, tenant string) (*Included, map[string]*Loaded, error) {
	included := newIncluded()
	results := make(map[string]*Loaded, len(paths))

	for _, path := range paths {
		hops := strings.Split(path, ".")
		if len(hops) > maxIncludeDepth {
			return nil, nil, fmt.Errorf("include %q exceeds max depth: %w", path, errInvalidInclude)
		}
		loaded, err := loadPath(ctx, loader, lookup, root, parents, hops, tenant, included)
		if err != nil {
			return nil, nil, fmt.Errorf("include %q: %w", path, err)
		}
		results[path] = loaded
	}
	return included, results, nil
}

// loadPath resolves one dotted include path hop by hop, each hop fanning
// the previous hop's loaded rows out into the next LoadByForeignKey/
// LoadByIDs/LoadLinkTable call.
func loadPath(ctx context.Context, loader Loader, lookup Lookup, root *schema.ResourceDescriptor, parents []Record, hops []string, tenant string, included *Included) (*Loaded, error) {
	current := root
	currentRows := parents

	var loaded *Loaded
	for _, hopName := range hops {
		rel, ok := current.Relationships[hopName]
		if !ok {
			return nil, fmt.Errorf("%q is not a relationship on %q: %w", hopName, current.Type, errInvalidInclude)
		}

		var err error
		loaded, currentRows, current, err = loadHop(ctx, loader, lookup, current, currentRows, rel, tenant, included)
		if err != nil {
			return nil, err
		}
	}
	return loaded, nil
}

func loadHop(ctx context.Context, loader Loader, lookup Lookup, parent *schema.ResourceDescriptor, parentRows []Record, rel *schema.RelationshipDescriptor, tenant string, included *Included) (*Loaded, []Record, *schema.ResourceDescriptor, error) {
	switch rel.Kind {
	case schema.BelongsTo:
		if rel.Polymorphic {
			return loadPolymorphicBelongsTo(ctx, loader, lookup, parent, parentRows, rel, included)
		}
		return loadBelongsTo(ctx, loader, lookup, parent, parentRows, rel, included)
	case schema.HasOne, schema.HasMany:
		return loadHasMany(ctx, loader, lookup, parent, parentRows, rel, included)
	case schema.ManyToMany:
		return loadManyToMany(ctx, loader, lookup, parent, parentRows, rel, tenant, included)
	default:
		return nil, nil, nil, fmt.Errorf("unsupported relationship kind %q", rel.Kind)
	}
}

func loadBelongsTo(ctx context.Context, loader Loader, lookup Lookup, parent *schema.ResourceDescriptor, parentRows []Record, rel *schema.RelationshipDescriptor, included *Included) (*Loaded, []Record, *schema.ResourceDescriptor, error) {
	target, ok := lookup(rel.Target)
	if !ok {
		return nil, nil, nil, fmt.Errorf("relationship target %q unresolved", rel.Target)
	}

	ids := uniqueNonNil(collectColumn(parentRows, rel.ForeignKey))
	if len(ids) == 0 {
		return &Loaded{Path: rel.Name, TargetType: target.Type, FanOut: map[interface{}][]ResourceIdentifier{}}, nil, target, nil
	}

	rows, err := loader.LoadByIDs(ctx, target.Table, target.IDField, ids)
	if err != nil {
		return nil, nil, nil, err
	}

	loaded := &Loaded{Path: rel.Name, TargetType: target.Type, Records: rows, FanOut: make(map[interface{}][]ResourceIdentifier)}
	for _, r := range rows {
		id := r[target.IDField]
		ident := ResourceIdentifier{Type: target.Type, ID: id}
		included.add(ident, r)
	}
	for _, pr := range parentRows {
		fk := pr[rel.ForeignKey]
		if fk == nil {
			continue
		}
		ownerID := pr[parent.IDField]
		loaded.FanOut[ownerID] = append(loaded.FanOut[ownerID], ResourceIdentifier{Type: target.Type, ID: fk})
	}
	return loaded, rows, target, nil
}

// loadPolymorphicBelongsTo groups parent rows by their TypeColumn value and
// issues one LoadByIDs per concrete target type actually present in the
// parent set (§4.4 "polymorphic ... resolved per concrete type present").
func loadPolymorphicBelongsTo(ctx context.Context, loader Loader, lookup Lookup, parent *schema.ResourceDescriptor, parentRows []Record, rel *schema.RelationshipDescriptor, included *Included) (*Loaded, []Record, *schema.ResourceDescriptor, error) {
	byType := make(map[string][]interface{})
	for _, r := range parentRows {
		t, _ := r[rel.TypeColumn].(string)
		id := r[rel.IDColumn]
		if t == "" || id == nil {
			continue
		}
		byType[t] = append(byType[t], id)
	}

	loaded := &Loaded{Path: rel.Name, FanOut: make(map[interface{}][]ResourceIdentifier)}
	var allRows []Record
	var lastTarget *schema.ResourceDescriptor
	for t, ids := range byType {
		target, ok := lookup(t)
		if !ok {
			return nil, nil, nil, fmt.Errorf("polymorphic target %q unresolved", t)
		}
		lastTarget = target
		rows, err := loader.LoadByIDs(ctx, target.Table, target.IDField, uniqueNonNil(ids))
		if err != nil {
			return nil, nil, nil, err
		}
		for _, r := range rows {
			ident := ResourceIdentifier{Type: target.Type, ID: r[target.IDField]}
			included.add(ident, r)
		}
		allRows = append(allRows, rows...)
	}
	for _, pr := range parentRows {
		t, _ := pr[rel.TypeColumn].(string)
		id := pr[rel.IDColumn]
		if t == "" || id == nil {
			continue
		}
		ownerID := pr[parent.IDField]
		loaded.FanOut[ownerID] = append(loaded.FanOut[ownerID], ResourceIdentifier{Type: t, ID: id})
	}
	loaded.Records = allRows
	return loaded, allRows, lastTarget, nil
}

func loadHasMany(ctx context.Context, loader Loader, lookup Lookup, parent *schema.ResourceDescriptor, parentRows []Record, rel *schema.RelationshipDescriptor, included *Included) (*Loaded, []Record, *schema.ResourceDescriptor, error) {
	target, ok := lookup(rel.Target)
	if !ok {
		return nil, nil, nil, fmt.Errorf("relationship target %q unresolved", rel.Target)
	}

	ids := uniqueNonNil(collectColumn(parentRows, parent.IDField))
	if len(ids) == 0 {
		return &Loaded{Path: rel.Name, TargetType: target.Type, FanOut: map[interface{}][]ResourceIdentifier{}}, nil, target, nil
	}

	fkColumn := rel.ForeignKey
	if fkColumn == "" {
		// Polymorphic via: the target's belongsTo TypeColumn/IDColumn pair
		// resolves back to parent; the loader still filters on the IDColumn,
		// and the caller is expected to additionally constrain TypeColumn via
		// the Via relationship's TypeColumn at the transport layer.
		if viaRel, ok := target.Relationships[rel.Via]; ok {
			fkColumn = viaRel.IDColumn
		}
	}

	rows, err := loader.LoadByForeignKey(ctx, target.Table, fkColumn, ids)
	if err != nil {
		return nil, nil, nil, err
	}

	loaded := &Loaded{Path: rel.Name, TargetType: target.Type, Records: rows, FanOut: make(map[interface{}][]ResourceIdentifier)}
	for _, r := range rows {
		ident := ResourceIdentifier{Type: target.Type, ID: r[target.IDField]}
		included.add(ident, r)
		fk := r[fkColumn]
		loaded.FanOut[fk] = append(loaded.FanOut[fk], ident)
	}
	return loaded, rows, target, nil
}

// loadManyToMany joins through the canonical (or per-relationship) link
// table, then loads the right-hand resources by id (§4.4, §6).
func loadManyToMany(ctx context.Context, loader Loader, lookup Lookup, parent *schema.ResourceDescriptor, parentRows []Record, rel *schema.RelationshipDescriptor, tenant string, included *Included) (*Loaded, []Record, *schema.ResourceDescriptor, error) {
	target, ok := lookup(rel.Target)
	if !ok {
		return nil, nil, nil, fmt.Errorf("relationship target %q unresolved", rel.Target)
	}

	leftIDs := uniqueNonNil(collectColumn(parentRows, parent.IDField))
	if len(leftIDs) == 0 {
		return &Loaded{Path: rel.Name, TargetType: target.Type, FanOut: map[interface{}][]ResourceIdentifier{}}, nil, target, nil
	}

	links, err := loader.LoadLinkTable(ctx, tenant, rel.Name, parent.Type, leftIDs)
	if err != nil {
		return nil, nil, nil, err
	}

	rightIDsByLeft := make(map[interface{}][]interface{})
	var rightIDs []interface{}
	for _, l := range links {
		rightIDsByLeft[l.LeftID] = append(rightIDsByLeft[l.LeftID], l.RightID)
		rightIDs = append(rightIDs, l.RightID)
	}
	rightIDs = uniqueNonNil(rightIDs)

	var rows []Record
	if len(rightIDs) > 0 {
		rows, err = loader.LoadByIDs(ctx, target.Table, target.IDField, rightIDs)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	for _, r := range rows {
		included.add(ResourceIdentifier{Type: target.Type, ID: r[target.IDField]}, r)
	}

	loaded := &Loaded{Path: rel.Name, TargetType: target.Type, Records: rows, FanOut: make(map[interface{}][]ResourceIdentifier)}
	for leftID, rids := range rightIDsByLeft {
		for _, rid := range rids {
			loaded.FanOut[leftID] = append(loaded.FanOut[leftID], ResourceIdentifier{Type: target.Type, ID: rid})
		}
	}
	return loaded, rows, target, nil
}

func collectColumn(rows []Record, column string) []interface{} {
	out := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, r[column])
	}
	return out
}

func uniqueNonNil(vals []interface{}) []interface{} {
	seen := make(map[interface{}]bool, len(vals))
	out := make([]interface{}, 0, len(vals))
	for _, v := range vals {
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
