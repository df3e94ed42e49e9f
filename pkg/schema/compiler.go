package schema

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds compiled resource descriptors, installed once at startup
// and treated as immutable while serving (§5 "Schema descriptors are
// installed once at startup... installation is not concurrent with
// serving").
type Registry struct {
	mu        sync.RWMutex
	raw       map[string]ResourceDefinition
	resources map[string]*ResourceDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		raw:       make(map[string]ResourceDefinition),
		resources: make(map[string]*ResourceDescriptor),
	}
}

// Get returns the compiled descriptor for a resource type.
func (r *Registry) Get(resourceType string) (*ResourceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.resources[resourceType]
	return d, ok
}

// All returns every compiled descriptor, keyed by type.
func (r *Registry) All() map[string]*ResourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*ResourceDescriptor, len(r.resources))
	for k, v := range r.resources {
		out[k] = v
	}
	return out
}

// Install compiles and registers one or more resource definitions as a
// single atomic batch: relationship targets may reference any definition in
// the batch (forward references are fine) or any resource already
// registered. On any error nothing is registered (§4.1 "registers the
// resource under api.resources[type]").
func (r *Registry) Install(defs ...ResourceDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch := make(map[string]ResourceDefinition, len(defs))
	for _, d := range defs {
		if d.Type == "" {
			return invalid("", "resource definition missing type")
		}
		if _, exists := batch[d.Type]; exists {
			return invalid(d.Type, "duplicate resource type in install batch")
		}
		batch[d.Type] = d
	}

	resolve := func(t string) (ResourceDefinition, bool) {
		if d, ok := batch[t]; ok {
			return d, true
		}
		if d, ok := r.raw[t]; ok {
			return d, true
		}
		return ResourceDefinition{}, false
	}

	compiled := make(map[string]*ResourceDescriptor, len(batch))
	for _, def := range batch {
		desc, err := compileOne(def, resolve)
		if err != nil {
			return err
		}
		compiled[def.Type] = desc
	}

	// Second pass: join indices need every resource's descriptor (fields,
	// indexed flags) available, including siblings compiled in this same
	// batch, so build them after every descriptor in the batch exists.
	lookup := func(t string) (*ResourceDescriptor, bool) {
		if d, ok := compiled[t]; ok {
			return d, true
		}
		d, ok := r.resources[t]
		return d, ok
	}
	for _, def := range batch {
		desc := compiled[def.Type]
		if err := buildJoinIndex(desc, def, lookup); err != nil {
			return err
		}
		if err := validateManyToManyInverses(desc, lookup); err != nil {
			return err
		}
	}

	for t, def := range batch {
		r.raw[t] = def
	}
	for t, desc := range compiled {
		r.resources[t] = desc
	}
	return nil
}

func compileOne(def ResourceDefinition, resolve func(string) (ResourceDefinition, bool)) (*ResourceDescriptor, error) {
	idField := def.IDField
	if idField == "" {
		idField = "id"
	}
	table := def.Table
	if table == "" {
		table = def.Type
	}

	desc := &ResourceDescriptor{
		Type:          def.Type,
		IDField:       idField,
		IDKind:        def.IDKind,
		Table:         table,
		URLPrefix:     def.URLPrefix,
		Fields:        make(map[string]*FieldDescriptor),
		Relationships: make(map[string]*RelationshipDescriptor),
		SearchSchema:  make(map[string]*SearchDescriptor),
		Computed:      make(map[string]*ComputedDescriptor),
		DefaultSort:   def.DefaultSort,
		JoinIndex:     make(map[string]*JoinChain),
		Meta:          def.Meta,
	}
	if len(desc.DefaultSort) == 0 {
		desc.DefaultSort = []string{idField}
	}

	seenNames := make(map[string]bool)

	for _, f := range def.Fields {
		if f.Name == "" {
			return nil, invalid(def.Type, "field with empty name")
		}
		if seenNames[f.Name] {
			return nil, invalid(def.Type, "duplicate field name %q", f.Name)
		}
		seenNames[f.Name] = true
		col := f.Column
		if col == "" {
			col = f.Name
		}
		desc.Fields[f.Name] = &FieldDescriptor{
			Name: f.Name, Type: f.Type, Required: f.Required, Nullable: f.Nullable,
			DefaultTo: f.DefaultTo, MaxLength: f.MaxLength, Min: f.Min, Max: f.Max,
			Enum: f.Enum, Unique: f.Unique, Indexed: f.Indexed, Hidden: f.Hidden,
			Virtual: f.Virtual, Search: f.Search, Sort: f.Sort, Getter: f.Getter,
			DependsOn: f.DependsOn, Column: col,
		}
		desc.FieldOrder = append(desc.FieldOrder, f.Name)
	}

	// Relationship target resolution (§3 invariant: "Relationship targets
	// resolve at install time").
	for name, rd := range def.Relationships {
		if seenNames[name] {
			return nil, invalid(def.Type, "relationship name %q collides with a field", name)
		}
		rel := &RelationshipDescriptor{
			Name: name, Kind: rd.Kind, Target: rd.Target, ForeignKey: rd.ForeignKey,
			Via: rd.Via, Polymorphic: rd.Polymorphic, TypeColumn: rd.TypeColumn,
			IDColumn: rd.IDColumn, PolymorphicTargets: rd.PolymorphicTargets,
			Through: rd.Through, OtherKey: rd.OtherKey, Inverse: rd.Inverse,
			Canonical: rd.Canonical,
		}
		switch rel.Kind {
		case BelongsTo:
			if rel.Polymorphic {
				if len(rel.PolymorphicTargets) == 0 {
					return nil, invalid(def.Type, "polymorphic belongsTo relationship %q needs PolymorphicTargets", name)
				}
				for _, t := range rel.PolymorphicTargets {
					if _, ok := resolve(t); !ok {
						return nil, invalid(def.Type, "relationship %q: polymorphic target %q does not resolve", name, t)
					}
				}
				if rel.TypeColumn == "" || rel.IDColumn == "" {
					return nil, invalid(def.Type, "polymorphic belongsTo relationship %q needs TypeColumn and IDColumn", name)
				}
			} else {
				if rel.Target == "" {
					return nil, invalid(def.Type, "relationship %q missing target", name)
				}
				if _, ok := resolve(rel.Target); !ok {
					return nil, invalid(def.Type, "relationship %q: target %q does not resolve", name, rel.Target)
				}
				if rel.ForeignKey == "" {
					return nil, invalid(def.Type, "belongsTo relationship %q missing foreignKey", name)
				}
			}
		case HasOne, HasMany:
			if rel.Target == "" {
				return nil, invalid(def.Type, "relationship %q missing target", name)
			}
			if _, ok := resolve(rel.Target); !ok {
				return nil, invalid(def.Type, "relationship %q: target %q does not resolve", name, rel.Target)
			}
			if rel.ForeignKey == "" && rel.Via == "" {
				return nil, invalid(def.Type, "relationship %q needs foreignKey or via", name)
			}
		case ManyToMany:
			if rel.Target == "" {
				return nil, invalid(def.Type, "relationship %q missing target", name)
			}
			if _, ok := resolve(rel.Target); !ok {
				return nil, invalid(def.Type, "relationship %q: target %q does not resolve", name, rel.Target)
			}
			if rel.ForeignKey == "" || rel.OtherKey == "" {
				return nil, invalid(def.Type, "manyToMany relationship %q needs foreignKey and otherKey", name)
			}
		default:
			return nil, invalid(def.Type, "relationship %q has unknown kind %q", name, rel.Kind)
		}
		desc.Relationships[name] = rel
	}

	for key, sd := range def.SearchSchema {
		desc.SearchSchema[key] = &SearchDescriptor{
			Key: key, ActualField: sd.ActualField, OneOf: sd.OneOf,
			PolymorphicField: sd.PolymorphicField, TargetFields: sd.TargetFields,
			Operator: sd.Operator, SplitBy: sd.SplitBy, MatchAll: sd.MatchAll,
			ApplyFilter: sd.ApplyFilter,
		}
	}

	for name, cd := range def.Computed {
		if seenNames[name] {
			return nil, invalid(def.Type, "computed field %q collides with a stored or virtual field", name)
		}
		if _, isRel := desc.Relationships[name]; isRel {
			return nil, invalid(def.Type, "computed field %q collides with a relationship", name)
		}
		desc.Computed[name] = &ComputedDescriptor{Name: name, Dependencies: cd.Dependencies, Compute: cd.Compute}
	}

	order, err := topoSortGetters(desc)
	if err != nil {
		return nil, err
	}
	desc.GetterOrder = order

	return desc, nil
}

// topoSortGetters orders field getters so each runs after every field it
// depends on (§4.1 "getterOrder"), failing on a cycle.
func topoSortGetters(desc *ResourceDescriptor) ([]string, error) {
	withGetter := make([]string, 0)
	for _, name := range desc.FieldOrder {
		if desc.Fields[name].Getter != nil {
			withGetter = append(withGetter, name)
		}
	}
	if len(withGetter) == 0 {
		return nil, nil
	}

	visited := make(map[string]int) // 0=unvisited 1=visiting 2=done
	var order []string
	var visit func(name string) error
	visit = func(name string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return invalid(desc.Type, "cyclic getter dependency involving field %q", name)
		}
		visited[name] = 1
		if f, ok := desc.Fields[name]; ok {
			for _, dep := range f.DependsOn {
				if _, isField := desc.Fields[dep]; isField {
					if err := visit(dep); err != nil {
						return err
					}
					continue
				}
				if col, ok := jsonDependencyColumn(desc, dep); ok {
					if err := visit(col); err != nil {
						return err
					}
				}
			}
		}
		visited[name] = 2
		order = append(order, name)
		return nil
	}
	for _, name := range withGetter {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// buildJoinIndex resolves every dotted searchSchema path into a typed
// JoinChain, failing with schema_invalid when a hop doesn't name a known
// relationship or the terminal field isn't indexed (§3 invariant, §4.1
// "joinIndex").
func buildJoinIndex(desc *ResourceDescriptor, def ResourceDefinition, lookup func(string) (*ResourceDescriptor, bool)) error {
	addPath := func(path string) error {
		if !strings.Contains(path, ".") {
			return nil
		}
		if _, exists := desc.JoinIndex[path]; exists {
			return nil
		}
		chain, err := resolveJoinPath(desc, path, lookup)
		if err != nil {
			return err
		}
		desc.JoinIndex[path] = chain
		return nil
	}

	for _, sd := range desc.SearchSchema {
		if sd.ActualField != "" {
			if err := addPath(sd.ActualField); err != nil {
				return err
			}
		}
		for _, f := range sd.OneOf {
			if err := addPath(f); err != nil {
				return err
			}
		}
	}
	return nil
}

func resolveJoinPath(root *ResourceDescriptor, path string, lookup func(string) (*ResourceDescriptor, bool)) (*JoinChain, error) {
	parts := strings.Split(path, ".")
	field := parts[len(parts)-1]
	relNames := parts[:len(parts)-1]

	chain := &JoinChain{Path: path}
	current := root
	aliasPrefix := root.Table
	for i, relName := range relNames {
		rel, ok := current.Relationships[relName]
		if !ok {
			return nil, invalid(root.Type, "searchSchema path %q: %q is not a relationship on %q", path, relName, current.Type)
		}
		target, ok := lookup(rel.Target)
		if !ok {
			return nil, invalid(root.Type, "searchSchema path %q: relationship target %q unresolved", path, rel.Target)
		}
		alias := fmt.Sprintf("%s__%s", aliasPrefix, relName)
		oneToMany := rel.Kind == HasMany || rel.Kind == ManyToMany
		hop := JoinHop{
			Alias: alias, Table: target.Table, Relationship: rel, OneToMany: oneToMany,
		}
		switch rel.Kind {
		case BelongsTo:
			hop.ParentColumn = rel.ForeignKey
			hop.ChildColumn = target.IDField
		case HasOne, HasMany:
			hop.ParentColumn = root.IDField
			hop.ChildColumn = rel.ForeignKey
		case ManyToMany:
			hop.ParentColumn = root.IDField
			hop.ChildColumn = rel.ForeignKey // join resolved through Through table by the planner
		}
		chain.Hops = append(chain.Hops, hop)
		if oneToMany {
			chain.OneToMany = true
		}
		current = target
		aliasPrefix = alias
		_ = i
	}

	fieldDesc, ok := current.Fields[field]
	if !ok {
		return nil, invalid(root.Type, "searchSchema path %q: field %q not found on %q", path, field, current.Type)
	}
	if !fieldDesc.Indexed {
		return nil, invalid(root.Type, "searchSchema path %q: terminal field %q on %q is not indexed", path, field, current.Type)
	}
	chain.FinalColumn = fieldDesc.Column
	return chain, nil
}

// validateManyToManyInverses enforces "Each manyToMany has at most one
// inverse; if declared, the pair shares a canonical ordering" (§3).
func validateManyToManyInverses(desc *ResourceDescriptor, lookup func(string) (*ResourceDescriptor, bool)) error {
	for name, rel := range desc.Relationships {
		if rel.Kind != ManyToMany || rel.Inverse == "" {
			continue
		}
		target, ok := lookup(rel.Target)
		if !ok {
			return invalid(desc.Type, "manyToMany relationship %q: target %q unresolved", name, rel.Target)
		}
		inv, ok := target.Relationships[rel.Inverse]
		if !ok || inv.Kind != ManyToMany {
			return invalid(desc.Type, "manyToMany relationship %q: inverse %q not found on %q", name, rel.Inverse, rel.Target)
		}
		if inv.Inverse != "" && inv.Inverse != name {
			return invalid(desc.Type, "manyToMany relationship %q: inverse %q on %q points elsewhere (%q)", name, rel.Inverse, rel.Target, inv.Inverse)
		}
	}
	return nil
}
