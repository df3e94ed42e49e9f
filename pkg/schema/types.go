// Package schema compiles declarative resource definitions into the
// immutable descriptors the query planner, relationship engine, and
// serializer operate on.
package schema

import "context"

// FieldType enumerates the scalar types a resource attribute may declare.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldDate     FieldType = "date"
	FieldDateTime FieldType = "dateTime"
	FieldTime     FieldType = "time"
	FieldTimestamp FieldType = "timestamp"
	FieldID       FieldType = "id"
	FieldBlob     FieldType = "blob"
	FieldJSON     FieldType = "json"
	FieldArray    FieldType = "array"
	FieldFile     FieldType = "file"
)

// Visibility controls whether a field is rendered in attributes.
type Visibility int

const (
	Visible Visibility = iota
	Hidden
	// HiddenNormally fields are hidden unless explicitly requested via a
	// sparse fieldset.
	HiddenNormally
)

// IDKind distinguishes auto-incrementing integer ids from opaque string ids
// (uuid, ulid, ...), per §3 "idField ... with declared type (integer-like or
// opaque string)".
type IDKind int

const (
	IDIntegerLike IDKind = iota
	IDOpaqueString
)

// Getter computes a derived value for a field from the raw stored record.
type Getter func(ctx context.Context, record map[string]interface{}) (interface{}, error)

// FieldDescriptor is the compiled shape of one resource attribute.
type FieldDescriptor struct {
	Name       string
	Type       FieldType
	Required   bool
	Nullable   bool
	DefaultTo  interface{}
	MaxLength  int
	Min        *float64
	Max        *float64
	Enum       []string
	Unique     bool
	Indexed    bool
	Hidden     Visibility
	Virtual    bool
	Search     bool
	Sort       bool
	Getter     Getter
	DependsOn  []string // fields this getter reads, for topological ordering
	Column     string   // physical storage column (defaults to Name)
}

// RelationKind enumerates the four relationship shapes of §3.
type RelationKind string

const (
	BelongsTo  RelationKind = "belongsTo"
	HasOne     RelationKind = "hasOne"
	HasMany    RelationKind = "hasMany"
	ManyToMany RelationKind = "manyToMany"
)

// RelationshipDescriptor is the compiled shape of one resource relationship.
type RelationshipDescriptor struct {
	Name       string
	Kind       RelationKind
	Target     string // target resource type
	ForeignKey string // belongsTo/hasOne/hasMany direct FK column
	Via        string // hasOne/hasMany: name of a polymorphic belongsTo relation on the target resolving back here

	// Polymorphic belongsTo: the concrete resource types the TypeColumn may
	// name, and the column pair used to resolve them.
	Polymorphic       bool
	TypeColumn        string
	IDColumn          string
	PolymorphicTargets []string

	// manyToMany.
	Through    string // link table (or canonical link table name)
	OtherKey   string
	Inverse    string
	Canonical  bool // true when using the fixed canonical link table of §6
}

// SearchOperator enumerates the comparison operators of §3/§4.3.
type SearchOperator string

const (
	OpEq      SearchOperator = "="
	OpLike    SearchOperator = "like"
	OpIn      SearchOperator = "in"
	OpBetween SearchOperator = "between"
	OpGt      SearchOperator = ">"
	OpGte     SearchOperator = ">="
	OpLt      SearchOperator = "<"
	OpLte     SearchOperator = "<="
)

// QueryModifier is the minimal query-builder surface a SearchDescriptor's
// ApplyFilter closure may use to attach a subquery-based predicate (EXISTS /
// NOT EXISTS). Implemented by planner.Builder; declared here to avoid an
// import cycle between schema and planner.
type QueryModifier interface {
	Where(query string, args ...interface{})
	WhereOr(query string, args ...interface{})
}

// ApplyFilterFunc is a descriptor-provided predicate closure (§4.3 "applyFilter").
type ApplyFilterFunc func(q QueryModifier, value interface{}) error

// SearchDescriptor is one entry of a resource's searchSchema (§3).
type SearchDescriptor struct {
	Key  string
	// ActualField is the field backing this filter key. May be a dotted
	// cross-table path ("company.name").
	ActualField string
	// OneOf lists multiple fields (possibly dotted) any of which may match;
	// used with SplitBy for token search.
	OneOf []string
	// Polymorphic search: PolymorphicField names the polymorphic
	// relationship, TargetFields names the field searched on each concrete
	// type.
	PolymorphicField string
	TargetFields     []string

	Operator    SearchOperator
	SplitBy     string
	MatchAll    bool
	ApplyFilter ApplyFilterFunc
}

// ComputedDescriptor is a non-persisted derived attribute (§3).
type ComputedDescriptor struct {
	Name         string
	Dependencies []string
	Compute      func(ctx context.Context, record map[string]interface{}) (interface{}, error)
}

// JoinHop is one LEFT JOIN in a precomputed join chain.
type JoinHop struct {
	Alias          string
	Table          string
	Relationship   *RelationshipDescriptor
	ParentColumn   string // column on the parent side of this hop (aliased)
	ChildColumn    string // column on the child/alias side of this hop
	OneToMany      bool
	PolymorphicFor string // if this hop is a conditional join for one concrete polymorphic type, the target resource type
}

// JoinChain is the precomputed join path for one dotted searchSchema field,
// resolved at install time per §4.1 "joinIndex".
type JoinChain struct {
	Path string
	Hops []JoinHop
	// FinalColumn is the physical column on the last hop's alias the filter
	// or sort actually compares against.
	FinalColumn string
	OneToMany   bool // true if any hop is one-to-many (forces DISTINCT)
}

// ResourceDescriptor is the compiled, immutable-after-install record for one
// resource type (§3).
type ResourceDescriptor struct {
	Type      string
	IDField   string
	IDKind    IDKind
	Table     string
	URLPrefix string

	Fields      map[string]*FieldDescriptor
	FieldOrder  []string // declaration order, preserved for stable output

	Relationships map[string]*RelationshipDescriptor

	SearchSchema map[string]*SearchDescriptor

	Computed map[string]*ComputedDescriptor

	DefaultSort []string

	// GetterOrder is the topological order of field getters (§4.1).
	GetterOrder []string

	// JoinIndex maps each dotted searchSchema actualField/oneOf path (and
	// include path) to its precomputed join chain (§4.1).
	JoinIndex map[string]*JoinChain

	// Meta, if set, contributes per-resource top-level `meta`.
	Meta func(ctx context.Context) (map[string]interface{}, error)
}

// BelongsToFields returns the set of attribute names excluded from
// `attributes` because they back a belongsTo foreign key (§3 invariant,
// §8 "Foreign-key exclusion").
func (r *ResourceDescriptor) BelongsToFields() map[string]bool {
	out := make(map[string]bool)
	for _, rel := range r.Relationships {
		if rel.Kind == BelongsTo && rel.ForeignKey != "" {
			out[rel.ForeignKey] = true
		}
	}
	return out
}

// URLPrefixOrType returns the resource's URL path segment: its declared
// URLPrefix, or its type name when none was set.
func (r *ResourceDescriptor) URLPrefixOrType() string {
	if r.URLPrefix != "" {
		return r.URLPrefix
	}
	return r.Type
}

// AttributeOrder returns field names in declaration order, excluding
// belongsTo foreign keys.
func (r *ResourceDescriptor) AttributeOrder() []string {
	excl := r.BelongsToFields()
	out := make([]string, 0, len(r.FieldOrder))
	for _, name := range r.FieldOrder {
		if excl[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}
