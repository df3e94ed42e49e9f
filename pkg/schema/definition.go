package schema

import "context"

// The *Def types are the uncompiled, author-facing shape of a resource
// definition (§4.1 "Inputs: a resource definition"). Compile turns them into
// the immutable *Descriptor types above.

type FieldDef struct {
	Name      string
	Type      FieldType
	Required  bool
	Nullable  bool
	DefaultTo interface{}
	MaxLength int
	Min       *float64
	Max       *float64
	Enum      []string
	Unique    bool
	Indexed   bool
	Hidden    Visibility
	Virtual   bool
	Search    bool
	Sort      bool
	Getter    Getter
	DependsOn []string
	Column    string
}

type RelationshipDef struct {
	Name               string
	Kind               RelationKind
	Target             string
	ForeignKey         string
	Via                string
	Polymorphic        bool
	TypeColumn         string
	IDColumn           string
	PolymorphicTargets []string
	Through            string
	OtherKey           string
	Inverse            string
	Canonical          bool
}

type SearchDef struct {
	Key              string
	ActualField      string
	OneOf            []string
	PolymorphicField string
	TargetFields     []string
	Operator         SearchOperator
	SplitBy          string
	MatchAll         bool
	ApplyFilter      ApplyFilterFunc
}

type ComputedDef struct {
	Name         string
	Dependencies []string
	Compute      func(ctx context.Context, record map[string]interface{}) (interface{}, error)
}

// ResourceDefinition is the author-facing, uncompiled resource definition.
type ResourceDefinition struct {
	Type      string
	IDField   string
	IDKind    IDKind
	Table     string
	URLPrefix string

	Fields        []FieldDef
	Relationships map[string]RelationshipDef
	SearchSchema  map[string]SearchDef
	Computed      map[string]ComputedDef
	DefaultSort   []string

	Meta func(ctx context.Context) (map[string]interface{}, error)
}
