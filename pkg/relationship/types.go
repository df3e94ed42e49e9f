// Package relationship implements eager loading (the `include` query
// parameter), relationship linkage writes, and the canonical many-to-many
// link table (§4.4 "Relationship Engine").
package relationship

import (
	"context"

	"github.com/go-jsonapi/server/pkg/schema"
)

// Record is one loaded resource row, keyed by physical column name, the
// shape every loader and the jsonapi serializer exchange.
type Record = map[string]interface{}

// ResourceIdentifier names one concrete resource instance (§3 "(type, id)
// pairs"), used for relationship linkage payloads and the `included` dedup
// set.
type ResourceIdentifier struct {
	Type string
	ID   interface{}
}

// Loaded is the result of eager-loading one include path for one set of
// parent rows: the records themselves plus, for every relationship kind, the
// parent-id -> child-ids fan-out needed to attach linkage.
type Loaded struct {
	Path       string
	TargetType string
	Records    []Record
	// FanOut maps a parent row's id to the ordered list of loaded child rows
	// belonging to it, by child record identity (type, id).
	FanOut map[interface{}][]ResourceIdentifier
}

// Lookup resolves a resource type to its compiled descriptor.
type Lookup func(resourceType string) (*schema.ResourceDescriptor, bool)

// Loader executes the actual SELECT for one eager-load hop. The jsonapi
// handler supplies an implementation backed by a common.Database; tests use
// an in-memory fake.
type Loader interface {
	// LoadByForeignKey fetches every row of table where column is one of ids,
	// returning rows keyed by their physical column names.
	LoadByForeignKey(ctx context.Context, table string, column string, ids []interface{}) ([]Record, error)
	// LoadByIDs fetches rows of table whose idColumn is one of ids (used for
	// belongsTo/hasOne-by-id and manyToMany's second hop).
	LoadByIDs(ctx context.Context, table string, idColumn string, ids []interface{}) ([]Record, error)
	// LoadLinkTable fetches canonical-link-table rows for one relationship
	// name between a set of left ids and a resource/relationship pair
	// (§6 "canonical link table").
	LoadLinkTable(ctx context.Context, tenant string, relationship string, leftResource string, leftIDs []interface{}) ([]LinkRow, error)
}

// Writer performs relationship linkage mutations (§4.4 "Linkage writes").
type Writer interface {
	InsertLink(ctx context.Context, row LinkRow) error
	DeleteLinks(ctx context.Context, tenant, relationship, leftResource string, leftID interface{}) error
	DeleteLink(ctx context.Context, row LinkRow) error
	SetForeignKey(ctx context.Context, table, idColumn string, id interface{}, fkColumn string, fkValue interface{}) error
}

const maxIncludeDepth = 5
