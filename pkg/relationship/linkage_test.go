package relationship

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-jsonapi/server/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	links       []LinkRow
	deletedSets []string // "tenant|rel|leftResource|leftID" of DeleteLinks calls
	fkWrites    []string // "table|idColumn|id|fkColumn|fkValue"
}

func (w *fakeWriter) InsertLink(_ context.Context, row LinkRow) error {
	w.links = append(w.links, row)
	return nil
}

func (w *fakeWriter) DeleteLinks(_ context.Context, tenant, relationship, leftResource string, leftID interface{}) error {
	w.deletedSets = append(w.deletedSets, sprint(tenant, relationship, leftResource, leftID))
	kept := w.links[:0]
	for _, l := range w.links {
		if l.Tenant == tenant && l.LeftResource == leftResource && l.LeftID == leftID {
			continue
		}
		kept = append(kept, l)
	}
	w.links = kept
	return nil
}

func (w *fakeWriter) DeleteLink(_ context.Context, row LinkRow) error {
	kept := w.links[:0]
	for _, l := range w.links {
		if !sameLink(l, row) {
			kept = append(kept, l)
		}
	}
	w.links = kept
	return nil
}

func sameLink(a, b LinkRow) bool {
	return a.Tenant == b.Tenant && a.Relationship == b.Relationship &&
		a.LeftResource == b.LeftResource && a.LeftID == b.LeftID &&
		a.RightResource == b.RightResource && a.RightID == b.RightID
}

func (w *fakeWriter) SetForeignKey(_ context.Context, table, idColumn string, id interface{}, fkColumn string, fkValue interface{}) error {
	w.fkWrites = append(w.fkWrites, sprint(table, idColumn, id, fkColumn, fkValue))
	return nil
}

func sprint(args ...interface{}) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += "|"
		}
		out += toStr(a)
	}
	return out
}

func toStr(a interface{}) string {
	if a == nil {
		return "<nil>"
	}
	switch v := a.(type) {
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func TestReplaceManyToMany_DeletesThenInserts(t *testing.T) {
	reg := testReg(t)
	books, _ := reg.Get("books")
	rel := books.Relationships["tags"]

	w := &fakeWriter{links: []LinkRow{
		Canonicalize("t1", "books", "tags", int64(10), "tags", "books", int64(1)),
	}}

	err := ReplaceManyToMany(context.Background(), w, "t1", books, rel, int64(10), []interface{}{int64(2), int64(3)})
	require.NoError(t, err)

	require.Len(t, w.deletedSets, 1)
	require.Len(t, w.links, 2)
	seen := map[interface{}]bool{}
	for _, l := range w.links {
		if l.LeftResource == "books" {
			seen[l.RightID] = true
		} else {
			seen[l.LeftID] = true
		}
	}
	assert.True(t, seen[int64(2)])
	assert.True(t, seen[int64(3)])
	assert.False(t, seen[int64(1)])
}

// TestReplacePUT_CascadesIdenticallyToDeleteThenPost pins the Open Question
// decision: a PUT carrying a manyToMany relationship produces the same
// link-table state as a prior DELETE of the whole set followed by a POST of
// the new set, even when the new set is empty.
func TestReplacePUT_CascadesIdenticallyToDeleteThenPost(t *testing.T) {
	reg := testReg(t)
	books, _ := reg.Get("books")
	rel := books.Relationships["tags"]

	seed := func() *fakeWriter {
		return &fakeWriter{links: []LinkRow{
			Canonicalize("t1", "books", "tags", int64(10), "tags", "books", int64(1)),
			Canonicalize("t1", "books", "tags", int64(10), "tags", "books", int64(2)),
		}}
	}

	viaPUT := seed()
	require.NoError(t, ReplacePUT(context.Background(), viaPUT, "t1", books, rel, int64(10), []interface{}{int64(3)}))

	viaDeletePost := seed()
	require.NoError(t, viaDeletePost.DeleteLinks(context.Background(), "t1", "tags", "books", int64(10)))
	require.NoError(t, AddManyToMany(context.Background(), viaDeletePost, "t1", books, rel, int64(10), []interface{}{int64(3)}))

	assert.ElementsMatch(t, viaDeletePost.links, viaPUT.links)

	// Empty new set: PUT must also fully clear, not no-op.
	viaPUTEmpty := seed()
	require.NoError(t, ReplacePUT(context.Background(), viaPUTEmpty, "t1", books, rel, int64(10), nil))
	assert.Empty(t, viaPUTEmpty.links)
}

func TestReplaceHasMany_ClearsDroppedAndSetsNew(t *testing.T) {
	reg := testReg(t)
	authors, _ := reg.Get("authors")
	books, _ := reg.Get("books")
	rel := authors.Relationships["books"]

	loader := &fakeLoader{byFK: map[string][]Record{
		"books|author_id": {
			{"id": int64(100), "author_id": int64(1)},
			{"id": int64(101), "author_id": int64(1)},
		},
	}}
	w := &fakeWriter{}

	err := ReplaceHasMany(context.Background(), loader, w, authors, books, rel, int64(1), []interface{}{int64(101), int64(102)})
	require.NoError(t, err)

	assert.Contains(t, w.fkWrites, sprint("books", "id", int64(100), "author_id", nil))
	assert.Contains(t, w.fkWrites, sprint("books", "id", int64(101), "author_id", int64(1)))
	assert.Contains(t, w.fkWrites, sprint("books", "id", int64(102), "author_id", int64(1)))
}

func TestSetPolymorphicBelongsTo_RejectsUnknownTargetType(t *testing.T) {
	reg := schema.NewRegistry()
	require.NoError(t, reg.Install(
		schema.ResourceDefinition{Type: "users", Fields: []schema.FieldDef{{Name: "id", Type: schema.FieldID}}},
		schema.ResourceDefinition{
			Type:   "comments",
			Fields: []schema.FieldDef{{Name: "id", Type: schema.FieldID}, {Name: "commentable_type", Type: schema.FieldString}, {Name: "commentable_id", Type: schema.FieldNumber}},
			Relationships: map[string]schema.RelationshipDef{
				"commentable": {Kind: schema.BelongsTo, Polymorphic: true, PolymorphicTargets: []string{"users"}, TypeColumn: "commentable_type", IDColumn: "commentable_id"},
			},
		},
	))
	comments, _ := reg.Get("comments")
	rel := comments.Relationships["commentable"]
	w := &fakeWriter{}

	err := SetPolymorphicBelongsTo(context.Background(), w, comments, rel, int64(1), "posts", int64(9))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not among its polymorphic targets")

	require.NoError(t, SetPolymorphicBelongsTo(context.Background(), w, comments, rel, int64(1), "users", int64(9)))
}
