package relationship

import (
	"context"
	"testing"

	"github.com/go-jsonapi/server/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	byFK    map[string][]Record // table+"|"+column -> rows
	byID    map[string][]Record // table -> rows
	links   []LinkRow
	fkCalls int
}

func (f *fakeLoader) LoadByForeignKey(_ context.Context, table, column string, ids []interface{}) ([]Record, error) {
	f.fkCalls++
	var out []Record
	for _, r := range f.byFK[table+"|"+column] {
		for _, id := range ids {
			if r[column] == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeLoader) LoadByIDs(_ context.Context, table, idColumn string, ids []interface{}) ([]Record, error) {
	var out []Record
	for _, r := range f.byID[table] {
		for _, id := range ids {
			if r[idColumn] == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeLoader) LoadLinkTable(_ context.Context, tenant, relationship, leftResource string, leftIDs []interface{}) ([]LinkRow, error) {
	var out []LinkRow
	for _, l := range f.links {
		for _, id := range leftIDs {
			if l.LeftID == id {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func testReg(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Install(
		schema.ResourceDefinition{
			Type:   "authors",
			Fields: []schema.FieldDef{{Name: "id", Type: schema.FieldID}, {Name: "name", Type: schema.FieldString}},
			Relationships: map[string]schema.RelationshipDef{
				"books": {Kind: schema.HasMany, Target: "books", ForeignKey: "author_id"},
			},
		},
		schema.ResourceDefinition{
			Type: "books",
			Fields: []schema.FieldDef{
				{Name: "id", Type: schema.FieldID}, {Name: "title", Type: schema.FieldString}, {Name: "author_id", Type: schema.FieldNumber},
			},
			Relationships: map[string]schema.RelationshipDef{
				"author": {Kind: schema.BelongsTo, Target: "authors", ForeignKey: "author_id"},
				"tags":   {Kind: schema.ManyToMany, Target: "tags", ForeignKey: "book_id", OtherKey: "tag_id", Inverse: "books"},
			},
		},
		schema.ResourceDefinition{
			Type:   "tags",
			Fields: []schema.FieldDef{{Name: "id", Type: schema.FieldID}, {Name: "label", Type: schema.FieldString}},
			Relationships: map[string]schema.RelationshipDef{
				"books": {Kind: schema.ManyToMany, Target: "books", ForeignKey: "tag_id", OtherKey: "book_id", Inverse: "tags"},
			},
		},
	))
	return reg
}

func TestEagerLoad_BelongsTo(t *testing.T) {
	reg := testReg(t)
	books, _ := reg.Get("books")

	loader := &fakeLoader{
		byID: map[string][]Record{
			"authors": {{"id": int64(1), "name": "Tolkien"}},
		},
	}

	parents := []Record{{"id": int64(10), "title": "LOTR", "author_id": int64(1)}}
	included, loaded, err := EagerLoad(context.Background(), loader, reg.Get, books, parents, []string{"author"}, "t1")
	require.NoError(t, err)

	assert.Len(t, included.All(), 1)
	rec, ok := included.Record(ResourceIdentifier{Type: "authors", ID: int64(1)})
	require.True(t, ok)
	assert.Equal(t, "Tolkien", rec["name"])

	fan := loaded["author"].FanOut[int64(10)]
	require.Len(t, fan, 1)
	assert.Equal(t, "authors", fan[0].Type)
}

func TestEagerLoad_HasManyOneQueryPerHop(t *testing.T) {
	reg := testReg(t)
	authors, _ := reg.Get("authors")

	loader := &fakeLoader{
		byFK: map[string][]Record{
			"books|author_id": {
				{"id": int64(100), "title": "LOTR", "author_id": int64(1)},
				{"id": int64(101), "title": "Hobbit", "author_id": int64(1)},
			},
		},
	}

	parents := []Record{{"id": int64(1), "name": "Tolkien"}}
	included, loaded, err := EagerLoad(context.Background(), loader, reg.Get, authors, parents, []string{"books"}, "t1")
	require.NoError(t, err)

	assert.Equal(t, 1, loader.fkCalls)
	assert.Len(t, included.All(), 2)
	assert.Len(t, loaded["books"].FanOut[int64(1)], 2)
}

func TestEagerLoad_ManyToManyThroughLinkTable(t *testing.T) {
	reg := testReg(t)
	books, _ := reg.Get("books")

	loader := &fakeLoader{
		links: []LinkRow{
			{LeftResource: "books", LeftID: int64(10), RightResource: "tags", RightID: int64(5)},
		},
		byID: map[string][]Record{
			"tags": {{"id": int64(5), "label": "fantasy"}},
		},
	}

	parents := []Record{{"id": int64(10), "title": "LOTR"}}
	included, loaded, err := EagerLoad(context.Background(), loader, reg.Get, books, parents, []string{"tags"}, "t1")
	require.NoError(t, err)

	assert.Len(t, included.All(), 1)
	assert.Len(t, loaded["tags"].FanOut[int64(10)], 1)
}

func TestEagerLoad_RejectsUnknownRelationship(t *testing.T) {
	reg := testReg(t)
	books, _ := reg.Get("books")
	loader := &fakeLoader{}

	_, _, err := EagerLoad(context.Background(), loader, reg.Get, books, nil, []string{"publisher"}, "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInclude)
}

func TestEagerLoad_RejectsTooDeepPath(t *testing.T) {
	reg := testReg(t)
	books, _ := reg.Get("books")
	loader := &fakeLoader{}

	_, _, err := EagerLoad(context.Background(), loader, reg.Get, books, nil, []string{"a.b.c.d.e.f"}, "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInclude)
}
