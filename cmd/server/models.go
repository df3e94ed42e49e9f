package main

import (
	"github.com/go-jsonapi/server/pkg/modelregistry"
	"github.com/go-jsonapi/server/pkg/schema"
	"github.com/go-jsonapi/server/pkg/spectypes"
)

// Domain models for the sample deployment. Each is a plain GORM-tagged
// struct, the same shape the teacher's testmodels package registers, from
// which schema.FromStruct derives a ResourceDefinition instead of hand
// declaring every field. Timestamp/UUID/JSON columns use the spectypes
// nullable scalars rather than bare time.Time/string/[]byte so FromStruct
// exercises its driver.Valuer field-kind mapping, not just plain Go types.

type Author struct {
	ID        spectypes.SqlUUID      `gorm:"column:id;primaryKey" bun:"id,pk"`
	Name      spectypes.SqlString    `gorm:"column:name" bun:"name"`
	CreatedAt spectypes.SqlTimeStamp `gorm:"column:created_at" bun:"created_at"`
}

type Book struct {
	ID         spectypes.SqlUUID      `gorm:"column:id;primaryKey" bun:"id,pk"`
	Title      spectypes.SqlString    `gorm:"column:title" bun:"title"`
	AuthorID   spectypes.SqlUUID      `gorm:"column:author_id" bun:"author_id"`
	Publisher  spectypes.SqlString    `gorm:"column:publisher" bun:"publisher"`
	ReleasedOn spectypes.SqlDate      `gorm:"column:released_on" bun:"released_on"`
	Metadata   spectypes.SqlJSONB     `gorm:"column:metadata" bun:"metadata"`
	CreatedAt  spectypes.SqlTimeStamp `gorm:"column:created_at" bun:"created_at"`
}

type Tag struct {
	ID   spectypes.SqlUUID   `gorm:"column:id;primaryKey" bun:"id,pk"`
	Name spectypes.SqlString `gorm:"column:name" bun:"name"`
}

func resourceDefinitions() []schema.ResourceDefinition {
	authors := schema.FromStruct(&Author{}, schema.ResourceDefinition{
		Type:        "authors",
		Table:       "authors",
		DefaultSort: []string{"name"},
		SearchSchema: map[string]schema.SearchDef{
			"name": {Key: "name", ActualField: "name", Operator: schema.OpLike},
		},
	})

	books := schema.FromStruct(&Book{}, schema.ResourceDefinition{
		Type:        "books",
		Table:       "books",
		DefaultSort: []string{"title"},
		Relationships: map[string]schema.RelationshipDef{
			"author": {Kind: schema.BelongsTo, Target: "authors", ForeignKey: "author_id"},
			"tags": {
				Kind: schema.ManyToMany, Target: "tags",
				Through: "book_tags", OtherKey: "tag_id", Canonical: true,
			},
		},
		SearchSchema: map[string]schema.SearchDef{
			"title": {Key: "title", ActualField: "title", Operator: schema.OpLike},
		},
	})

	tags := schema.FromStruct(&Tag{}, schema.ResourceDefinition{
		Type:  "tags",
		Table: "tags",
		Relationships: map[string]schema.RelationshipDef{
			"books": {Kind: schema.ManyToMany, Target: "books", Through: "book_tags", OtherKey: "book_id"},
		},
	})

	return []schema.ResourceDefinition{authors, books, tags}
}

// registerModels populates the package-level model registry the GORM/Bun/
// pgSQL adapters and pkg/reflection consult when they need the concrete Go
// type behind a table name (scanning relationship rows, resolving struct
// tags for a table the planner only knows as a string).
func registerModels() error {
	for table, model := range map[string]interface{}{
		"authors": &Author{},
		"books":   &Book{},
		"tags":    &Tag{},
	} {
		if err := modelregistry.RegisterModel(model, table); err != nil {
			return err
		}
	}
	return nil
}
