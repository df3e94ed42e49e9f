package jsonapi

import (
	"context"
	"fmt"

	"github.com/go-jsonapi/server/pkg/pagination"
	"github.com/go-jsonapi/server/pkg/relationship"
	"github.com/go-jsonapi/server/pkg/schema"
)

// Document is a top-level JSON:API response (§4.5).
type Document struct {
	Data     interface{}            `json:"data"`
	Included []Resource             `json:"included,omitempty"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
	Links    Links                  `json:"links,omitempty"`
	JSONAPI  *JSONAPIObject         `json:"jsonapi,omitempty"`
}

// JSONAPIObject advertises the implemented version and media-type
// extension/profile tolerance (§9 supplemented feature).
type JSONAPIObject struct {
	Version string   `json:"version"`
	Ext     []string `json:"ext,omitempty"`
	Profile []string `json:"profile,omitempty"`
}

// Resource is one JSON:API resource object.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    map[string]interface{}  `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Links         Links                   `json:"links,omitempty"`
	Meta          map[string]interface{}  `json:"meta,omitempty"`
}

// Relationship is a JSON:API relationship object.
type Relationship struct {
	Data  interface{}            `json:"data"` // ResourceIdentifier, []ResourceIdentifier, or nil
	Links Links                  `json:"links,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// ResourceIdentifier is a minimal (type, id) reference.
type ResourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Links is a generic link map (self/first/prev/next/last/related, ...).
type Links map[string]string

// ErrorDocument is a JSON:API error response (§7).
type ErrorDocument struct {
	Errors []Error `json:"errors"`
}

// Error is a single JSON:API error object.
type Error struct {
	Status string       `json:"status"`
	Code   string       `json:"code"`
	Title  string        `json:"title"`
	Detail string        `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

// ErrorSource points at the offending part of the request document.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// RequestDocument is a JSON:API create/update request body.
type RequestDocument struct {
	Data RequestResource `json:"data"`
}

// RequestResource is the resource object inside a request body. ID is a
// pointer so client-generated ids are distinguishable from "not provided"
// (§9 supplemented feature: client-generated resource ids).
type RequestResource struct {
	Type          string                         `json:"type"`
	ID            *string                        `json:"id,omitempty"`
	Attributes    map[string]interface{}         `json:"attributes"`
	Relationships map[string]RequestRelationship `json:"relationships,omitempty"`
}

// RequestRelationship is a relationship entry inside a request body.
type RequestRelationship struct {
	Data interface{} `json:"data"` // ResourceIdentifier, []ResourceIdentifier, or nil
}

// Serialize turns one loaded row into a Resource: attributes are built from
// the resource's AttributeOrder (hidden/virtual fields skipped, computed
// fields invoked), relationships get linkage from the eager-load fan-out
// when present and a relationship self-link otherwise (§4.5).
func Serialize(ctx context.Context, res *schema.ResourceDescriptor, row relationship.Record, loaded map[string]*relationship.Loaded, basePath string, requestedFields map[string]bool) (Resource, error) {
	id := formatID(row[res.IDField])
	out := Resource{
		Type:          res.Type,
		ID:            id,
		Attributes:    make(map[string]interface{}),
		Relationships: make(map[string]Relationship),
		Links:         Links{"self": fmt.Sprintf("%s/%s/%s", basePath, res.URLPrefixOrType(), id)},
	}

	for _, name := range res.AttributeOrder() {
		fd := res.Fields[name]
		if fd.Hidden == schema.Hidden {
			continue
		}
		if fd.Hidden == schema.HiddenNormally && !requestedFields[name] {
			continue
		}
		val, err := fieldValue(ctx, fd, row)
		if err != nil {
			return Resource{}, fmt.Errorf("field %q: %w", name, err)
		}
		out.Attributes[name] = val
	}

	for name, cd := range res.Computed {
		if cd.Compute == nil {
			continue
		}
		val, err := cd.Compute(ctx, row)
		if err != nil {
			return Resource{}, fmt.Errorf("computed field %q: %w", name, err)
		}
		out.Attributes[name] = val
	}

	for name, rel := range res.Relationships {
		relLinks := Links{"self": fmt.Sprintf("%s/%s/%s/relationships/%s", basePath, res.URLPrefixOrType(), id, name)}

		if l, ok := loaded[name]; ok {
			data := linkageData(l.FanOut[row[res.IDField]], rel.Kind)
			out.Relationships[name] = Relationship{Data: data, Links: relLinks}
			continue
		}
		if rel.Kind == schema.BelongsTo && !rel.Polymorphic {
			fk := row[rel.ForeignKey]
			if fk == nil {
				out.Relationships[name] = Relationship{Data: nil, Links: relLinks}
			} else {
				out.Relationships[name] = Relationship{Links: relLinks}
			}
			continue
		}
		out.Relationships[name] = Relationship{Links: relLinks}
	}

	if res.Meta != nil {
		meta, err := res.Meta(ctx)
		if err != nil {
			return Resource{}, fmt.Errorf("resource meta: %w", err)
		}
		out.Meta = meta
	}

	return out, nil
}

func fieldValue(ctx context.Context, fd *schema.FieldDescriptor, row relationship.Record) (interface{}, error) {
	if fd.Getter != nil {
		return fd.Getter(ctx, row)
	}
	return row[fd.Column], nil
}

func linkageData(idents []relationship.ResourceIdentifier, kind schema.RelationKind) interface{} {
	if kind == schema.HasMany || kind == schema.ManyToMany {
		out := make([]ResourceIdentifier, 0, len(idents))
		for _, i := range idents {
			out = append(out, ResourceIdentifier{Type: i.Type, ID: formatID(i.ID)})
		}
		return out
	}
	if len(idents) == 0 {
		return nil
	}
	return ResourceIdentifier{Type: idents[0].Type, ID: formatID(idents[0].ID)}
}

// SerializeIncluded renders every deduplicated resource the eager-load pass
// collected into the top-level `included` array (§3 "(type, id) pairs").
func SerializeIncluded(ctx context.Context, lookup relationship.Lookup, included *relationship.Included, loadedByType map[string]map[string]*relationship.Loaded, basePath string) ([]Resource, error) {
	out := make([]Resource, 0, len(included.All()))
	for _, ident := range included.All() {
		rec, _ := included.Record(ident)
		desc, ok := lookup(ident.Type)
		if !ok {
			continue
		}
		resSerialized, err := Serialize(ctx, desc, rec, loadedByType[ident.Type], basePath, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, resSerialized)
	}
	return out, nil
}

// BuildDocument assembles the top-level Document for a collection response,
// attaching pagination links/meta (§4.5, §6).
func BuildDocument(resources []Resource, included []Resource, page pagination.Links, meta map[string]interface{}) Document {
	doc := Document{
		Data:     resources,
		Included: included,
		Links:    Links(page),
		Meta:     meta,
		JSONAPI:  &JSONAPIObject{Version: "1.1"},
	}
	return doc
}

func formatID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case int:
		return fmt.Sprintf("%d", id)
	case int32:
		return fmt.Sprintf("%d", id)
	case int64:
		return fmt.Sprintf("%d", id)
	case float64:
		return fmt.Sprintf("%d", int64(id))
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", id)
	}
}
