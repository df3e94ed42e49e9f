package schema

import (
	"database/sql/driver"
	"reflect"
	"strings"
	"time"

	"github.com/go-jsonapi/server/pkg/reflection"
	"github.com/go-jsonapi/server/pkg/spectypes"
)

// FromStruct derives a ResourceDefinition from a Go struct's bun/gorm tags,
// the same struct-tag surface the teacher's model registry validates models
// against. Fields already present in overrides win; FromStruct only fills in
// what overrides left zero-valued, so a caller can hand-tune search/computed/
// visibility behavior on top of the derived scalars and relationships.
func FromStruct(model interface{}, overrides ResourceDefinition) ResourceDefinition {
	def := overrides

	typ := reflection.GetPointerElement(reflect.TypeOf(model))
	if typ == nil || typ.Kind() != reflect.Struct {
		return def
	}

	if def.Type == "" {
		def.Type = strings.ToLower(typ.Name())
	}
	if def.IDField == "" {
		if pk := reflection.GetPrimaryKeyName(model); pk != "" {
			def.IDField = pk
		}
	}
	if def.Relationships == nil {
		def.Relationships = map[string]RelationshipDef{}
	}

	seenFields := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		seenFields[f.Name] = true
	}
	seenRels := make(map[string]bool, len(def.Relationships))
	for name := range def.Relationships {
		seenRels[name] = true
	}

	collectFields(model, typ, &def, seenFields, seenRels)
	return def
}

var timeType = reflect.TypeOf(time.Time{})

func collectFields(model interface{}, typ reflect.Type, def *ResourceDefinition, seenFields, seenRels map[string]bool) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}

		if bunTag := field.Tag.Get("bun"); bunTag == "-" {
			continue
		}
		if gormTag := field.Tag.Get("gorm"); gormTag == "-" {
			continue
		}

		fieldType := field.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}

		if field.Anonymous && fieldType.Kind() == reflect.Struct && fieldType != timeType {
			collectFields(model, fieldType, def, seenFields, seenRels)
			continue
		}

		if isRelationField(fieldType, field) {
			addRelationship(model, field, fieldType, def, seenRels)
			continue
		}

		name := strings.ToLower(field.Name)
		if seenFields[name] {
			continue
		}
		seenFields[name] = true

		fieldKind := scalarFieldType(fieldType)
		if def.IDField != "" && strings.EqualFold(name, def.IDField) {
			fieldKind = FieldID
		}

		def.Fields = append(def.Fields, FieldDef{
			Name:     name,
			Type:     fieldKind,
			Column:   columnName(field),
			Nullable: field.Type.Kind() == reflect.Ptr,
		})
	}
}

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

// isScalarValuer reports whether fieldType is a struct that nonetheless
// behaves like a scalar column value (implements driver.Valuer), the same
// exception pkg/reflection's row scanning makes for custom types like
// spectypes.SqlJSONB so they aren't mistaken for a nested relation.
func isScalarValuer(fieldType reflect.Type) bool {
	return fieldType.Implements(valuerType) || reflect.PointerTo(fieldType).Implements(valuerType)
}

func isRelationField(fieldType reflect.Type, field reflect.StructField) bool {
	if fieldType == timeType || isScalarValuer(fieldType) {
		return false
	}
	switch fieldType.Kind() {
	case reflect.Struct:
		return true
	case reflect.Slice:
		elem := fieldType.Elem()
		for elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		return elem.Kind() == reflect.Struct && elem != timeType
	default:
		return false
	}
}

func addRelationship(model interface{}, field reflect.StructField, fieldType reflect.Type, def *ResourceDefinition, seenRels map[string]bool) {
	name := strings.ToLower(field.Name)
	if seenRels[name] {
		return
	}
	seenRels[name] = true

	target := strings.ToLower(fieldType.Name())
	rel := RelationshipDef{Name: name, Target: target}

	switch reflection.GetRelationType(model, field.Name) {
	case reflection.RelationBelongsTo:
		rel.Kind = BelongsTo
		rel.ForeignKey = field.Name + "ID"
	case reflection.RelationHasOne:
		rel.Kind = HasOne
	case reflection.RelationHasMany:
		rel.Kind = HasMany
	case reflection.RelationManyToMany:
		rel.Kind = ManyToMany
	default:
		rel.Kind = HasMany
	}

	def.Relationships[name] = rel
}

func columnName(field reflect.StructField) string {
	if bunTag := field.Tag.Get("bun"); bunTag != "" && bunTag != "-" {
		if col := reflection.ExtractColumnFromBunTag(bunTag); col != "" {
			return col
		}
	}
	if gormTag := field.Tag.Get("gorm"); gormTag != "" && gormTag != "-" {
		if col := reflection.ExtractColumnFromGormTag(gormTag); col != "" {
			return col
		}
	}
	if jsonTag := field.Tag.Get("json"); jsonTag != "" && jsonTag != "-" {
		if name := strings.Split(jsonTag, ",")[0]; name != "" {
			return name
		}
	}
	return reflection.ToSnakeCase(field.Name)
}

func scalarFieldType(fieldType reflect.Type) FieldType {
	if fieldType == timeType {
		return FieldDateTime
	}
	if kind, ok := spectypesFieldKind(fieldType); ok {
		return kind
	}
	switch fieldType.Kind() {
	case reflect.Bool:
		return FieldBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return FieldNumber
	case reflect.Slice:
		if fieldType.Elem().Kind() == reflect.Uint8 {
			return FieldBlob
		}
		return FieldArray
	case reflect.Map, reflect.Struct:
		return FieldJSON
	default:
		return FieldString
	}
}

// spectypesFieldKind maps the spectypes nullable SQL scalars to the matching
// FieldType, so a model built on them (instead of plain Go primitives) still
// compiles into the right descriptor kind rather than falling through to a
// generic JSON/string guess.
func spectypesFieldKind(fieldType reflect.Type) (FieldType, bool) {
	switch fieldType {
	case reflect.TypeOf(spectypes.SqlBool{}):
		return FieldBoolean, true
	case reflect.TypeOf(spectypes.SqlInt16{}), reflect.TypeOf(spectypes.SqlInt32{}),
		reflect.TypeOf(spectypes.SqlInt64{}), reflect.TypeOf(spectypes.SqlFloat64{}):
		return FieldNumber, true
	case reflect.TypeOf(spectypes.SqlString{}):
		return FieldString, true
	case reflect.TypeOf(spectypes.SqlUUID{}):
		return FieldString, true
	case reflect.TypeOf(spectypes.SqlTimeStamp{}):
		return FieldTimestamp, true
	case reflect.TypeOf(spectypes.SqlDate{}):
		return FieldDate, true
	case reflect.TypeOf(spectypes.SqlTime{}):
		return FieldTime, true
	case reflect.TypeOf(spectypes.SqlJSONB{}):
		return FieldJSON, true
	default:
		return "", false
	}
}
