package relationship

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/go-jsonapi/server/pkg/schema"
)

// SetPolymorphicBelongsTo rewrites both the type-discriminator and id
// columns of a polymorphic belongsTo relationship together, so the pair is
// never left pointing at an inconsistent (type, id) combination (§3
// "polymorphic belongsTo ... type+id discriminator columns").
//
// TypeColumn and IDColumn may both name paths into the same JSON column
// ("ref.type" and "ref.id"): in that case the two keys are merged into a
// single JSON document and written with one SetForeignKey call instead of
// two, so a reader never observes the pair mid-update with only one key
// patched in.
func SetPolymorphicBelongsTo(ctx context.Context, writer Writer, res *schema.ResourceDescriptor, rel *schema.RelationshipDescriptor, ownerID interface{}, targetType string, targetID interface{}) error {
	if !rel.Polymorphic {
		return fmt.Errorf("relationship %q is not polymorphic", rel.Name)
	}
	if targetType != "" {
		known := false
		for _, t := range rel.PolymorphicTargets {
			if t == targetType {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("relationship %q: %q is not among its polymorphic targets", rel.Name, targetType)
		}
	}

	if col, typePath, idPath, ok := sameJSONColumn(rel.TypeColumn, rel.IDColumn); ok {
		raw, err := sjson.SetBytes([]byte("{}"), typePath, targetType)
		if err != nil {
			return fmt.Errorf("relationship %q: merge type into %s: %w", rel.Name, col, err)
		}
		raw, err = sjson.SetBytes(raw, idPath, targetID)
		if err != nil {
			return fmt.Errorf("relationship %q: merge id into %s: %w", rel.Name, col, err)
		}
		return writer.SetForeignKey(ctx, res.Table, res.IDField, ownerID, col, raw)
	}

	if err := writer.SetForeignKey(ctx, res.Table, res.IDField, ownerID, rel.TypeColumn, targetType); err != nil {
		return err
	}
	return writer.SetForeignKey(ctx, res.Table, res.IDField, ownerID, rel.IDColumn, targetID)
}

// sameJSONColumn reports whether typeColumn and idColumn both name a dotted
// path into the same JSON column ("ref.type", "ref.id"), returning that
// column plus each path with the column prefix stripped.
func sameJSONColumn(typeColumn, idColumn string) (col, typePath, idPath string, ok bool) {
	tCol, tPath, tOK := splitJSONColumnPath(typeColumn)
	iCol, iPath, iOK := splitJSONColumnPath(idColumn)
	if !tOK || !iOK || tCol != iCol {
		return "", "", "", false
	}
	return tCol, tPath, iPath, true
}

func splitJSONColumnPath(s string) (col, path string, ok bool) {
	i := strings.Index(s, ".")
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
