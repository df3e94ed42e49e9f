package schema

import (
	"strings"

	"github.com/tidwall/gjson"
)

// jsonDependencyColumn recognizes a computed field's DependsOn entry that
// names a path inside a JSON-typed column ("metadata.rating") rather than a
// sibling field, and returns the physical column it actually depends on.
// Without this, topoSortGetters silently drops such a dependency since
// "metadata.rating" never matches a field name exactly (§4.1 "getterOrder").
func jsonDependencyColumn(desc *ResourceDescriptor, dep string) (string, bool) {
	col, _, ok := splitJSONPath(dep)
	if !ok {
		return "", false
	}
	f, isField := desc.Fields[col]
	if !isField || f.Type != FieldJSON {
		return "", false
	}
	return col, true
}

// splitJSONPath splits "column.nested.path" into its leading column name and
// the remaining gjson path. Returns ok=false for a bare name with no dot.
func splitJSONPath(s string) (col, path string, ok bool) {
	i := strings.Index(s, ".")
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// JSONField extracts a nested value from a record's JSON-typed column using
// a "column.nested.path" dependency string, for use inside a Getter that
// declared such a dependency. The column's stored value may be []byte,
// string, or json.RawMessage, matching whatever the storage adapter scans a
// jsonb column into.
func JSONField(record map[string]interface{}, dependency string) (gjson.Result, bool) {
	col, path, ok := splitJSONPath(dependency)
	if !ok {
		return gjson.Result{}, false
	}
	raw, ok := record[col]
	if !ok {
		return gjson.Result{}, false
	}

	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return gjson.Result{}, false
	}

	res := gjson.GetBytes(data, path)
	return res, res.Exists()
}
