package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstall_OrdersGetterAfterJSONColumnDependency(t *testing.T) {
	reg := NewRegistry()
	err := reg.Install(ResourceDefinition{
		Type: "products",
		Fields: []FieldDef{
			{Name: "id", Type: FieldID},
			{Name: "metadata", Type: FieldJSON},
			{
				Name:      "ratingLabel",
				Type:      FieldString,
				DependsOn: []string{"metadata.rating"},
				Getter: func(_ context.Context, record map[string]interface{}) (interface{}, error) {
					res, ok := JSONField(record, "metadata.rating")
					if !ok {
						return "unrated", nil
					}
					return res.String(), nil
				},
			},
		},
	})
	require.NoError(t, err)

	desc, ok := reg.Get("products")
	require.True(t, ok)

	order, err := topoSortGetters(desc)
	require.NoError(t, err)
	require.Equal(t, []string{"metadata", "ratingLabel"}, order)
}

func TestJSONField_ExtractsNestedValueFromStoredColumn(t *testing.T) {
	record := map[string]interface{}{
		"metadata": []byte(`{"rating": 4.5, "tags": ["a", "b"]}`),
	}

	res, ok := JSONField(record, "metadata.rating")
	require.True(t, ok)
	assert.Equal(t, 4.5, res.Float())

	_, ok = JSONField(record, "metadata.missing")
	assert.False(t, ok)

	_, ok = JSONField(record, "nope")
	assert.False(t, ok)
}
