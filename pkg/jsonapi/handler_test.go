package jsonapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-jsonapi/server/pkg/common"
	"github.com/go-jsonapi/server/pkg/planner"
	"github.com/go-jsonapi/server/pkg/schema"
)

func booksRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Install(
		schema.ResourceDefinition{
			Type:  "books",
			Table: "books",
			Fields: []schema.FieldDef{
				{Name: "id", Type: schema.FieldID},
				{Name: "title", Type: schema.FieldString},
				{Name: "author_id", Type: schema.FieldNumber},
			},
			Relationships: map[string]schema.RelationshipDef{
				"author": {Kind: schema.BelongsTo, Target: "authors", ForeignKey: "author_id"},
			},
			SearchSchema: map[string]schema.SearchDef{
				"title": {Key: "title", ActualField: "title", Operator: schema.OpLike},
			},
		},
		schema.ResourceDefinition{
			Type:  "authors",
			Table: "authors",
			Fields: []schema.FieldDef{
				{Name: "id", Type: schema.FieldID},
				{Name: "name", Type: schema.FieldString},
			},
		},
	))
	return reg
}

func newTestHandler(db *fakeDB, reg *schema.Registry) *Handler {
	return NewHandler(db, reg, planner.Config{QueryDefaultLimit: 20, QueryMaxLimit: 100})
}

func doRequest(t *testing.T, h *Handler, method, url string, body []byte, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader *bytes.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	} else {
		bodyReader = bytes.NewReader(nil)
	}
	httpReq := httptest.NewRequest(method, url, bodyReader)
	if body != nil {
		httpReq.Header.Set("Content-Type", mediaType)
	}
	rec := httptest.NewRecorder()
	respAdapter, reqAdapter := common.WrapHTTPRequest(rec, httpReq)
	h.Handle(respAdapter, reqAdapter, params)
	return rec
}

func TestHandle_List(t *testing.T) {
	db := newFakeDB()
	db.rowsByTable["books"] = []map[string]interface{}{
		{"id": int64(1), "title": "LOTR", "author_id": int64(1)},
		{"id": int64(2), "title": "Hobbit", "author_id": int64(1)},
	}
	h := newTestHandler(db, booksRegistry(t))

	rec := doRequest(t, h, http.MethodGet, "/books", nil, map[string]string{"type": "books"})
	require.Equal(t, http.StatusOK, rec.Code)

	var doc Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	data, ok := doc.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestHandle_Get(t *testing.T) {
	db := newFakeDB()
	db.rowsByTable["books"] = []map[string]interface{}{
		{"id": int64(1), "title": "LOTR", "author_id": int64(1)},
	}
	h := newTestHandler(db, booksRegistry(t))

	rec := doRequest(t, h, http.MethodGet, "/books/1", nil, map[string]string{"type": "books", "id": "1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var doc Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	data, ok := doc.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "books", data["type"])
}

func TestHandle_GetNotFound(t *testing.T) {
	db := newFakeDB()
	h := newTestHandler(db, booksRegistry(t))

	rec := doRequest(t, h, http.MethodGet, "/books/999", nil, map[string]string{"type": "books", "id": "999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandle_UnknownType(t *testing.T) {
	db := newFakeDB()
	h := newTestHandler(db, booksRegistry(t))

	rec := doRequest(t, h, http.MethodGet, "/ghosts", nil, map[string]string{"type": "ghosts"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandle_Create(t *testing.T) {
	db := newFakeDB()
	h := newTestHandler(db, booksRegistry(t))

	body, err := json.Marshal(RequestDocument{Data: RequestResource{
		Type:       "books",
		Attributes: map[string]interface{}{"title": "Silmarillion"},
	}})
	require.NoError(t, err)

	db.rowsByTable["books"] = []map[string]interface{}{
		{"id": int64(1), "title": "Silmarillion"},
	}

	rec := doRequest(t, h, http.MethodPost, "/books", body, map[string]string{"type": "books"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, db.inserts, 1)
	assert.Equal(t, "Silmarillion", db.inserts[0].values["title"])
}

func TestHandle_CreateRejectsMismatchedType(t *testing.T) {
	db := newFakeDB()
	h := newTestHandler(db, booksRegistry(t))

	body, _ := json.Marshal(RequestDocument{Data: RequestResource{
		Type:       "authors",
		Attributes: map[string]interface{}{"name": "x"},
	}})

	rec := doRequest(t, h, http.MethodPost, "/books", body, map[string]string{"type": "books"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandle_CreateRejectsWrongMediaType(t *testing.T) {
	db := newFakeDB()
	h := newTestHandler(db, booksRegistry(t))

	httpReq := httptest.NewRequest(http.MethodPost, "/books", bytes.NewReader([]byte(`{}`)))
	httpReq.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	respAdapter, reqAdapter := common.WrapHTTPRequest(rec, httpReq)
	h.Handle(respAdapter, reqAdapter, map[string]string{"type": "books"})

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandle_Delete(t *testing.T) {
	db := newFakeDB()
	db.rowsByTable["books"] = []map[string]interface{}{{"id": int64(1), "title": "LOTR"}}
	h := newTestHandler(db, booksRegistry(t))

	rec := doRequest(t, h, http.MethodDelete, "/books/1", nil, map[string]string{"type": "books", "id": "1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, db.deletes, 1)
}
