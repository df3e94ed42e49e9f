package jsonapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-jsonapi/server/pkg/cache"
	"github.com/go-jsonapi/server/pkg/planner"
)

func TestHandle_List_TotalCountIsCached(t *testing.T) {
	db := newFakeDB()
	db.rowsByTable["books"] = []map[string]interface{}{
		{"id": int64(1), "title": "LOTR", "author_id": int64(1)},
		{"id": int64(2), "title": "Hobbit", "author_id": int64(1)},
	}

	h := NewHandler(db, booksRegistry(t), planner.Config{
		QueryDefaultLimit: 20, QueryMaxLimit: 100, EnablePaginationCounts: true,
	}).WithTotalCountCache(cache.NewCache(cache.NewMemoryProvider(nil)), 0)

	rec := doRequest(t, h, http.MethodGet, "/books", nil, map[string]string{"type": "books"})
	require.Equal(t, http.StatusOK, rec.Code)

	var doc Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, float64(2), doc.Meta["total"])

	// Mutate the backing table after the first request; a cache hit on the
	// second request must still report the stale total rather than recount.
	db.rowsByTable["books"] = append(db.rowsByTable["books"], map[string]interface{}{
		"id": int64(3), "title": "Silmarillion", "author_id": int64(1),
	})

	rec2 := doRequest(t, h, http.MethodGet, "/books", nil, map[string]string{"type": "books"})
	require.Equal(t, http.StatusOK, rec2.Code)

	var doc2 Document
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &doc2))
	assert.Equal(t, float64(2), doc2.Meta["total"], "total must come from cache, not a fresh COUNT(*)")
}

func TestTotalCountCacheKey_DiffersByTenantAndResource(t *testing.T) {
	plan := &planner.Plan{}
	a := totalCountCacheKey("t1", "books", plan)
	b := totalCountCacheKey("t2", "books", plan)
	c := totalCountCacheKey("t1", "authors", plan)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, totalCountCacheKey("t1", "books", plan))
}
