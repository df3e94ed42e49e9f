package pagination

import (
	"testing"

	"github.com/go-jsonapi/server/pkg/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCursor_RoundTrips(t *testing.T) {
	token, err := EncodeCursor([]interface{}{"alice", int64(42)})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	values, err := DecodeCursor(token)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "alice", values[0])
}

func TestDecodeCursor_RejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not-a-valid-token!!!")
	require.Error(t, err)
	assert.ErrorIs(t, err, planner.ErrInvalidCursor)
}

func TestBuildCursorWhere_MultiKeyOrAndChain(t *testing.T) {
	order := []planner.OrderClause{
		{Column: "books.title", Desc: false},
		{Column: "books.id", Desc: true},
	}
	clause, err := BuildCursorWhere(order, []interface{}{"Dune", int64(7)}, false)
	require.NoError(t, err)
	assert.Contains(t, clause.Expr, "books.title > ?")
	assert.Contains(t, clause.Expr, "books.title = ? AND books.id < ?")
	assert.Equal(t, []interface{}{"Dune", "Dune", int64(7)}, clause.Args)
}

func TestBuildCursorWhere_BackwardFlipsComparisons(t *testing.T) {
	order := []planner.OrderClause{{Column: "books.id", Desc: false}}
	clause, err := BuildCursorWhere(order, []interface{}{int64(5)}, true)
	require.NoError(t, err)
	assert.Contains(t, clause.Expr, "books.id < ?")
}

func TestBuildCursorWhere_MismatchedLengthRejected(t *testing.T) {
	order := []planner.OrderClause{{Column: "books.id"}}
	_, err := BuildCursorWhere(order, []interface{}{1, 2}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, planner.ErrInvalidCursor)
}

func TestSplitCursorPage_DetectsHasMoreAndReverses(t *testing.T) {
	rows := []map[string]interface{}{{"id": 1}, {"id": 2}, {"id": 3}}
	page, hasMore := SplitCursorPage(rows, 2, false)
	assert.True(t, hasMore)
	require.Len(t, page, 2)
	assert.Equal(t, 1, page[0]["id"])

	page, hasMore = SplitCursorPage(rows, 2, true)
	assert.True(t, hasMore)
	require.Len(t, page, 2)
	assert.Equal(t, 2, page[0]["id"])
	assert.Equal(t, 1, page[1]["id"])
}

func TestSigner_RoundTripAndTamperDetection(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	signed := s.Sign("abc123")
	assert.NotEqual(t, "abc123", signed)

	payload, err := s.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "abc123", payload)

	_, err = s.Verify(signed + "tampered")
	require.Error(t, err)
	assert.ErrorIs(t, err, planner.ErrInvalidCursor)
}

func TestSigner_DisabledWhenKeyEmpty(t *testing.T) {
	s := NewSigner(nil)
	assert.Equal(t, "abc123", s.Sign("abc123"))
	payload, err := s.Verify("abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", payload)
}
