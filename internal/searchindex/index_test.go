package searchindex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenager/chatsift/internal/searchindex"
)

func ptr(s string) *string { return &s }

func TestAppendRejectsEmptyContent(t *testing.T) {
	idx := searchindex.New()
	err := idx.Append(searchindex.Chunk{DocID: "d1", Content: "   ", Embedding: []float32{1, 0}})
	assert.Error(t, err)
	assert.Equal(t, 0, idx.Count())
}

func TestAppendRejectsMismatchedDimension(t *testing.T) {
	idx := searchindex.New()
	require.NoError(t, idx.Append(searchindex.Chunk{DocID: "d1", Content: "hello", Embedding: []float32{1, 0, 0}}))
	err := idx.Append(searchindex.Chunk{DocID: "d1", Content: "world", Embedding: []float32{1, 0}})
	assert.Error(t, err)
	assert.Equal(t, 1, idx.Count(), "rejected append must not mutate the index")
}

func TestAppendRejectsSenderDateMismatch(t *testing.T) {
	idx := searchindex.New()
	err := idx.Append(searchindex.Chunk{
		DocID: "d1", Content: "hello", Embedding: []float32{1},
		Sender: ptr("Alice"), Date: nil,
	})
	assert.Error(t, err)
}

func TestDocumentIDsSortedAndDeduplicated(t *testing.T) {
	idx := searchindex.New()
	require.NoError(t, idx.Append(searchindex.Chunk{DocID: "zeta", Content: "a", Embedding: []float32{1}}))
	require.NoError(t, idx.Append(searchindex.Chunk{DocID: "alpha", Content: "b", Embedding: []float32{1}}))
	require.NoError(t, idx.Append(searchindex.Chunk{DocID: "alpha", Content: "c", Embedding: []float32{1}}))

	ids := idx.DocumentIDs()
	assert.Equal(t, []string{"alpha", "zeta"}, ids)
}

func TestExportImportRoundTrip(t *testing.T) {
	idx := searchindex.New()
	require.NoError(t, idx.Append(searchindex.Chunk{
		DocID: "d1", Content: "hello", Sender: ptr("Alice"), Date: ptr("1/1/24, 09:00"),
		Embedding: []float32{0.6, 0.8},
	}))
	require.NoError(t, idx.Append(searchindex.Chunk{
		DocID: "d2", Content: "world", Embedding: []float32{1, 0},
	}))

	snap := idx.Export()
	restored, err := searchindex.Import(snap)
	require.NoError(t, err)

	assert.Equal(t, idx.Count(), restored.Count())
	assert.Equal(t, idx.DocumentIDs(), restored.DocumentIDs())
	assert.Equal(t, idx.Chunks(), restored.Chunks())
}

func TestImportRejectsMixedDimensions(t *testing.T) {
	snap := searchindex.Snapshot{Chunks: []searchindex.SnapshotChunk{
		{DocID: "d1", Content: "a", Embedding: []float32{1, 0}},
		{DocID: "d2", Content: "b", Embedding: []float32{1, 0, 0}},
	}}
	_, err := searchindex.Import(snap)
	assert.Error(t, err)
}

func TestImportAcceptsSnapshotWithoutSenderDate(t *testing.T) {
	// Simulates the older snapshot lineage (spec.md §9, open question 4):
	// missing sender/date fields default to absent rather than erroring.
	snap := searchindex.Snapshot{Chunks: []searchindex.SnapshotChunk{
		{DocID: "d1", Content: "plain text chunk", Embedding: []float32{1, 0}},
	}}
	restored, err := searchindex.Import(snap)
	require.NoError(t, err)
	c, ok := restored.At(0)
	require.True(t, ok)
	assert.Nil(t, c.Sender)
	assert.Nil(t, c.Date)
}

func TestReplaceFromLeavesIndexUntouchedOnFailure(t *testing.T) {
	idx := searchindex.New()
	require.NoError(t, idx.Append(searchindex.Chunk{DocID: "d1", Content: "hello", Embedding: []float32{1, 0}}))

	bad := searchindex.Snapshot{Chunks: []searchindex.SnapshotChunk{
		{DocID: "d2", Content: "a", Embedding: []float32{1, 0}},
		{DocID: "d3", Content: "b", Embedding: []float32{1, 0, 0}},
	}}
	err := idx.ReplaceFrom(bad)
	assert.Error(t, err)
	assert.Equal(t, 1, idx.Count(), "failed import must not replace existing state")
}

func TestAtOutOfBounds(t *testing.T) {
	idx := searchindex.New()
	_, ok := idx.At(0)
	assert.False(t, ok)
}
