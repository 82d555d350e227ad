package upload

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sessionscribe/internal/storage"
)

func putChunk(t *testing.T, blobs *storage.MemoryStore, uploadID string, index int, data []byte) {
	t.Helper()
	require.NoError(t, blobs.Put(context.Background(), storage.ChunkKey(uploadID, index), bytes.NewReader(data), int64(len(data)), "application/octet-stream"))
}

func TestAssembleConcatenatesInChunkOrder(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	a := NewAssembler(blobs, zap.NewNop(), nil)

	// Write order is scrambled on purpose; key order must win.
	putChunk(t, blobs, "u1", 2, []byte("cc"))
	putChunk(t, blobs, "u1", 0, []byte("aa"))
	putChunk(t, blobs, "u1", 10, []byte("kk"))
	putChunk(t, blobs, "u1", 1, []byte("bb"))

	result, err := a.Assemble(ctx, "u1", 4, "audio/webm;codecs=opus", "s1")
	require.NoError(t, err)

	assert.Equal(t, "sessions/s1/u1.webm", result.Key)
	assert.Equal(t, "audio/webm", result.MimeType)
	assert.Equal(t, "webm", result.Ext)
	assert.Equal(t, int64(8), result.Size)
	assert.Len(t, result.ChunkKeys, 4)

	assembled, err := blobs.Fetch(ctx, result.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("aabbcckk"), assembled)
}

func TestAssembleCountMismatch(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	a := NewAssembler(blobs, zap.NewNop(), nil)

	putChunk(t, blobs, "u1", 0, []byte("aa"))
	putChunk(t, blobs, "u1", 1, []byte("bb"))

	_, err := a.Assemble(ctx, "u1", 3, "audio/webm", "s1")

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Found)

	// No partial blob may appear on mismatch.
	sessions, err := blobs.ListByPrefix(ctx, "sessions/")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestCleanupChunksRemovesSources(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	a := NewAssembler(blobs, zap.NewNop(), nil)

	putChunk(t, blobs, "u1", 0, []byte("aa"))
	putChunk(t, blobs, "u1", 1, []byte("bb"))

	result, err := a.Assemble(ctx, "u1", 2, "audio/ogg", "s1")
	require.NoError(t, err)

	a.CleanupChunks(ctx, "u1", result.ChunkKeys)

	leftovers, err := blobs.ListByPrefix(ctx, storage.ChunkPrefix("u1"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	// The assembled blob stays.
	_, err = blobs.Fetch(ctx, result.Key)
	assert.NoError(t, err)
}
