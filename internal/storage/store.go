package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Store is the key-addressed blob storage contract the pipeline consumes.
// ListByPrefix returns objects in lexicographic key order, which is what makes
// zero-padded chunk keys reassemble in upload order.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	ListByPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// DeleteMany removes the given keys best-effort and returns one error per
	// failed key. Callers decide whether failures matter.
	DeleteMany(ctx context.Context, keys []string) []error
}

// ChunkKey builds the storage key for one uploaded chunk. The index is
// zero-padded so lexicographic key order equals chunk order.
func ChunkKey(uploadID string, index int) string {
	return fmt.Sprintf("chunks/%s/chunk_%05d", uploadID, index)
}

// ChunkPrefix is the namespace holding every chunk of one upload.
func ChunkPrefix(uploadID string) string {
	return fmt.Sprintf("chunks/%s/", uploadID)
}

// FinalKey builds the storage key for an assembled audio blob.
func FinalKey(sessionID, uploadID, ext string) string {
	return fmt.Sprintf("sessions/%s/%s.%s", sessionID, uploadID, ext)
}

// NormalizeMime maps a declared container MIME type onto one the provider
// accepts, defaulting to webm. The extension pairs with FinalKey and the
// provider filename.
func NormalizeMime(mimeType string) (mime string, ext string) {
	switch {
	case strings.Contains(mimeType, "ogg"):
		return "audio/ogg", "ogg"
	case strings.Contains(mimeType, "wav"):
		return "audio/wav", "wav"
	case strings.Contains(mimeType, "mp3"), strings.Contains(mimeType, "mpeg"):
		return "audio/mpeg", "mp3"
	case strings.Contains(mimeType, "mp4"), strings.Contains(mimeType, "m4a"):
		return "audio/mp4", "mp4"
	default:
		return "audio/webm", "webm"
	}
}
