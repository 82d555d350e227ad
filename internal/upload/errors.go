package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no upload session matched the query.
	ErrNotFound = errors.New("upload session not found")
	// ErrNoUploadToRetry means no retryable upload exists for the session.
	ErrNoUploadToRetry = errors.New("no upload to retry")
	// ErrNoChunks means retry found neither an assembled blob nor chunks.
	ErrNoChunks = errors.New("chunks not found, upload the file again")
	// ErrUploadBusy means a finalize or retry already holds the upload's
	// single-flight lock.
	ErrUploadBusy = errors.New("an operation for this upload is already in flight")
	// ErrStaleSession means the session row changed under us (e.g. a
	// concurrent cancel deleted it) and the status update applied to nothing.
	ErrStaleSession = errors.New("upload session changed concurrently")
)

// MismatchError reports an assembly chunk count mismatch. Callers should
// retry finalize once all chunk writes are durably visible.
type MismatchError struct {
	Expected int
	Found    int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("assembly mismatch: expected %d chunks, found %d", e.Expected, e.Found)
}
