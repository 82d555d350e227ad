package upload

import (
	"context"
	"time"

	"sessionscribe/internal/transcribe"
)

// Store is the narrow read/write contract against the upload session record.
// Status-moving writes are compare-and-set on the expected current status so
// a concurrent cancel or a stale orchestrator cannot clobber newer state;
// they return ErrStaleSession when the row no longer matches.
type Store interface {
	Create(ctx context.Context, sess *Session) error

	GetByUploadID(ctx context.Context, uploadID string) (*Session, error)
	// LatestBySession returns the most recent upload for a business session,
	// regardless of status. ErrNotFound when none exists.
	LatestBySession(ctx context.Context, sessionID string) (*Session, error)
	// LatestRetryable returns the most recent upload still eligible for
	// retry (error, uploading, assembling, transcribing).
	LatestRetryable(ctx context.Context, sessionID string) (*Session, error)
	// LatestActive returns the most recent non-terminal upload.
	LatestActive(ctx context.Context, sessionID string) (*Session, error)

	SetStatus(ctx context.Context, uploadID string, from, to Status) error
	// SetAssembled records the assembled blob and moves the session from
	// `from` to transcribing in one write.
	SetAssembled(ctx context.Context, uploadID, storagePath string, from Status) error
	// SetTranscript persists the merged transcript and moves the session
	// from transcribing to transcribed.
	SetTranscript(ctx context.Context, uploadID, text string, segments []transcribe.Segment) error
	// ClearStoragePath nulls the blob reference after the blob is gone.
	ClearStoragePath(ctx context.Context, uploadID string) error

	Delete(ctx context.Context, uploadID string) error

	// Expired lists sessions whose retention deadline passed and that are
	// not already deleted, oldest first, up to limit.
	Expired(ctx context.Context, now time.Time, limit int) ([]*Session, error)
	// MarkDeleted finishes a sweep: status=deleted, storage_path=null,
	// transcript untouched.
	MarkDeleted(ctx context.Context, uploadID string) error
}
