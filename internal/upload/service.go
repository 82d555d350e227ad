package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sessionscribe/internal/metrics"
	"sessionscribe/internal/storage"
	"sessionscribe/internal/transcribe"
)

// Transcriber is the segmented transcription entry point the orchestrator
// drives; *transcribe.Segmenter satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, filename string) (*transcribe.Result, error)
}

// CleanupReport records errors a best-effort teardown suppressed. Suppressed
// failures never block the primary operation but are kept for observability.
type CleanupReport struct {
	Suppressed []string
}

func (r *CleanupReport) record(what string, err error) {
	if err != nil {
		r.Suppressed = append(r.Suppressed, fmt.Sprintf("%s: %v", what, err))
	}
}

// ServiceConfig holds the orchestrator's tunables.
type ServiceConfig struct {
	// Retention is how long assembled audio may live before expiry.
	Retention time.Duration
	// OperationTimeout bounds one finalize/retry run end to end.
	OperationTimeout time.Duration
}

// Service drives an upload session through
// uploading → assembling → transcribing → transcribed, and owns the retry,
// cancel, and status entry points. It is the single writer of session status.
type Service struct {
	sessions    Store
	blobs       storage.Store
	assembler   *Assembler
	transcriber Transcriber
	locks       Locker
	cfg         ServiceConfig
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewService wires the upload lifecycle orchestrator.
func NewService(
	sessions Store,
	blobs storage.Store,
	assembler *Assembler,
	transcriber Transcriber,
	locks Locker,
	cfg ServiceConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Service {
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 300 * time.Second
	}
	return &Service{
		sessions:    sessions,
		blobs:       blobs,
		assembler:   assembler,
		transcriber: transcriber,
		locks:       locks,
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
	}
}

// Init creates a fresh upload session for a business session. If a prior
// upload is still non-terminal it is superseded: its blob, chunks, and record
// are removed best-effort before the new one is created.
func (s *Service) Init(ctx context.Context, sessionID, ownerID, mimeType string, totalBytes int64) (*Session, error) {
	prior, err := s.sessions.LatestActive(ctx, sessionID)
	switch {
	case err == nil:
		report := s.teardown(ctx, prior)
		s.logger.Info("superseding in-flight upload",
			zap.String("session_id", sessionID),
			zap.String("old_upload_id", prior.UploadID),
			zap.Strings("suppressed", report.Suppressed),
		)
	case errors.Is(err, ErrNotFound):
		// nothing to supersede
	default:
		return nil, err
	}

	now := time.Now().UTC()
	sess := &Session{
		UploadID:   uuid.NewString(),
		SessionID:  sessionID,
		OwnerID:    ownerID,
		MimeType:   mimeType,
		TotalBytes: totalBytes,
		Status:     StatusUploading,
		ExpiresAt:  now.Add(s.cfg.Retention),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.UploadsInitiated.Inc()
	}
	s.logger.Info("upload session created",
		zap.String("session_id", sessionID),
		zap.String("upload_id", sess.UploadID),
		zap.String("mime_type", mimeType),
	)
	return sess, nil
}

// StoreChunk writes one chunk into the upload's namespace. Stateless: the
// session record is not touched.
func (s *Service) StoreChunk(ctx context.Context, uploadID string, index int, data []byte) (string, error) {
	key := storage.ChunkKey(uploadID, index)
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/octet-stream"); err != nil {
		return "", fmt.Errorf("failed to store chunk %d: %w", index, err)
	}
	if s.metrics != nil {
		s.metrics.ChunksStored.Inc()
	}
	return key, nil
}

// Finalize assembles the upload's chunks and transcribes the result. Exactly
// one finalize/retry may run per upload at a time; concurrent calls get
// ErrUploadBusy. The call is bounded by the configured operation timeout.
func (s *Service) Finalize(ctx context.Context, uploadID, sessionID, mimeType string, totalChunks int) (*Session, error) {
	release, ok, err := s.locks.TryAcquire(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUploadBusy
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	sess, err := s.sessions.GetByUploadID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if sess.SessionID != sessionID {
		return nil, ErrNotFound
	}
	if mimeType == "" {
		mimeType = sess.MimeType
	}

	// A prior finalize that hit AssemblyMismatch leaves the session in
	// assembling; re-running finalize from there is the documented recovery.
	if sess.Status != StatusUploading && sess.Status != StatusAssembling {
		return nil, &TransitionError{UploadID: uploadID, From: sess.Status, To: StatusAssembling}
	}
	if err := s.enterStatus(ctx, sess, StatusAssembling); err != nil {
		return nil, err
	}

	return s.assembleAndTranscribe(ctx, sess, mimeType, totalChunks)
}

// Retry re-enters the pipeline for the most recent retryable upload of a
// session: directly at transcribing when an assembled blob exists, otherwise
// from assembly, provided the chunks are still present.
func (s *Service) Retry(ctx context.Context, sessionID, ownerID string) (*Session, error) {
	sess, err := s.sessions.LatestRetryable(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoUploadToRetry
	}
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerID {
		return nil, ErrNoUploadToRetry
	}

	release, ok, err := s.locks.TryAcquire(ctx, sess.UploadID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUploadBusy
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	s.logger.Info("retrying upload",
		zap.String("session_id", sessionID),
		zap.String("upload_id", sess.UploadID),
		zap.String("status", string(sess.Status)),
		zap.Bool("has_blob", sess.StoragePath != ""),
	)

	if sess.StoragePath != "" {
		if err := s.enterStatus(ctx, sess, StatusTranscribing); err != nil {
			return nil, err
		}
		// The provider gets the same normalized MIME the assembled blob was
		// stored with, not the raw declared one.
		mime, ext := storage.NormalizeMime(sess.MimeType)
		return s.transcribeAndPersist(ctx, sess, sess.StoragePath, mime, ext)
	}

	objects, err := s.blobs.ListByPrefix(ctx, storage.ChunkPrefix(sess.UploadID))
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, ErrNoChunks
	}

	// transcribing without a stored blob means a crash mid-assembly; fold it
	// back through error so the state machine stays closed.
	if sess.Status == StatusTranscribing {
		if err := s.sessions.SetStatus(ctx, sess.UploadID, StatusTranscribing, StatusError); err != nil {
			return nil, err
		}
		sess.Status = StatusError
	}
	if err := s.enterStatus(ctx, sess, StatusAssembling); err != nil {
		return nil, err
	}

	return s.assembleAndTranscribe(ctx, sess, sess.MimeType, len(objects))
}

// Cancel tears down the latest non-terminal upload of a session: blob and
// chunks deleted best-effort, record removed so status reports no active
// upload. Safe from any non-terminal state, including mid-transcription.
func (s *Service) Cancel(ctx context.Context, sessionID, ownerID string) (*CleanupReport, error) {
	sess, err := s.sessions.LatestActive(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return &CleanupReport{}, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerID {
		return nil, ErrNotFound
	}

	report := s.teardown(ctx, sess)
	if s.metrics != nil {
		s.metrics.UploadsCanceled.Inc()
	}
	s.logger.Info("upload canceled",
		zap.String("session_id", sessionID),
		zap.String("upload_id", sess.UploadID),
		zap.Strings("suppressed", report.Suppressed),
	)
	return report, nil
}

// Status returns the most recent upload for a session without mutating
// anything. ErrNotFound when the session has no uploads or a foreign owner.
func (s *Service) Status(ctx context.Context, sessionID, ownerID string) (*Session, error) {
	sess, err := s.sessions.LatestBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return sess, nil
}

// assembleAndTranscribe runs the shared back half of finalize and retry. The
// session must already be in assembling.
func (s *Service) assembleAndTranscribe(ctx context.Context, sess *Session, mimeType string, totalChunks int) (*Session, error) {
	if totalChunks <= 0 {
		objects, err := s.blobs.ListByPrefix(ctx, storage.ChunkPrefix(sess.UploadID))
		if err != nil {
			return nil, err
		}
		totalChunks = len(objects)
	}
	if totalChunks == 0 {
		s.markError(ctx, sess.UploadID, StatusAssembling)
		return nil, ErrNoChunks
	}

	result, err := s.assembler.Assemble(ctx, sess.UploadID, totalChunks, mimeType, sess.SessionID)
	if err != nil {
		var mismatch *MismatchError
		if errors.As(err, &mismatch) {
			// Session stays in assembling; the caller retries finalize once
			// all chunk writes are visible.
			return nil, err
		}
		s.markError(ctx, sess.UploadID, StatusAssembling)
		return nil, err
	}

	if err := s.sessions.SetAssembled(ctx, sess.UploadID, result.Key, StatusAssembling); err != nil {
		return nil, err
	}
	// Chunks go only after the record points at the assembled blob, so a
	// crash in between stays recoverable through retry.
	s.assembler.CleanupChunks(ctx, sess.UploadID, result.ChunkKeys)

	return s.transcribeAndPersist(ctx, sess, result.Key, result.MimeType, result.Ext)
}

// transcribeAndPersist downloads the assembled blob, transcribes it, persists
// the transcript, and discards the audio. The session must be transcribing.
func (s *Service) transcribeAndPersist(ctx context.Context, sess *Session, storagePath, mimeType, ext string) (*Session, error) {
	started := time.Now()

	audio, err := s.blobs.Fetch(ctx, storagePath)
	if err != nil {
		s.markError(ctx, sess.UploadID, StatusTranscribing)
		return nil, fmt.Errorf("failed to download assembled audio: %w", err)
	}

	result, err := s.transcriber.Transcribe(ctx, audio, mimeType, "audio."+ext)
	if err != nil {
		s.markError(ctx, sess.UploadID, StatusTranscribing)
		return nil, err
	}

	if err := s.sessions.SetTranscript(ctx, sess.UploadID, result.Text, result.Segments); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TranscriptionSuccesses.Inc()
		s.metrics.TranscriptionDuration.Observe(time.Since(started).Seconds())
	}

	// Audio is discarded once the transcript is durable. StoragePath is
	// cleared only when the blob is really gone, so the two leave together;
	// a failed delete leaves both for the expiry sweeper.
	if err := s.blobs.Delete(ctx, storagePath); err != nil {
		s.logger.Warn("failed to delete assembled audio after transcription",
			zap.String("upload_id", sess.UploadID),
			zap.Error(err),
		)
	} else if err := s.sessions.ClearStoragePath(ctx, sess.UploadID); err != nil {
		s.logger.Warn("failed to clear storage path",
			zap.String("upload_id", sess.UploadID),
			zap.Error(err),
		)
	}

	s.logger.Info("transcription complete",
		zap.String("upload_id", sess.UploadID),
		zap.Int("chars", len(result.Text)),
		zap.Int("segments", len(result.Segments)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return s.sessions.GetByUploadID(ctx, sess.UploadID)
}

// enterStatus moves sess to the target status via compare-and-set, no-op when
// already there.
func (s *Service) enterStatus(ctx context.Context, sess *Session, to Status) error {
	if sess.Status == to {
		return nil
	}
	if !sess.Status.CanTransition(to) {
		return &TransitionError{UploadID: sess.UploadID, From: sess.Status, To: to}
	}
	if err := s.sessions.SetStatus(ctx, sess.UploadID, sess.Status, to); err != nil {
		return err
	}
	sess.Status = to
	return nil
}

// markError records a pipeline failure best-effort; the caller propagates the
// original error regardless.
func (s *Service) markError(ctx context.Context, uploadID string, from Status) {
	if err := s.sessions.SetStatus(ctx, uploadID, from, StatusError); err != nil {
		s.logger.Warn("failed to mark upload errored",
			zap.String("upload_id", uploadID),
			zap.String("from", string(from)),
			zap.Error(err),
		)
	}
}

// teardown removes an upload's blob, chunks, and record. Storage failures are
// suppressed into the report; losing the record is the only hard failure.
func (s *Service) teardown(ctx context.Context, sess *Session) *CleanupReport {
	report := &CleanupReport{}

	if sess.StoragePath != "" {
		report.record("delete blob", s.blobs.Delete(ctx, sess.StoragePath))
	}

	objects, err := s.blobs.ListByPrefix(ctx, storage.ChunkPrefix(sess.UploadID))
	if err != nil {
		report.record("list chunks", err)
	} else {
		for _, obj := range objects {
			report.record("delete chunk", s.blobs.Delete(ctx, obj.Key))
		}
	}

	report.record("delete record", s.sessions.Delete(ctx, sess.UploadID))
	return report
}
