package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sessionscribe/internal/metrics"
	"sessionscribe/internal/storage"
	"sessionscribe/internal/upload"
)

// Report summarizes one sweep run.
type Report struct {
	Deleted int      `json:"deletedCount"`
	Errors  []string `json:"errors,omitempty"`
}

// Sweeper deletes expired audio blobs and marks their sessions deleted.
// Transcripts are exempt from expiry and stay untouched. Scheduling is
// external; Sweep runs one batch.
type Sweeper struct {
	sessions  upload.Store
	blobs     storage.Store
	batchSize int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New wires a sweeper. Metrics may be nil.
func New(sessions upload.Store, blobs storage.Store, batchSize int, logger *zap.Logger, m *metrics.Metrics) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		sessions:  sessions,
		blobs:     blobs,
		batchSize: batchSize,
		logger:    logger,
		metrics:   m,
	}
}

// Sweep processes one batch of expired uploads. Per-item failures are
// collected into the report and never stop the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	expired, err := s.sessions.Expired(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired uploads: %w", err)
	}

	report := &Report{}
	if len(expired) == 0 {
		return report, nil
	}

	s.logger.Info("sweeping expired uploads", zap.Int("count", len(expired)))

	for _, sess := range expired {
		if err := s.sweepOne(ctx, sess); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", sess.UploadID, err))
			if s.metrics != nil {
				s.metrics.SweeperErrors.Inc()
			}
			s.logger.Warn("failed to sweep upload",
				zap.String("upload_id", sess.UploadID),
				zap.Error(err),
			)
			continue
		}
		report.Deleted++
		if s.metrics != nil {
			s.metrics.SweeperDeleted.Inc()
		}
	}

	s.logger.Info("sweep complete",
		zap.Int("deleted", report.Deleted),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, sess *upload.Session) error {
	if sess.StoragePath != "" {
		if err := s.blobs.Delete(ctx, sess.StoragePath); err != nil {
			return fmt.Errorf("delete blob: %w", err)
		}
	}
	// Leftover chunks from uploads that never finalized expire with them. A
	// failed listing is suppressed but recorded; the next run sees the chunks.
	objects, err := s.blobs.ListByPrefix(ctx, storage.ChunkPrefix(sess.UploadID))
	if err != nil {
		s.logger.Warn("failed to list leftover chunks",
			zap.String("upload_id", sess.UploadID),
			zap.Error(err),
		)
	}
	for _, obj := range objects {
		if err := s.blobs.Delete(ctx, obj.Key); err != nil {
			return fmt.Errorf("delete chunk %s: %w", obj.Key, err)
		}
	}
	return s.sessions.MarkDeleted(ctx, sess.UploadID)
}
