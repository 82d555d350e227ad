package upload

import (
	"bytes"
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"sessionscribe/internal/metrics"
	"sessionscribe/internal/storage"
)

// AssembleResult describes the blob produced from an upload's chunk set.
type AssembleResult struct {
	Key       string
	Size      int64
	MimeType  string
	Ext       string
	ChunkKeys []string
}

// Assembler concatenates an upload's chunks into one audio blob. It does not
// delete the chunks itself: the orchestrator removes them only after the
// session record points at the assembled blob, so a crash in between stays
// recoverable through retry.
type Assembler struct {
	blobs   storage.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewAssembler wires the assembler. Metrics may be nil.
func NewAssembler(blobs storage.Store, logger *zap.Logger, m *metrics.Metrics) *Assembler {
	return &Assembler{blobs: blobs, logger: logger, metrics: m}
}

// Assemble lists the upload's chunk namespace, verifies the count against
// expectedChunks, concatenates the chunks in key order, and writes the result
// as sessions/{sessionID}/{uploadID}.{ext}. A count mismatch usually means
// finalize raced chunk visibility; callers retry finalize.
func (a *Assembler) Assemble(ctx context.Context, uploadID string, expectedChunks int, mimeType, sessionID string) (*AssembleResult, error) {
	objects, err := a.blobs.ListByPrefix(ctx, storage.ChunkPrefix(uploadID))
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks for upload %s: %w", uploadID, err)
	}

	if len(objects) != expectedChunks {
		if a.metrics != nil {
			a.metrics.AssemblyMismatches.Inc()
		}
		return nil, &MismatchError{Expected: expectedChunks, Found: len(objects)}
	}

	var buf bytes.Buffer
	for _, obj := range objects {
		data, err := a.blobs.Fetch(ctx, obj.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch chunk %s: %w", obj.Key, err)
		}
		buf.Write(data)
	}

	safeMime, ext := storage.NormalizeMime(mimeType)
	finalKey := storage.FinalKey(sessionID, uploadID, ext)

	size := int64(buf.Len())
	if err := a.blobs.Put(ctx, finalKey, &buf, size, safeMime); err != nil {
		return nil, fmt.Errorf("failed to store assembled audio: %w", err)
	}

	if a.metrics != nil {
		a.metrics.AssembliesCompleted.Inc()
		a.metrics.AssembledBytes.Observe(float64(size))
	}
	a.logger.Info("assembled upload",
		zap.String("upload_id", uploadID),
		zap.Int("chunks", len(objects)),
		zap.Int64("bytes", size),
		zap.String("key", finalKey),
	)

	return &AssembleResult{
		Key:      finalKey,
		Size:     size,
		MimeType: safeMime,
		Ext:      ext,
		ChunkKeys: lo.Map(objects, func(obj storage.ObjectInfo, _ int) string {
			return obj.Key
		}),
	}, nil
}

// CleanupChunks removes the source chunks best-effort. Failures are logged,
// not propagated: retention cleans leftovers up again.
func (a *Assembler) CleanupChunks(ctx context.Context, uploadID string, keys []string) {
	for _, err := range a.blobs.DeleteMany(ctx, keys) {
		a.logger.Warn("failed to delete source chunk",
			zap.String("upload_id", uploadID),
			zap.Error(err),
		)
	}
}
