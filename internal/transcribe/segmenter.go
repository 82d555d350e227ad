package transcribe

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sessionscribe/internal/metrics"
)

// Transcoder converts a non-streamable container to ogg/opus so the buffer
// can be cut at arbitrary byte offsets.
type Transcoder interface {
	ToOgg(ctx context.Context, audio []byte, mimeType string) ([]byte, error)
}

// Segmenter splits oversized buffers into provider-size-safe pieces,
// transcribes each through the retry controller, and merges the results with
// timestamp continuity.
type Segmenter struct {
	provider   Provider
	retrier    *Retrier
	transcoder Transcoder
	maxBytes   int64
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewSegmenter wires the segmented transcriber. maxBytes is the provider's
// per-request ceiling; transcoder may be nil when callers guarantee
// split-safe input.
func NewSegmenter(provider Provider, retrier *Retrier, transcoder Transcoder, maxBytes int64, logger *zap.Logger, m *metrics.Metrics) *Segmenter {
	return &Segmenter{
		provider:   provider,
		retrier:    retrier,
		transcoder: transcoder,
		maxBytes:   maxBytes,
		logger:     logger,
		metrics:    m,
	}
}

// splitSafe reports whether the container tolerates cuts at arbitrary byte
// offsets. Chunked/streamable formats do; single-header containers (wav, mp3,
// mp4) do not and must be transcoded first.
func splitSafe(mimeType string) bool {
	return strings.Contains(mimeType, "webm") || strings.Contains(mimeType, "ogg")
}

// Transcribe produces the transcript of a whole assembled buffer.
func (s *Segmenter) Transcribe(ctx context.Context, audio []byte, mimeType, filename string) (*Result, error) {
	if int64(len(audio)) <= s.maxBytes {
		return s.transcribePiece(ctx, audio, mimeType, filename)
	}

	if !splitSafe(mimeType) {
		if s.transcoder == nil {
			return nil, fmt.Errorf("container %s is not byte-split-safe and no transcoder is configured", mimeType)
		}
		s.logger.Info("transcoding non-streamable container before splitting",
			zap.String("mime_type", mimeType),
			zap.Int("bytes", len(audio)),
		)
		converted, err := s.transcoder.ToOgg(ctx, audio, mimeType)
		if err != nil {
			return nil, fmt.Errorf("transcode before split failed: %w", err)
		}
		audio = converted
		mimeType = "audio/ogg"
		filename = "audio.ogg"

		if int64(len(audio)) <= s.maxBytes {
			return s.transcribePiece(ctx, audio, mimeType, filename)
		}
	}

	parts := int((int64(len(audio)) + s.maxBytes - 1) / s.maxBytes)
	s.logger.Info("splitting buffer for transcription",
		zap.Int("bytes", len(audio)),
		zap.Int("pieces", parts),
	)

	var (
		timeOffset  float64
		allSegments []Segment
		allTexts    []string
	)

	for i := 0; i < parts; i++ {
		start := int64(i) * s.maxBytes
		end := start + s.maxBytes
		if end > int64(len(audio)) {
			end = int64(len(audio))
		}

		result, err := s.transcribePiece(ctx, audio[start:end], mimeType, filename)
		if err != nil {
			return nil, fmt.Errorf("piece %d/%d: %w", i+1, parts, err)
		}

		if result.Text != "" {
			allTexts = append(allTexts, result.Text)
		}
		for _, seg := range result.Segments {
			allSegments = append(allSegments, Segment{
				Start: seg.Start + timeOffset,
				End:   seg.End + timeOffset,
				Text:  seg.Text,
			})
		}
		if len(result.Segments) > 0 {
			timeOffset = allSegments[len(allSegments)-1].End
		}
	}

	return &Result{
		Text:     strings.Join(allTexts, " "),
		Segments: allSegments,
	}, nil
}

func (s *Segmenter) transcribePiece(ctx context.Context, audio []byte, mimeType, filename string) (*Result, error) {
	result, err := s.retrier.Do(ctx, func(ctx context.Context) (*Result, error) {
		return s.provider.Transcribe(ctx, Request{
			Audio:    audio,
			MimeType: mimeType,
			Filename: filename,
		})
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.TranscriptionFailures.Inc()
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PiecesTranscribed.Inc()
	}
	return result, nil
}
