package transcribe

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvider returns canned results per call and records the requests it saw.
type fakeProvider struct {
	requests []Request
	results  []*Result
	err      error
}

func (p *fakeProvider) Transcribe(ctx context.Context, req Request) (*Result, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	idx := len(p.requests) - 1
	if idx >= len(p.results) {
		idx = len(p.results) - 1
	}
	return p.results[idx], nil
}

type fakeTranscoder struct {
	calls  int
	output []byte
	err    error
}

func (t *fakeTranscoder) ToOgg(ctx context.Context, audio []byte, mimeType string) ([]byte, error) {
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	return t.output, nil
}

func newTestSegmenter(provider Provider, transcoder Transcoder, maxBytes int64) *Segmenter {
	retrier := NewRetrier(RetryPolicy{
		MaxAttempts:      1,
		RateLimitBackoff: time.Millisecond,
		RateLimitMargin:  time.Millisecond,
		TransientBackoff: time.Millisecond,
	}, zap.NewNop(), nil)
	return NewSegmenter(provider, retrier, transcoder, maxBytes, zap.NewNop(), nil)
}

func TestTranscribeSinglePieceUnderLimit(t *testing.T) {
	provider := &fakeProvider{results: []*Result{{
		Text:     "hello world",
		Segments: []Segment{{Start: 0, End: 2.5, Text: "hello world"}},
	}}}
	s := newTestSegmenter(provider, nil, 1024)

	result, err := s.Transcribe(context.Background(), []byte("tiny"), "audio/webm", "audio.webm")

	require.NoError(t, err)
	assert.Len(t, provider.requests, 1)
	assert.Equal(t, "hello world", result.Text)
	assert.Equal(t, []byte("tiny"), provider.requests[0].Audio)
}

func TestTranscribeSplitsOversizedBuffer(t *testing.T) {
	provider := &fakeProvider{results: []*Result{
		{
			Text:     "first half",
			Segments: []Segment{{Start: 0, End: 20.1, Text: "first"}, {Start: 20.1, End: 42.3, Text: "half"}},
		},
		{
			Text:     "second half",
			Segments: []Segment{{Start: 0, End: 15, Text: "second"}, {Start: 15, End: 30, Text: "half"}},
		},
	}}
	s := newTestSegmenter(provider, nil, 5)

	audio := bytes.Repeat([]byte{0xAB}, 9)
	result, err := s.Transcribe(context.Background(), audio, "audio/webm", "audio.webm")

	require.NoError(t, err)
	require.Len(t, provider.requests, 2)
	assert.Len(t, provider.requests[0].Audio, 5)
	assert.Len(t, provider.requests[1].Audio, 4)

	assert.Equal(t, "first half second half", result.Text)
	require.Len(t, result.Segments, 4)
	// Second piece timestamps shift by the first piece's last segment end.
	assert.InDelta(t, 42.3, result.Segments[2].Start, 1e-9)
	assert.InDelta(t, 57.3, result.Segments[2].End, 1e-9)
	assert.InDelta(t, 72.3, result.Segments[3].End, 1e-9)
}

func TestTranscribeOffsetSurvivesEmptyPiece(t *testing.T) {
	provider := &fakeProvider{results: []*Result{
		{Text: "one", Segments: []Segment{{Start: 0, End: 10, Text: "one"}}},
		{Text: "", Segments: nil},
		{Text: "three", Segments: []Segment{{Start: 0, End: 5, Text: "three"}}},
	}}
	s := newTestSegmenter(provider, nil, 4)

	result, err := s.Transcribe(context.Background(), bytes.Repeat([]byte{1}, 12), "audio/ogg", "audio.ogg")

	require.NoError(t, err)
	assert.Equal(t, "one three", result.Text)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, 10.0, result.Segments[1].Start)
	assert.Equal(t, 15.0, result.Segments[1].End)
}

func TestTranscribeTranscodesNonStreamableContainer(t *testing.T) {
	provider := &fakeProvider{results: []*Result{{
		Text:     "converted",
		Segments: []Segment{{Start: 0, End: 1, Text: "converted"}},
	}}}
	transcoder := &fakeTranscoder{output: []byte("ogg")}
	s := newTestSegmenter(provider, transcoder, 10)

	result, err := s.Transcribe(context.Background(), bytes.Repeat([]byte{2}, 20), "audio/wav", "audio.wav")

	require.NoError(t, err)
	assert.Equal(t, 1, transcoder.calls)
	// Conversion shrank the buffer under the limit, so one piece suffices.
	require.Len(t, provider.requests, 1)
	assert.Equal(t, "audio/ogg", provider.requests[0].MimeType)
	assert.Equal(t, "audio.ogg", provider.requests[0].Filename)
	assert.Equal(t, "converted", result.Text)
}

func TestTranscribeNonStreamableWithoutTranscoderFails(t *testing.T) {
	provider := &fakeProvider{results: []*Result{{Text: "x"}}}
	s := newTestSegmenter(provider, nil, 10)

	_, err := s.Transcribe(context.Background(), bytes.Repeat([]byte{3}, 20), "audio/mpeg", "audio.mp3")

	require.Error(t, err)
	assert.Empty(t, provider.requests)
}

func TestTranscribeTranscodeFailurePropagates(t *testing.T) {
	provider := &fakeProvider{results: []*Result{{Text: "x"}}}
	transcoder := &fakeTranscoder{err: errors.New("ffmpeg exploded")}
	s := newTestSegmenter(provider, transcoder, 10)

	_, err := s.Transcribe(context.Background(), bytes.Repeat([]byte{4}, 20), "audio/mp4", "audio.mp4")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcode before split failed")
}

func TestTranscribePieceFailureNamesThePiece(t *testing.T) {
	provider := &fakeProvider{err: errors.New("invalid model")}
	s := newTestSegmenter(provider, nil, 4)

	_, err := s.Transcribe(context.Background(), bytes.Repeat([]byte{5}, 10), "audio/webm", "audio.webm")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "piece 1/3")
}
