package transcribe

import (
	"context"
)

// Segment is one time-aligned span of transcribed speech, in seconds relative
// to the audio it was transcribed from.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the transcript of one audio buffer.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Request carries one audio buffer to the provider.
type Request struct {
	Audio    []byte
	MimeType string
	Filename string
}

// Provider converts an audio buffer into text plus time-stamped segments.
// Implementations enforce their own per-request size limits and rate limits;
// retry policy is owned by the caller.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
