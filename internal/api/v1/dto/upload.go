package dto

import (
	"time"

	"sessionscribe/internal/transcribe"
)

// InitUploadRequest starts a new upload session for a business session.
type InitUploadRequest struct {
	SessionID  string `json:"sessionId" binding:"required"`
	MimeType   string `json:"mimeType" binding:"required"`
	TotalBytes int64  `json:"totalBytes" binding:"omitempty,min=1"`
}

// InitUploadResponse returns the upload identity and its retention deadline.
type InitUploadResponse struct {
	UploadID  string    `json:"uploadId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ChunkResponse acknowledges one stored chunk.
type ChunkResponse struct {
	OK          bool `json:"ok"`
	ChunkIndex  int  `json:"chunkIndex"`
	TotalChunks int  `json:"totalChunks"`
}

// FinalizeRequest triggers assembly and transcription of an upload.
// TotalChunks is advisory: when present, assembly verifies the chunk count
// against it; when absent, the count found in storage is used.
type FinalizeRequest struct {
	UploadID    string `json:"uploadId" binding:"required"`
	SessionID   string `json:"sessionId" binding:"required"`
	MimeType    string `json:"mimeType"`
	TotalChunks int    `json:"totalChunks" binding:"omitempty,min=1"`
}

// TranscriptResponse acknowledges a finished finalize or retry.
type TranscriptResponse struct {
	OK               bool `json:"ok"`
	TranscriptLength int  `json:"transcriptLength"`
}

// CancelResponse acknowledges a cancel, reporting suppressed cleanup errors.
type CancelResponse struct {
	OK         bool     `json:"ok"`
	Suppressed []string `json:"suppressed,omitempty"`
}

// StatusResponse is the read-only projection used by polling clients.
type StatusResponse struct {
	Status             string               `json:"status"`
	TranscriptText     string               `json:"transcriptText,omitempty"`
	TranscriptSegments []transcribe.Segment `json:"transcriptSegments,omitempty"`
}

// CleanupResponse reports one expiry sweep.
type CleanupResponse struct {
	OK           bool     `json:"ok"`
	DeletedCount int      `json:"deletedCount"`
	Errors       []string `json:"errors,omitempty"`
}
