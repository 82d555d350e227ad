package upload

import (
	"fmt"
	"time"

	"sessionscribe/internal/transcribe"
)

// Status is the closed set of upload session lifecycle states.
type Status string

const (
	StatusUploading    Status = "uploading"
	StatusAssembling   Status = "assembling"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusError        Status = "error"
	StatusDeleted      Status = "deleted"
)

// transitions is the forward edge set of the lifecycle state machine.
// error → assembling/transcribing are the retry re-entry points;
// transcribed → deleted belongs to the expiry sweeper.
var transitions = map[Status][]Status{
	StatusUploading:    {StatusAssembling},
	StatusAssembling:   {StatusTranscribing, StatusError},
	StatusTranscribing: {StatusTranscribed, StatusError},
	StatusError:        {StatusAssembling, StatusTranscribing},
	StatusTranscribed:  {StatusDeleted},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUploading, StatusAssembling, StatusTranscribing, StatusTranscribed, StatusError, StatusDeleted:
		return true
	}
	return false
}

// Terminal reports whether the session can make no further forward progress.
func (s Status) Terminal() bool {
	return s == StatusTranscribed || s == StatusDeleted
}

// CanTransition reports whether the state machine allows moving to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Session is one audio capture attempt: the single entity this pipeline
// persists. StoragePath is empty until assembly completes and is cleared
// whenever the blob it names is deleted.
type Session struct {
	UploadID    string               `json:"uploadId"`
	SessionID   string               `json:"sessionId"`
	OwnerID     string               `json:"ownerId"`
	MimeType    string               `json:"mimeType"`
	TotalBytes  int64                `json:"totalBytes,omitempty"`
	Status      Status               `json:"status"`
	StoragePath string               `json:"storagePath,omitempty"`
	Transcript  string               `json:"transcriptText,omitempty"`
	Segments    []transcribe.Segment `json:"transcriptSegments,omitempty"`
	ExpiresAt   time.Time            `json:"expiresAt"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// TransitionError reports a rejected state machine move.
type TransitionError struct {
	UploadID string
	From     Status
	To       Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("upload %s: illegal transition %s -> %s", e.UploadID, e.From, e.To)
}
