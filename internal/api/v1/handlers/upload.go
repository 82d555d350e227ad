package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apierrors "sessionscribe/internal/api/errors"
	"sessionscribe/internal/api/middleware"
	"sessionscribe/internal/api/v1/dto"
	"sessionscribe/internal/upload"
)

// UploadService is the slice of the upload orchestrator the handlers need.
type UploadService interface {
	Init(ctx context.Context, sessionID, ownerID, mimeType string, totalBytes int64) (*upload.Session, error)
	StoreChunk(ctx context.Context, uploadID string, index int, data []byte) (string, error)
	Finalize(ctx context.Context, uploadID, sessionID, mimeType string, totalChunks int) (*upload.Session, error)
	Retry(ctx context.Context, sessionID, ownerID string) (*upload.Session, error)
	Cancel(ctx context.Context, sessionID, ownerID string) (*upload.CleanupReport, error)
	Status(ctx context.Context, sessionID, ownerID string) (*upload.Session, error)
}

// UploadHandler exposes the upload lifecycle over HTTP.
type UploadHandler struct {
	service UploadService
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(service UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Init handles POST /upload/init.
func (h *UploadHandler) Init(c *gin.Context) {
	var req dto.InitUploadRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	sess, err := h.service.Init(c.Request.Context(), req.SessionID, middleware.CallerID(c), req.MimeType, req.TotalBytes)
	if err != nil {
		middleware.HandleError(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, dto.InitUploadResponse{
		UploadID:  sess.UploadID,
		ExpiresAt: sess.ExpiresAt,
	})
}

// Chunk handles POST /upload/chunk. The binary body is one chunk; identity
// and position travel in headers so the body stays raw audio.
func (h *UploadHandler) Chunk(c *gin.Context) {
	uploadID := c.GetHeader("X-Upload-Id")
	if uploadID == "" {
		middleware.HandleError(c, apierrors.NewBadRequestError("X-Upload-Id header is required"))
		return
	}

	chunkIndex, err := strconv.Atoi(c.GetHeader("X-Chunk-Index"))
	if err != nil || chunkIndex < 0 {
		middleware.HandleError(c, apierrors.NewBadRequestError("X-Chunk-Index header must be a non-negative integer"))
		return
	}

	totalChunks, err := strconv.Atoi(c.GetHeader("X-Total-Chunks"))
	if err != nil || totalChunks < 1 {
		totalChunks = 1
	}

	data, err := c.GetRawData()
	if err != nil {
		middleware.HandleError(c, apierrors.NewBadRequestError("failed to read chunk body"))
		return
	}
	if len(data) == 0 {
		middleware.HandleError(c, apierrors.NewValidationError("Validation failed", map[string]string{"chunk": "must not be empty"}))
		return
	}

	if _, err := h.service.StoreChunk(c.Request.Context(), uploadID, chunkIndex, data); err != nil {
		middleware.HandleError(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, dto.ChunkResponse{
		OK:          true,
		ChunkIndex:  chunkIndex,
		TotalChunks: totalChunks,
	})
}

// Finalize handles POST /upload/finalize. Blocking: assembly plus
// transcription run before the response.
func (h *UploadHandler) Finalize(c *gin.Context) {
	var req dto.FinalizeRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	sess, err := h.service.Finalize(c.Request.Context(), req.UploadID, req.SessionID, req.MimeType, req.TotalChunks)
	if err != nil {
		middleware.HandleError(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, dto.TranscriptResponse{
		OK:               true,
		TranscriptLength: len(sess.Transcript),
	})
}

// Retry handles POST /upload/retry/:sessionId.
func (h *UploadHandler) Retry(c *gin.Context) {
	sess, err := h.service.Retry(c.Request.Context(), c.Param("sessionId"), middleware.CallerID(c))
	if err != nil {
		middleware.HandleError(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, dto.TranscriptResponse{
		OK:               true,
		TranscriptLength: len(sess.Transcript),
	})
}

// Cancel handles POST /upload/cancel/:sessionId.
func (h *UploadHandler) Cancel(c *gin.Context) {
	report, err := h.service.Cancel(c.Request.Context(), c.Param("sessionId"), middleware.CallerID(c))
	if err != nil {
		middleware.HandleError(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, dto.CancelResponse{
		OK:         true,
		Suppressed: report.Suppressed,
	})
}

// Status handles GET /upload/status/:sessionId.
func (h *UploadHandler) Status(c *gin.Context) {
	sess, err := h.service.Status(c.Request.Context(), c.Param("sessionId"), middleware.CallerID(c))
	if err != nil {
		middleware.HandleError(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, dto.StatusResponse{
		Status:             string(sess.Status),
		TranscriptText:     sess.Transcript,
		TranscriptSegments: sess.Segments,
	})
}

// mapServiceError translates domain errors into APIError responses.
func mapServiceError(err error) error {
	var mismatch *upload.MismatchError
	if errors.As(err, &mismatch) {
		return apierrors.NewConflictError(mismatch.Error())
	}

	var transition *upload.TransitionError
	if errors.As(err, &transition) {
		return apierrors.NewConflictError(transition.Error())
	}

	switch {
	case errors.Is(err, upload.ErrUploadBusy), errors.Is(err, upload.ErrStaleSession):
		return apierrors.NewConflictError(err.Error())
	case errors.Is(err, upload.ErrNotFound):
		return apierrors.NewNotFoundError("upload session")
	case errors.Is(err, upload.ErrNoUploadToRetry), errors.Is(err, upload.ErrNoChunks):
		return &apierrors.APIError{Kind: apierrors.KindNotFound, Message: err.Error()}
	default:
		return apierrors.NewInternalError(err.Error())
	}
}
