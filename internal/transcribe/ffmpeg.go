package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FFmpegTranscoder shells out to ffmpeg to rewrap audio as ogg/opus, the
// streamable format the segmenter can safely cut.
type FFmpegTranscoder struct {
	logger *zap.Logger
}

// NewFFmpegTranscoder creates the transcoder. ffmpeg must be on PATH.
func NewFFmpegTranscoder(logger *zap.Logger) *FFmpegTranscoder {
	return &FFmpegTranscoder{logger: logger}
}

func (t *FFmpegTranscoder) ToOgg(ctx context.Context, audio []byte, mimeType string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "transcode-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	_, ext := normalizeExt(mimeType)
	inPath := filepath.Join(dir, "input."+ext)
	outPath := filepath.Join(dir, "output.ogg")

	if err := os.WriteFile(inPath, audio, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp input: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inPath,
		"-vn",
		"-acodec", "libopus",
		"-f", "ogg",
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("FFmpeg error: %v, stderr: %s", err, stderr.String())
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcoded output: %w", err)
	}

	t.logger.Info("transcoded audio to ogg/opus",
		zap.Int("input_bytes", len(audio)),
		zap.Int("output_bytes", len(out)),
	)
	return out, nil
}

func normalizeExt(mimeType string) (string, string) {
	switch {
	case strings.Contains(mimeType, "wav"):
		return "audio/wav", "wav"
	case strings.Contains(mimeType, "mp3"), strings.Contains(mimeType, "mpeg"):
		return "audio/mpeg", "mp3"
	case strings.Contains(mimeType, "mp4"), strings.Contains(mimeType, "m4a"):
		return "audio/mp4", "mp4"
	case strings.Contains(mimeType, "ogg"):
		return "audio/ogg", "ogg"
	default:
		return "audio/webm", "webm"
	}
}
