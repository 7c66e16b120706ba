package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/movie-api/moviecheck/internal/telemetry"
)

// ErrTranscriptNotFound is returned by Fetch when no transcript exists for a run
var ErrTranscriptNotFound = errors.New("transcript not found")

// TranscriptKey returns the object key of a run transcript, <prefix>/<runID>.jsonl
func TranscriptKey(prefix, runID string) string {
	return path.Join(strings.Trim(prefix, "/"), runID+".jsonl")
}

// Archive uploads a run transcript. backend only labels the upload metric.
func Archive(ctx context.Context, s Storage, backend, prefix, runID string, transcript []byte) (*UploadResult, error) {
	key := TranscriptKey(prefix, runID)

	res, err := s.Upload(ctx, key, bytes.NewReader(transcript), int64(len(transcript)))
	if err != nil {
		telemetry.ArtifactUploadsTotal.WithLabelValues(backend, telemetry.OutcomeFail).Inc()
		return nil, fmt.Errorf("failed to archive transcript %s: %w", key, err)
	}
	telemetry.ArtifactUploadsTotal.WithLabelValues(backend, telemetry.OutcomePass).Inc()

	slog.Info("transcript archived", "backend", backend, "key", res.Key, "size", res.Size, "sha256", res.Checksum)
	return res, nil
}

// Fetch reads back the archived transcript of a run
func Fetch(ctx context.Context, s Storage, prefix, runID string) ([]byte, error) {
	key := TranscriptKey(prefix, runID)

	exists, err := s.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up transcript %s: %w", key, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTranscriptNotFound, key)
	}

	rc, err := s.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download transcript %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript %s: %w", key, err)
	}
	return data, nil
}
