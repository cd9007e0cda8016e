package repository

import (
	"context"
	"io"
	"time"

	"github.com/hszk-dev/flipconvert/internal/domain/model"
)

// ArtifactStorage holds published conversion results until they expire.
type ArtifactStorage interface {
	// Put uploads body under artifact.StorageKey. The object is served as an
	// attachment named artifact.OutputName.
	Put(ctx context.Context, artifact *model.Artifact, body io.Reader) error

	// DownloadURL signs a time-limited GET for the artifact.
	DownloadURL(ctx context.Context, artifact *model.Artifact, expiry time.Duration) (string, error)

	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}
