package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/flipconvert/internal/domain/model"
)

// ArtifactCache holds published artifact records until they expire.
// Implementations should handle serialization/deserialization transparently.
type ArtifactCache interface {
	// Get retrieves an artifact by ID.
	// Returns nil, nil if the artifact is not cached (unknown or expired).
	Get(ctx context.Context, artifactID uuid.UUID) (*model.Artifact, error)

	// Set stores an artifact with the specified TTL.
	Set(ctx context.Context, artifact *model.Artifact, ttl time.Duration) error

	// Delete removes an artifact by ID.
	// Returns nil if the artifact was not cached.
	Delete(ctx context.Context, artifactID uuid.UUID) error
}
