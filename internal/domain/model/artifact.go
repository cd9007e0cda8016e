package model

import (
	"errors"
	"path"
	"time"

	"github.com/google/uuid"
)

// Artifact is a published conversion result that can be downloaded until it expires.
type Artifact struct {
	ID         uuid.UUID
	OutputName string
	MimeType   string
	Size       int64
	StorageKey string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

var (
	ErrEmptyResult     = errors.New("conversion result cannot be nil")
	ErrEmptyOutputName = errors.New("output name cannot be empty")
	ErrInvalidTTL      = errors.New("artifact TTL must be positive")
)

// NewArtifact describes a conversion result that is about to be published.
// The storage key has the form artifacts/{id}/{output_name}.
func NewArtifact(result *ConversionResult, ttl time.Duration) (*Artifact, error) {
	if result == nil {
		return nil, ErrEmptyResult
	}
	if result.OutputName == "" {
		return nil, ErrEmptyOutputName
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	id := uuid.New()
	now := time.Now()
	return &Artifact{
		ID:         id,
		OutputName: result.OutputName,
		MimeType:   result.MimeType,
		Size:       result.Size(),
		StorageKey: path.Join("artifacts", id.String(), result.OutputName),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

// IsExpired reports whether the artifact is past its expiry at the given time.
func (a *Artifact) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// TTL returns how long the artifact remains available from now.
func (a *Artifact) TTL(now time.Time) time.Duration {
	if a.IsExpired(now) {
		return 0
	}
	return a.ExpiresAt.Sub(now)
}
