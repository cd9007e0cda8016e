package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/flipconvert/internal/domain/model"
	"github.com/hszk-dev/flipconvert/internal/domain/repository"
	"github.com/hszk-dev/flipconvert/internal/infrastructure/cache"
	"github.com/hszk-dev/flipconvert/internal/infrastructure/metrics"
)

// ConvertInput contains the input parameters for a conversion.
type ConvertInput struct {
	FileName     string
	MimeType     string
	TargetFormat string
	Data         []byte
}

// ConvertOutput describes a published artifact and where to download it.
type ConvertOutput struct {
	Artifact    *model.Artifact
	DownloadURL string
}

// ConversionService defines the interface for the conversion host operations.
type ConversionService interface {
	// Targets lists the formats a file can be converted to.
	Targets(fileName, mimeType string) model.TargetOptions

	// Convert runs a conversion and publishes the result as an artifact.
	Convert(ctx context.Context, input ConvertInput) (*ConvertOutput, error)

	// GetArtifact returns a fresh download link for a published artifact.
	// Returns repository.ErrArtifactNotFound once the artifact has expired.
	GetArtifact(ctx context.Context, artifactID uuid.UUID) (*ConvertOutput, error)
}

// ConversionServiceConfig holds configuration for ConversionService.
type ConversionServiceConfig struct {
	// ArtifactTTL is how long a published artifact stays available.
	ArtifactTTL time.Duration
	// DownloadURLExpiry caps the lifetime of presigned download URLs.
	DownloadURLExpiry time.Duration
}

// DefaultConversionServiceConfig returns the default configuration.
func DefaultConversionServiceConfig() ConversionServiceConfig {
	return ConversionServiceConfig{
		ArtifactTTL:       15 * time.Minute,
		DownloadURLExpiry: 15 * time.Minute,
	}
}

type conversionService struct {
	runner    Runner
	storage   repository.ArtifactStorage
	artifacts cache.ArtifactCache
	events    repository.EventPublisher
	sfGroup   singleflight.Group

	artifactTTL       time.Duration
	downloadURLExpiry time.Duration
}

// NewConversionService creates a new ConversionService instance.
// events may be nil, in which case no conversion events are published.
func NewConversionService(
	runner Runner,
	storage repository.ArtifactStorage,
	artifacts cache.ArtifactCache,
	events repository.EventPublisher,
	cfg ConversionServiceConfig,
) ConversionService {
	return &conversionService{
		runner:            runner,
		storage:           storage,
		artifacts:         artifacts,
		events:            events,
		artifactTTL:       cfg.ArtifactTTL,
		downloadURLExpiry: cfg.DownloadURLExpiry,
	}
}

// Targets lists the matrix-allowed targets for a file.
func (s *conversionService) Targets(fileName, mimeType string) model.TargetOptions {
	return model.TargetsFor(fileName, mimeType)
}

// Convert runs the conversion, uploads the result and records it in the artifact cache.
func (s *conversionService) Convert(ctx context.Context, input ConvertInput) (*ConvertOutput, error) {
	req, err := model.NewConversionRequest(input.Data, input.FileName, input.MimeType, input.TargetFormat)
	if err != nil {
		s.publish(ctx, rejectedEvent(input, err))
		return nil, err
	}

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		s.publish(ctx, failedEvent(req, err))
		return nil, err
	}

	out, err := s.publishArtifact(ctx, result)
	if err != nil {
		s.publish(ctx, failedEvent(req, err))
		return nil, err
	}

	s.publish(ctx, repository.ConversionEvent{
		Type:         repository.EventConversionSucceeded,
		ArtifactID:   out.Artifact.ID,
		SourceName:   req.SourceName(),
		SourceFormat: req.SourceFormat().String(),
		TargetFormat: req.TargetFormat().String(),
		OutputName:   out.Artifact.OutputName,
		Size:         out.Artifact.Size,
		OccurredAt:   time.Now(),
	})

	return out, nil
}

// publishArtifact uploads the result and returns its download link.
// The uploaded object is removed again if no link can be issued.
func (s *conversionService) publishArtifact(ctx context.Context, result *model.ConversionResult) (*ConvertOutput, error) {
	artifact, err := model.NewArtifact(result, s.artifactTTL)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}

	if err := s.storage.Put(ctx, artifact, bytes.NewReader(result.Data)); err != nil {
		return nil, fmt.Errorf("upload artifact: %w", err)
	}

	downloadURL, err := s.downloadURL(ctx, artifact)
	if err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), artifact.StorageKey); delErr != nil {
			slog.Warn("failed to remove unpublished artifact",
				"artifact_id", artifact.ID,
				"storage_key", artifact.StorageKey,
				"error", delErr,
			)
		}
		return nil, err
	}

	// Log but don't fail - the caller already holds a download link
	if err := s.artifacts.Set(ctx, artifact, s.artifactTTL); err != nil {
		slog.Warn("failed to cache artifact",
			"artifact_id", artifact.ID,
			"error", err,
		)
	}

	slog.Info("artifact published",
		"artifact_id", artifact.ID,
		"output_name", artifact.OutputName,
		"size", artifact.Size,
		"expires_at", artifact.ExpiresAt,
	)

	return &ConvertOutput{Artifact: artifact, DownloadURL: downloadURL}, nil
}

// GetArtifact looks the artifact up in the cache and signs a new download URL.
// Uses singleflight to coalesce concurrent lookups for the same artifact.
func (s *conversionService) GetArtifact(ctx context.Context, artifactID uuid.UUID) (*ConvertOutput, error) {
	key := artifactID.String()
	result, err, shared := s.sfGroup.Do(key, func() (any, error) {
		return s.getArtifact(ctx, artifactID)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}

	out := result.(*ConvertOutput)
	return &ConvertOutput{Artifact: out.Artifact, DownloadURL: out.DownloadURL}, nil
}

func (s *conversionService) getArtifact(ctx context.Context, artifactID uuid.UUID) (*ConvertOutput, error) {
	artifact, err := s.artifacts.Get(ctx, artifactID)
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	if artifact == nil || artifact.IsExpired(time.Now()) {
		return nil, repository.ErrArtifactNotFound
	}

	exists, err := s.storage.Exists(ctx, artifact.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("check artifact object: %w", err)
	}
	if !exists {
		// The object was removed behind the cache's back
		if err := s.artifacts.Delete(ctx, artifactID); err != nil {
			slog.Warn("failed to evict orphaned artifact",
				"artifact_id", artifactID,
				"error", err,
			)
		}
		return nil, repository.ErrArtifactNotFound
	}

	downloadURL, err := s.downloadURL(ctx, artifact)
	if err != nil {
		return nil, err
	}

	return &ConvertOutput{Artifact: artifact, DownloadURL: downloadURL}, nil
}

// downloadURL signs a URL that never outlives the artifact.
func (s *conversionService) downloadURL(ctx context.Context, artifact *model.Artifact) (string, error) {
	expiry := min(s.downloadURLExpiry, artifact.TTL(time.Now()))
	if expiry < time.Second {
		return "", repository.ErrArtifactNotFound
	}

	u, err := s.storage.DownloadURL(ctx, artifact, expiry)
	if err != nil {
		return "", fmt.Errorf("generate download URL: %w", err)
	}
	return u, nil
}

// publish sends a conversion event. Failures are logged and counted, never returned.
func (s *conversionService) publish(ctx context.Context, event repository.ConversionEvent) {
	if s.events == nil {
		return
	}

	if err := s.events.PublishConversionEvent(context.WithoutCancel(ctx), event); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), metrics.PublishStatusError).Inc()
		slog.Warn("failed to publish conversion event",
			"type", event.Type,
			"source_name", event.SourceName,
			"error", err,
		)
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), metrics.PublishStatusSuccess).Inc()
}

func rejectedEvent(input ConvertInput, err error) repository.ConversionEvent {
	return repository.ConversionEvent{
		Type:         repository.EventConversionRejected,
		SourceName:   input.FileName,
		TargetFormat: model.NormalizeFormat(input.TargetFormat).String(),
		Error:        err.Error(),
		OccurredAt:   time.Now(),
	}
}

// failedEvent reports a run that did not produce an artifact.
// Matrix rejections are reported as rejected rather than failed.
func failedEvent(req *model.ConversionRequest, err error) repository.ConversionEvent {
	eventType := repository.EventConversionFailed
	if errors.Is(err, model.ErrUnsupportedConversion) || errors.Is(err, model.ErrInvalidRequest) {
		eventType = repository.EventConversionRejected
	}

	return repository.ConversionEvent{
		Type:         eventType,
		SourceName:   req.SourceName(),
		SourceFormat: req.SourceFormat().String(),
		TargetFormat: req.TargetFormat().String(),
		Error:        err.Error(),
		OccurredAt:   time.Now(),
	}
}
