package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the outcome a ConversionEvent reports.
type EventType string

const (
	EventConversionSucceeded EventType = "conversion.succeeded"
	EventConversionFailed    EventType = "conversion.failed"
	EventConversionRejected  EventType = "conversion.rejected"
)

// ConversionEvent is emitted once per conversion attempt.
type ConversionEvent struct {
	Type         EventType `json:"type"`
	ArtifactID   uuid.UUID `json:"artifact_id,omitempty"`
	SourceName   string    `json:"source_name"`
	SourceFormat string    `json:"source_format"`
	TargetFormat string    `json:"target_format"`
	OutputName   string    `json:"output_name,omitempty"`
	Size         int64     `json:"size,omitempty"`
	Error        string    `json:"error,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventPublisher defines the interface for publishing conversion events.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type EventPublisher interface {
	// PublishConversionEvent sends an event to downstream consumers.
	PublishConversionEvent(ctx context.Context, event ConversionEvent) error

	// Close gracefully closes the connection to the broker.
	Close() error
}
