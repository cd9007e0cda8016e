// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flipconvert"

var (
	// ConversionsTotal tracks conversion job outcomes.
	// Labels:
	//   - result: success, unsupported, transcode_error, invalid
	//   - target_family: raster-image, vector-image, audio, video, unknown
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Total number of conversion jobs by outcome",
		},
		[]string{"result", "target_family"},
	)

	// ConversionDuration tracks how long staged jobs take, cleanup included.
	// Labels:
	//   - result: success, transcode_error
	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duration of conversion jobs from staging to cleanup",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"result"},
	)

	// CleanupFailuresTotal counts staged resources that could not be deleted.
	// Labels:
	//   - resource: input, output
	CleanupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_failures_total",
			Help:      "Total number of staged resource deletions that failed",
		},
		[]string{"resource"},
	)

	// ConvertersInUse reports how many pooled converters are running a job.
	ConvertersInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "converters_in_use",
			Help:      "Number of pooled converters currently running a job",
		},
	)

	// CacheOperationsTotal tracks cache operations (get, set, delete).
	// Labels:
	//   - operation: get, set, delete
	//   - status: hit, miss, success, error
	//   - cache_type: redis
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// EventsPublishedTotal tracks conversion events sent to the broker.
	// Labels:
	//   - type: conversion.succeeded, conversion.failed, conversion.rejected
	//   - status: success, error
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of conversion events published",
		},
		[]string{"type", "status"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)
)

// Conversion result constants.
const (
	ResultSuccess        = "success"
	ResultUnsupported    = "unsupported"
	ResultTranscodeError = "transcode_error"
	ResultInvalid        = "invalid"
)

// Staged resource constants.
const (
	ResourceInput  = "input"
	ResourceOutput = "output"
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet    = "get"
	CacheOpSet    = "set"
	CacheOpDelete = "delete"
)

// Cache type constants.
const (
	CacheTypeRedis = "redis"
)

// Publish status constants.
const (
	PublishStatusSuccess = "success"
	PublishStatusError   = "error"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)
