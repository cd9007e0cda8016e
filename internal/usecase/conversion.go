package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hszk-dev/flipconvert/internal/domain/model"
	"github.com/hszk-dev/flipconvert/internal/infrastructure/metrics"
	"github.com/hszk-dev/flipconvert/internal/transcoder"
)

// inputFlag marks the staged source in the transcoder invocation.
const inputFlag = "-i"

// BuildInvocation returns the transcoder argument list for one job:
// the input flag and name first, then the target's encoder profile in
// registry order, then the output name last.
func BuildInvocation(inputName string, target model.Format, outputName string) []string {
	profile := model.ParametersFor(target)

	args := make([]string, 0, len(profile)+3)
	args = append(args, inputFlag, inputName)
	args = append(args, profile...)
	args = append(args, outputName)
	return args
}

// RunConversion converts req using tc and returns the packaged result.
//
// Unsupported conversions are rejected before the transcoder is touched.
// Once the source has been staged, both staged names are deleted before
// RunConversion returns, whatever the outcome. Failures of the transcoder
// are returned as *model.TranscodeExecutionError; deletion failures are only logged.
//
// tc must not be used by another job while RunConversion runs.
func RunConversion(ctx context.Context, tc transcoder.Transcoder, req *model.ConversionRequest) (*model.ConversionResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	target := req.TargetFormat()
	start := time.Now()

	result, err := runStaged(ctx, tc, req)

	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultTranscodeError
	}
	metrics.ConversionsTotal.WithLabelValues(outcome, model.FamilyOf(target).String()).Inc()
	metrics.ConversionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		slog.Warn("conversion failed",
			"source_name", req.SourceName(),
			"target_format", target,
			"error", err,
		)
		return nil, err
	}

	slog.Info("conversion completed",
		"source_name", req.SourceName(),
		"output_name", result.OutputName,
		"mime_type", result.MimeType,
		"size", result.Size(),
		"duration", time.Since(start),
	)
	return result, nil
}

// validate checks req against the format matrix without touching any transcoder.
func validate(req *model.ConversionRequest) error {
	if req == nil {
		metrics.ConversionsTotal.WithLabelValues(metrics.ResultInvalid, model.FamilyUnknown.String()).Inc()
		return &model.InvalidRequestError{Field: "request", Reason: "is nil"}
	}

	source, target := req.SourceFormat(), req.TargetFormat()
	if !model.IsConvertible(source, target) {
		metrics.ConversionsTotal.WithLabelValues(metrics.ResultUnsupported, model.FamilyOf(target).String()).Inc()
		slog.Debug("conversion rejected",
			"source_name", req.SourceName(),
			"source_format", source,
			"target_format", target,
		)
		return &model.UnsupportedConversionError{From: source, To: target}
	}

	return nil
}

// runStaged performs stage, execute and retrieve, with cleanup deferred
// from the moment staging is attempted.
func runStaged(ctx context.Context, tc transcoder.Transcoder, req *model.ConversionRequest) (*model.ConversionResult, error) {
	inputName := req.SourceName()
	outputName := req.OutputName()

	// Cleanup must finish even if the caller stops waiting.
	defer cleanup(context.WithoutCancel(ctx), tc,
		stagedResource{kind: metrics.ResourceInput, name: inputName},
		stagedResource{kind: metrics.ResourceOutput, name: outputName},
	)

	if err := tc.WriteResource(ctx, inputName, req.SourceData()); err != nil {
		return nil, &model.TranscodeExecutionError{Stage: model.StageStage, Cause: err}
	}

	args := BuildInvocation(inputName, req.TargetFormat(), outputName)
	if err := tc.Execute(ctx, args); err != nil {
		return nil, &model.TranscodeExecutionError{Stage: model.StageExecute, Cause: err}
	}

	data, err := tc.ReadResource(ctx, outputName)
	if err != nil {
		return nil, &model.TranscodeExecutionError{Stage: model.StageRetrieve, Cause: err}
	}

	return &model.ConversionResult{
		Data:       data,
		MimeType:   req.OutputMimeType(),
		OutputName: outputName,
	}, nil
}

type stagedResource struct {
	kind string
	name string
}

// cleanup deletes the staged resources concurrently and waits for all of them.
// Failures are logged and counted, never returned.
func cleanup(ctx context.Context, tc transcoder.Transcoder, resources ...stagedResource) {
	seen := make(map[string]bool, len(resources))

	var g errgroup.Group
	for _, r := range resources {
		// An identity conversion stages input and output under the same name.
		if seen[r.name] {
			continue
		}
		seen[r.name] = true

		g.Go(func() error {
			err := tc.DeleteResource(ctx, r.name)
			if err != nil && !errors.Is(err, transcoder.ErrResourceNotFound) {
				metrics.CleanupFailuresTotal.WithLabelValues(r.kind).Inc()
				slog.Warn("failed to delete staged resource",
					"resource", r.kind,
					"name", r.name,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Converter runs conversion jobs against one transcoder instance,
// one job at a time.
type Converter struct {
	mu sync.Mutex
	tc transcoder.Transcoder
}

// NewConverter creates a Converter that owns tc.
func NewConverter(tc transcoder.Transcoder) *Converter {
	return &Converter{tc: tc}
}

// IsConvertible reports whether a conversion between two formats is legal.
// It never touches the transcoder.
func (c *Converter) IsConvertible(from, to model.Format) bool {
	return model.IsConvertible(from, to)
}

// Run converts req. Concurrent calls are serialized.
func (c *Converter) Run(ctx context.Context, req *model.ConversionRequest) (*model.ConversionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return RunConversion(ctx, c.tc, req)
}
