package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/hszk-dev/flipconvert/internal/domain/model"
	"github.com/hszk-dev/flipconvert/internal/infrastructure/metrics"
)

var (
	// ErrNoConverterAvailable is returned when the context ends before a pooled converter frees up.
	ErrNoConverterAvailable = errors.New("no converter available")

	// ErrEmptyPool is returned when a pool is created without converters.
	ErrEmptyPool = errors.New("converter pool requires at least one converter")
)

// Runner runs a single conversion job.
// *Converter and *ConverterPool both satisfy it.
type Runner interface {
	Run(ctx context.Context, req *model.ConversionRequest) (*model.ConversionResult, error)
}

// ConverterPool hands out converters, each backed by its own transcoder
// instance, so concurrent jobs never share a staging namespace.
type ConverterPool struct {
	converters chan *Converter
	size       int
}

var (
	_ Runner = (*Converter)(nil)
	_ Runner = (*ConverterPool)(nil)
)

// NewConverterPool creates a pool from the given converters.
func NewConverterPool(converters ...*Converter) (*ConverterPool, error) {
	if len(converters) == 0 {
		return nil, ErrEmptyPool
	}

	ch := make(chan *Converter, len(converters))
	for _, c := range converters {
		ch <- c
	}

	return &ConverterPool{
		converters: ch,
		size:       len(converters),
	}, nil
}

// Size returns the number of converters in the pool.
func (p *ConverterPool) Size() int {
	return p.size
}

// Available returns the number of idle converters.
func (p *ConverterPool) Available() int {
	return len(p.converters)
}

// Run validates req, then waits for an idle converter and runs the job on it.
// Unsupported conversions are rejected without waiting for a converter.
// Waiting honours ctx; a job that has started runs to completion.
func (p *ConverterPool) Run(ctx context.Context, req *model.ConversionRequest) (*model.ConversionResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	c, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.release(c)

	return c.Run(context.WithoutCancel(ctx), req)
}

func (p *ConverterPool) acquire(ctx context.Context) (*Converter, error) {
	select {
	case c := <-p.converters:
		metrics.ConvertersInUse.Inc()
		return c, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrNoConverterAvailable, ctx.Err())
	}
}

func (p *ConverterPool) release(c *Converter) {
	metrics.ConvertersInUse.Dec()
	p.converters <- c
}
