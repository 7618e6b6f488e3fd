package core

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"time"
)

// BatchTimeout is the default maximum duration of one batch.
var BatchTimeout = 5 * time.Minute

// LayoutSource returns the raw stored layout for a template key. A missing
// layout is reported as (nil, nil).
type LayoutSource interface {
	Layout(ctx context.Context, key string) ([]byte, error)
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Generator     GeneratorConfig
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration
	// Layouts is optional; without it only inline layouts apply.
	Layouts LayoutSource
	Logger  *slog.Logger
}

// Service is the entry point for callers: it bounds concurrent batches,
// applies the batch timeout and looks up stored layouts.
type Service struct {
	gen     *Generator
	limiter *BatchLimiter
	timeout time.Duration
	layouts LayoutSource
	logger  *slog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Generator.Logger == nil {
		cfg.Generator.Logger = logger
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = BatchTimeout
	}
	return &Service{
		gen:     NewGenerator(cfg.Generator),
		limiter: NewBatchLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		timeout: timeout,
		layouts: cfg.Layouts,
		logger:  logger,
	}
}

// GenerateRequest is a batch plus where to find its layout. Precedence:
// Batch.Layout, then LayoutData, then the stored layout for TemplateKey.
type GenerateRequest struct {
	Batch
	LayoutData  []byte
	TemplateKey string
}

// Generate runs one batch under the concurrency cap and timeout.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	b := req.Batch
	var layoutErr error
	if b.Layout == nil {
		b.Layout, layoutErr = s.lookupLayout(ctx, req.LayoutData, req.TemplateKey)
		if layoutErr != nil {
			s.logger.Warn("layout unusable, using defaults",
				"kind", KindConfigParse, "template_key", req.TemplateKey, "error", layoutErr)
		}
	}

	res, err := s.gen.Run(ctx, b)
	if err != nil {
		return nil, err
	}
	if res.LayoutErr == nil {
		res.LayoutErr = layoutErr
	}
	return res, nil
}

// lookupLayout decodes inline layout data or fetches the stored layout. A
// store failure is returned like a parse failure: the batch proceeds on
// defaults.
func (s *Service) lookupLayout(ctx context.Context, inline []byte, key string) (*StoredLayout, error) {
	if len(bytes.TrimSpace(inline)) > 0 {
		return DecodeLayout(inline)
	}
	if key == "" || s.layouts == nil {
		return nil, nil
	}
	raw, err := s.layouts.Layout(ctx, key)
	if err != nil {
		return nil, newError(KindConfigParse, "load layout", fmt.Errorf("%w: %v", ErrInvalidLayout, err))
	}
	return DecodeLayout(raw)
}

// Preview renders text onto the template with layout and returns a PNG.
// Unlike Generate, an invalid layout is an error here so editors can show it.
func (s *Service) Preview(ctx context.Context, template []byte, text string, layout *StoredLayout) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tmpl, err := DecodeTemplate(template)
	if err != nil {
		return nil, err
	}
	spec, err := ResolveLayout(layout)
	if err != nil {
		return nil, err
	}
	if text == "" {
		text = "Sample Name"
	}

	img := s.gen.Renderer().Preview(tmpl, text, spec)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, assemblyError("encode preview", err)
	}
	return buf.Bytes(), nil
}

// Status returns the batch limiter state.
func (s *Service) Status() LimiterStatus {
	return s.limiter.Status()
}

// Workers returns the per-batch worker count.
func (s *Service) Workers() int {
	return s.gen.Workers()
}

// WaitForBatches blocks until running batches finish or ctx is done.
func (s *Service) WaitForBatches(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
