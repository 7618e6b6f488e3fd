package core

// generate.go runs one batch end to end: parse, decode, resolve layout,
// render every row on a bounded worker pool, then assemble.
//
// Rows render independently. A row that cannot be rendered is skipped and
// logged; the batch only fails when nothing survives. Results land in a slot
// array indexed by row, so output order never depends on worker scheduling.

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Worker pool sizing.
const (
	// MinWorkers ensures at least one render runs.
	MinWorkers = 1
	// MaxWorkers caps per-batch parallelism; each worker holds a full-size
	// RGBA copy of the template.
	MaxWorkers = 32
)

// ResolveWorkers returns n clamped to [MinWorkers, MaxWorkers], or
// GOMAXPROCS when n is not positive.
func ResolveWorkers(n int) int {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return max(MinWorkers, min(n, MaxWorkers))
}

// Batch is one generation request.
type Batch struct {
	// Data is the raw recipient table.
	Data []byte
	// DataFilename helps pick the tabular format when Format is empty.
	DataFilename string
	Format       TabularFormat
	// Template is the encoded template image.
	Template []byte
	// Layout is the stored layout, nil for defaults.
	Layout *StoredLayout

	Mode       OutputMode
	ItemFormat ItemFormat
	Unbundled  bool
}

// Skip records a row that produced no certificate.
type Skip struct {
	Index  int      `json:"index"`
	Keys   []string `json:"keys"`
	Reason string   `json:"reason"`
}

// Result is the outcome of a successful batch. Rendered + len(Skipped) ==
// Total always holds.
type Result struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Payloads []Payload `json:"-"`
	Total    int       `json:"total"`
	Rendered int       `json:"rendered"`
	Skipped  []Skip    `json:"skipped"`
	// LayoutErr is set when the stored layout was unusable and defaults
	// were applied.
	LayoutErr error `json:"-"`
	// Font is the resolved layout's font family.
	Font     string        `json:"font"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	// Workers bounds per-batch render parallelism; see ResolveWorkers.
	Workers int
	// MaxRows rejects larger inputs. Zero means no limit.
	MaxRows     int
	JPEGQuality int
	Fonts       *FontBook
	Logger      *slog.Logger
}

// Generator runs batches. It holds no per-batch state and is safe for
// concurrent use.
type Generator struct {
	workers   int
	maxRows   int
	fonts     *FontBook
	renderer  *Renderer
	assembler *Assembler
	logger    *slog.Logger
	now       func() time.Time
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fonts := cfg.Fonts
	if fonts == nil {
		fonts = NewFontBook(logger, nil, nil)
	}
	return &Generator{
		workers:   ResolveWorkers(cfg.Workers),
		maxRows:   cfg.MaxRows,
		fonts:     fonts,
		renderer:  NewRenderer(fonts, logger),
		assembler: NewAssembler(cfg.JPEGQuality, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// Workers returns the per-batch worker count.
func (g *Generator) Workers() int {
	return g.workers
}

// Renderer returns the generator's renderer, shared with previews.
func (g *Generator) Renderer() *Renderer {
	return g.renderer
}

// Run executes b. Fatal errors are returned as *Error with kind InputFormat,
// EmptyResult or Assembly; a cancelled ctx stops scheduling new rows and
// returns ctx.Err().
func (g *Generator) Run(ctx context.Context, b Batch) (*Result, error) {
	res := &Result{BatchID: uuid.New(), Started: g.now()}
	logger := g.logger.With("batch_id", res.BatchID.String())

	format := b.Format
	if format == "" {
		format = DetectFormat(b.DataFilename, b.Data)
	}
	records, err := ParseRecordsFormat(b.Data, format, ParseOptions{MaxRows: g.maxRows})
	if err != nil {
		return nil, err
	}

	tmpl, err := DecodeTemplate(b.Template)
	if err != nil {
		return nil, err
	}

	spec, err := ResolveLayout(b.Layout)
	if err != nil {
		logger.Warn("layout unusable, using defaults", "kind", KindConfigParse, "error", err)
		res.LayoutErr = err
	}
	if !g.fonts.Has(spec.FontFamily) {
		logger.Warn("font unavailable, falling back", "kind", KindFontLoad, "family", spec.FontFamily)
	}

	slots := make([]*RenderedCertificate, len(records))
	failures := make([]error, len(records))

	var grp errgroup.Group
	grp.SetLimit(g.workers)
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cert, err := g.renderer.Render(tmpl, records[i], spec)
			if err != nil {
				failures[i] = err
				return nil
			}
			slots[i] = cert
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	certs := make([]*RenderedCertificate, 0, len(records))
	for i, cert := range slots {
		if cert != nil {
			certs = append(certs, cert)
			continue
		}
		skip := Skip{Index: i, Keys: records[i].Keys, Reason: ErrRecordSkipped.Error()}
		if failures[i] != nil {
			skip.Reason = failures[i].Error()
		}
		logger.Warn("record skipped", "kind", KindRecordSkipped, "row", i, "keys", records[i].Keys, "reason", skip.Reason)
		res.Skipped = append(res.Skipped, skip)
	}
	res.Total = len(records)
	res.Rendered = len(certs)

	if len(certs) == 0 {
		return nil, newError(KindEmptyResult, "generate", ErrNoCertificates)
	}

	payloads, err := g.assembler.Assemble(certs, AssembleOptions{
		Mode:       b.Mode,
		ItemFormat: b.ItemFormat,
		Unbundled:  b.Unbundled,
		Now:        res.Started,
	})
	if err != nil {
		return nil, err
	}

	res.Payloads = payloads
	res.Font = spec.FontFamily
	res.Duration = g.now().Sub(res.Started)

	logger.Info("batch generated",
		"total", res.Total,
		"rendered", res.Rendered,
		"skipped", len(res.Skipped),
		"mode", b.Mode,
		"payloads", len(payloads),
		"duration", res.Duration,
	)
	return res, nil
}
