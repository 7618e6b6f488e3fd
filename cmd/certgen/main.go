// Command certgen generates certificates from a recipient table and a
// template image without running the server.
//
//	certgen --data recipients.csv --template template.png --layout layout.yaml --out ./out
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/JonMunkholm/certforge/internal/core"
	"github.com/JonMunkholm/certforge/internal/logging"
)

type options struct {
	data        string
	template    string
	layout      string
	outputType  string
	itemFormat  string
	out         string
	unbundled   bool
	workers     int
	maxRows     int
	jpegQuality int
	fontDirs    []string
	fallbacks   []string
	timeout     time.Duration
	verbose     bool
	logFormat   string
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(2)
	}

	level := "info"
	if opts.verbose {
		level = "debug"
	}
	logger := logging.New(os.Stderr, level, opts.logFormat)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		logger.Warn("failed to set GOMAXPROCS", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, logger); err != nil {
		reportError(os.Stderr, logger, err)
		os.Exit(1)
	}
}

// reportError prints the user message for err. The technical chain goes to
// the debug log, or inline when no pattern explains it.
func reportError(w io.Writer, logger *slog.Logger, err error) {
	ue := core.NewUserError(err)
	fmt.Fprintf(w, "certgen: %s\n", core.FormatUserError(err))
	if ue.Known() {
		logger.Debug("batch failed", "error", err, "kind", ue.Kind, "code", ue.User.Code)
	}
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("certgen", pflag.ContinueOnError)
	fs.StringVarP(&o.data, "data", "d", "", "recipient table (.csv, .tsv or .xlsx)")
	fs.StringVarP(&o.template, "template", "t", "", "template image (png, jpeg, gif, bmp, tiff, webp)")
	fs.StringVarP(&o.layout, "layout", "l", "", "layout file in YAML or JSON; defaults apply when omitted")
	fs.StringVar(&o.outputType, "output-type", "pdf", `"pdf" for one combined document, anything else for separate files`)
	fs.StringVar(&o.itemFormat, "item-format", "jpeg", "format of separate files: jpeg, png or pdf")
	fs.StringVarP(&o.out, "out", "o", ".", "output directory")
	fs.BoolVar(&o.unbundled, "unbundled", false, "write separate files directly instead of a zip archive")
	fs.IntVarP(&o.workers, "workers", "w", 0, "render workers, 0 for one per CPU")
	fs.IntVar(&o.maxRows, "max-rows", 0, "reject tables with more rows, 0 for no limit")
	fs.IntVar(&o.jpegQuality, "jpeg-quality", core.DefaultJPEGQuality, "JPEG quality 1-100")
	fs.StringSliceVar(&o.fontDirs, "font-dir", []string{"/usr/share/fonts", "/usr/local/share/fonts"}, "directories searched for font files")
	fs.StringSliceVar(&o.fallbacks, "font-fallback", core.DefaultFontFallbacks, "families tried when the layout font is missing")
	fs.DurationVar(&o.timeout, "timeout", core.BatchTimeout, "maximum batch duration")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	fs.StringVar(&o.logFormat, "log-format", "text", "log format: text or json")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.data == "" || o.template == "" {
		return o, errors.New("--data and --template are required")
	}
	if _, ok := core.ParseItemFormat(o.itemFormat); !ok {
		return o, fmt.Errorf("--item-format: %w: %q", core.ErrUnknownFormat, o.itemFormat)
	}
	if o.jpegQuality < 1 || o.jpegQuality > 100 {
		return o, fmt.Errorf("--jpeg-quality must be between 1 and 100, got %d", o.jpegQuality)
	}
	return o, nil
}

// run generates one batch and writes its payloads into o.out.
func run(ctx context.Context, o options, stdout io.Writer, logger *slog.Logger) error {
	data, err := os.ReadFile(o.data)
	if err != nil {
		return fmt.Errorf("read data: %w", err)
	}
	template, err := os.ReadFile(o.template)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	var layout *core.StoredLayout
	if o.layout != "" {
		raw, err := os.ReadFile(o.layout)
		if err != nil {
			return fmt.Errorf("read layout: %w", err)
		}
		if layout, err = core.DecodeLayout(raw); err != nil {
			logger.Warn("layout unusable, using defaults", "file", o.layout, "error", err)
		}
	}

	itemFormat, _ := core.ParseItemFormat(o.itemFormat)
	gen := core.NewGenerator(core.GeneratorConfig{
		Workers:     o.workers,
		MaxRows:     o.maxRows,
		JPEGQuality: o.jpegQuality,
		Fonts:       core.NewFontBook(logger, o.fontDirs, o.fallbacks),
		Logger:      logger,
	})

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := gen.Run(ctx, core.Batch{
		Data:         data,
		DataFilename: filepath.Base(o.data),
		Template:     template,
		Layout:       layout,
		Mode:         core.ParseOutputMode(o.outputType),
		ItemFormat:   itemFormat,
		Unbundled:    o.unbundled,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, p := range res.Payloads {
		path := filepath.Join(o.out, p.Filename)
		if err := os.WriteFile(path, p.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p.Filename, err)
		}
		fmt.Fprintln(stdout, path)
	}

	logger.Info("done",
		"batch_id", res.BatchID,
		"rendered", res.Rendered,
		"skipped", len(res.Skipped),
		"files", len(res.Payloads),
		"duration", res.Duration.Round(time.Millisecond),
	)
	return nil
}
