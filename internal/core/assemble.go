package core

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// OutputMode selects how rendered certificates are packaged.
type OutputMode string

const (
	// ModeSinglePDF puts every certificate on its own page of one PDF.
	ModeSinglePDF OutputMode = "pdf"
	// ModeArchive emits one file per certificate, zipped when there are
	// several.
	ModeArchive OutputMode = "zip"
)

// ParseOutputMode maps the caller's output type string. Only "pdf" selects
// the combined document; anything else means per-item output.
func ParseOutputMode(s string) OutputMode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeSinglePDF)) {
		return ModeSinglePDF
	}
	return ModeArchive
}

// ItemFormat is the encoding of one certificate in archive mode.
type ItemFormat string

const (
	ItemJPEG ItemFormat = "jpeg"
	ItemPNG  ItemFormat = "png"
	ItemPDF  ItemFormat = "pdf"
)

// ParseItemFormat accepts jpeg/jpg, png and pdf, case-insensitively. Empty
// selects ItemJPEG.
func ParseItemFormat(s string) (ItemFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jpeg", "jpg":
		return ItemJPEG, true
	case "png":
		return ItemPNG, true
	case "pdf":
		return ItemPDF, true
	}
	return "", false
}

func (f ItemFormat) ext() string {
	switch f {
	case ItemPNG:
		return "png"
	case ItemPDF:
		return "pdf"
	}
	return "jpg"
}

func (f ItemFormat) kind() PayloadKind {
	if f == ItemPDF {
		return PayloadPDF
	}
	return PayloadImage
}

func (f ItemFormat) contentType() string {
	switch f {
	case ItemPNG:
		return "image/png"
	case ItemPDF:
		return "application/pdf"
	}
	return "image/jpeg"
}

// PayloadKind describes a Payload's content.
type PayloadKind string

const (
	PayloadPDF     PayloadKind = "pdf"
	PayloadImage   PayloadKind = "image"
	PayloadArchive PayloadKind = "archive"
)

// Payload is one named output file.
type Payload struct {
	Filename    string
	Content     []byte
	Kind        PayloadKind
	ContentType string
}

// AssembleOptions controls packaging.
type AssembleOptions struct {
	Mode       OutputMode
	ItemFormat ItemFormat
	// Unbundled returns per-item payloads without zipping them.
	Unbundled bool
	// Now stamps bundle filenames and archive entries. Zero means time.Now.
	Now time.Time
}

const bundleTimeLayout = "20060102_150405"

// DefaultJPEGQuality is used for JPEG items and PDF page images.
const DefaultJPEGQuality = 95

// Assembler packages rendered certificates into payloads.
type Assembler struct {
	jpegQuality int
	logger      *slog.Logger
}

// NewAssembler creates an Assembler. A quality outside 1..100 selects
// DefaultJPEGQuality.
func NewAssembler(jpegQuality int, logger *slog.Logger) *Assembler {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{jpegQuality: jpegQuality, logger: logger}
}

// Assemble packages certs, which must already be in output order. Any
// encoding failure fails the whole call with no partial output.
func (a *Assembler) Assemble(certs []*RenderedCertificate, opts AssembleOptions) ([]Payload, error) {
	if len(certs) == 0 {
		return nil, newError(KindEmptyResult, "assemble", ErrNoCertificates)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.ItemFormat == "" {
		opts.ItemFormat = ItemJPEG
	}

	if opts.Mode == ModeSinglePDF {
		content, err := a.pdf(certs, opts.Now)
		if err != nil {
			return nil, assemblyError("assemble pdf", err)
		}
		return []Payload{{
			Filename:    "certificates_" + opts.Now.Format(bundleTimeLayout) + ".pdf",
			Content:     content,
			Kind:        PayloadPDF,
			ContentType: "application/pdf",
		}}, nil
	}

	items := make([]Payload, 0, len(certs))
	names := make(nameSet, len(certs))
	for _, c := range certs {
		content, err := a.encodeItem(c, opts.ItemFormat, opts.Now)
		if err != nil {
			return nil, assemblyError(fmt.Sprintf("encode row %d", c.Index), err)
		}
		items = append(items, Payload{
			Filename:    names.unique(CertificateFilename(c.Name, c.Index, opts.ItemFormat.ext())),
			Content:     content,
			Kind:        opts.ItemFormat.kind(),
			ContentType: opts.ItemFormat.contentType(),
		})
	}

	if len(items) == 1 || opts.Unbundled {
		return items, nil
	}

	archive, err := zipPayloads(items, opts.Now)
	if err != nil {
		return nil, assemblyError("assemble zip", err)
	}
	return []Payload{{
		Filename:    "certificates_" + opts.Now.Format(bundleTimeLayout) + ".zip",
		Content:     archive,
		Kind:        PayloadArchive,
		ContentType: "application/zip",
	}}, nil
}

func assemblyError(op string, err error) error {
	return newError(KindAssembly, op, fmt.Errorf("%w: %v", ErrAssembly, err))
}

func (a *Assembler) encodeItem(c *RenderedCertificate, format ItemFormat, now time.Time) ([]byte, error) {
	switch format {
	case ItemPNG:
		var buf bytes.Buffer
		if err := png.Encode(&buf, c.Image); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case ItemPDF:
		return a.pdf([]*RenderedCertificate{c}, now)
	default:
		return a.jpeg(c.Image)
	}
}

// jpeg flattens img onto white, since JPEG has no alpha channel.
func (a *Assembler) jpeg(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: a.jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// pdf writes one page per certificate, each page sized to its image at
// 1px = 1pt.
func (a *Assembler) pdf(certs []*RenderedCertificate, now time.Time) ([]byte, error) {
	first := certs[0].Image.Bounds()
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: float64(first.Dx()), Ht: float64(first.Dy())},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCreator("certforge", true)
	doc.SetCreationDate(now)

	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	for i, c := range certs {
		data, err := a.jpeg(c.Image)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		w, h := float64(c.Image.Bounds().Dx()), float64(c.Image.Bounds().Dy())
		name := fmt.Sprintf("cert%d", i)

		// "P" keeps the given width and height as-is; "L" would swap them.
		doc.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		doc.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
		if err := doc.Error(); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func zipPayloads(items []Payload, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range items {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.Filename,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p.Content); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
