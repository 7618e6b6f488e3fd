package core

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Template is a decoded template image shared read-only by all renders of a
// batch.
type Template struct {
	img    image.Image
	format string
}

// DecodeTemplate decodes PNG, JPEG, GIF, BMP, TIFF or WebP bytes.
func DecodeTemplate(data []byte) (*Template, error) {
	if len(data) == 0 {
		return nil, inputError("decode template", ErrTemplateDecode, errors.New("no image data"))
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, inputError("decode template", ErrTemplateDecode, err)
	}
	if b := img.Bounds(); b.Empty() {
		return nil, inputError("decode template", ErrTemplateDecode, fmt.Errorf("zero-size image %v", b))
	}
	return &Template{img: img, format: format}, nil
}

// Bounds returns the template's pixel bounds.
func (t *Template) Bounds() image.Rectangle {
	return t.img.Bounds()
}

// Format returns the decoder name ("png", "jpeg", ...).
func (t *Template) Format() string {
	return t.format
}

// copyRGBA returns an independent RGBA copy of the template, origin at (0,0).
func (t *Template) copyRGBA() *image.RGBA {
	b := t.img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), t.img, b.Min, draw.Src)
	return dst
}

// RenderedCertificate is one rendered row, owned by the assembler once
// handed over.
type RenderedCertificate struct {
	Index int
	Name  string
	Image *image.RGBA
}

// Renderer draws recipient names onto template copies.
type Renderer struct {
	fonts  *FontBook
	logger *slog.Logger
}

// NewRenderer creates a Renderer using fonts for face resolution.
func NewRenderer(fonts *FontBook, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if fonts == nil {
		fonts = NewFontBook(logger, nil, nil)
	}
	return &Renderer{fonts: fonts, logger: logger}
}

// Render draws rec's name onto a copy of tmpl. A record without a resolved
// name yields ErrRecordSkipped; the batch carries on without it.
func (r *Renderer) Render(tmpl *Template, rec Record, spec RenderSpec) (*RenderedCertificate, error) {
	name, ok := rec.Name()
	if !ok {
		return nil, newError(KindRecordSkipped, fmt.Sprintf("render row %d", rec.Index), ErrRecordSkipped)
	}
	return &RenderedCertificate{
		Index: rec.Index,
		Name:  name,
		Image: r.draw(tmpl, name, spec),
	}, nil
}

// Preview renders text onto a copy of tmpl without a record, for layout
// editing.
func (r *Renderer) Preview(tmpl *Template, text string, spec RenderSpec) *image.RGBA {
	return r.draw(tmpl, text, spec)
}

func (r *Renderer) draw(tmpl *Template, text string, spec RenderSpec) *image.RGBA {
	dst := tmpl.copyRGBA()

	face, _ := r.fonts.Face(spec.FontFamily, spec.FontSize)
	defer face.Close()

	ax, ay := spec.Anchor.Point(dst.Bounds())
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(spec.Color),
		Face: face,
		Dot:  centeredDot(face, text, ax, ay),
	}
	d.DrawString(text)
	return dst
}

// centeredDot returns the baseline origin that centers text's ink bounds on
// (ax, ay).
func centeredDot(face font.Face, text string, ax, ay float64) fixed.Point26_6 {
	bounds, _ := font.BoundString(face, text)
	w := bounds.Max.X - bounds.Min.X
	h := bounds.Max.Y - bounds.Min.Y

	// Top-left of the ink box, then shift by the box's offset from the dot.
	left := toFixed(ax) - w/2
	top := toFixed(ay) - h/2
	return fixed.Point26_6{X: left - bounds.Min.X, Y: top - bounds.Min.Y}
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}
