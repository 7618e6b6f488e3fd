package core

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

func solidCert(index int, name string, w, h int, c color.Color) *RenderedCertificate {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return &RenderedCertificate{Index: index, Name: name, Image: img}
}

// pdfPageCount counts page objects in gofpdf output.
func pdfPageCount(pdf []byte) int {
	return bytes.Count(pdf, []byte("/Type /Page\n"))
}

// pdfPageSizes returns each page's MediaBox ("w h") in page order. Pages
// without their own box inherit the one on the /Pages node.
func pdfPageSizes(pdf []byte) []string {
	mediaBox := func(obj []byte) string {
		_, rest, ok := bytes.Cut(obj, []byte("/MediaBox [0 0 "))
		if !ok {
			return ""
		}
		box, _, _ := bytes.Cut(rest, []byte("]"))
		return string(box)
	}

	var inherited string
	if _, rest, ok := bytes.Cut(pdf, []byte("/Type /Pages")); ok {
		obj, _, _ := bytes.Cut(rest, []byte("endobj"))
		inherited = mediaBox(obj)
	}

	var sizes []string
	chunks := bytes.Split(pdf, []byte("/Type /Page\n"))
	for _, chunk := range chunks[1:] {
		obj, _, _ := bytes.Cut(chunk, []byte("endobj"))
		if box := mediaBox(obj); box != "" {
			sizes = append(sizes, box)
		} else {
			sizes = append(sizes, inherited)
		}
	}
	return sizes
}

func unzip(t *testing.T, data []byte) []*zip.File {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return zr.File
}

func TestParseOutputMode(t *testing.T) {
	assert.Equal(t, ModeSinglePDF, ParseOutputMode("pdf"))
	assert.Equal(t, ModeSinglePDF, ParseOutputMode(" PDF "))
	assert.Equal(t, ModeArchive, ParseOutputMode("zip"))
	assert.Equal(t, ModeArchive, ParseOutputMode("images"))
	assert.Equal(t, ModeArchive, ParseOutputMode(""))
}

func TestParseItemFormat(t *testing.T) {
	for in, want := range map[string]ItemFormat{"": ItemJPEG, "JPG": ItemJPEG, "jpeg": ItemJPEG, "png": ItemPNG, "Pdf": ItemPDF} {
		got, ok := ParseItemFormat(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseItemFormat("gif")
	assert.False(t, ok)
}

func TestAssemble_SinglePDF(t *testing.T) {
	a := NewAssembler(0, discardLogger())
	certs := []*RenderedCertificate{
		solidCert(0, "Ada", 400, 300, color.White),
		solidCert(1, "Bob", 300, 400, color.White),
		solidCert(2, "Cy", 500, 200, color.White),
		solidCert(3, "Di", 400, 300, color.White),
	}

	payloads, err := a.Assemble(certs, AssembleOptions{Mode: ModeSinglePDF, Now: fixedNow})
	require.NoError(t, err)
	require.Len(t, payloads, 1)

	p := payloads[0]
	assert.Equal(t, "certificates_20240309_140506.pdf", p.Filename)
	assert.Equal(t, PayloadPDF, p.Kind)
	assert.Equal(t, "application/pdf", p.ContentType)
	assert.True(t, bytes.HasPrefix(p.Content, []byte("%PDF-")))
	assert.Equal(t, 4, pdfPageCount(p.Content))
	assert.Equal(t,
		[]string{"400.00 300.00", "300.00 400.00", "500.00 200.00", "400.00 300.00"},
		pdfPageSizes(p.Content),
		"one page per certificate, in input order, sized to its image")
}

func TestAssemble_ArchiveZipsMultiple(t *testing.T) {
	a := NewAssembler(0, discardLogger())
	certs := []*RenderedCertificate{
		solidCert(0, "Ada Lovelace", 80, 40, color.White),
		solidCert(2, "Ada Lovelace", 80, 40, color.White),
		solidCert(3, "", 80, 40, color.White),
	}

	payloads, err := a.Assemble(certs, AssembleOptions{Mode: ModeArchive, Now: fixedNow})
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, "certificates_20240309_140506.zip", payloads[0].Filename)
	assert.Equal(t, PayloadArchive, payloads[0].Kind)

	files := unzip(t, payloads[0].Content)
	require.Len(t, files, 3)
	assert.Equal(t, "Ada_Lovelace_certificate.jpg", files[0].Name)
	assert.Equal(t, "Ada_Lovelace_certificate_2.jpg", files[1].Name)
	assert.Equal(t, "Certificate_4.jpg", files[2].Name)

	rc, err := files[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	_, err = jpeg.Decode(rc)
	assert.NoError(t, err)
}

func TestAssemble_ArchiveSingleIsUnwrapped(t *testing.T) {
	a := NewAssembler(0, discardLogger())

	payloads, err := a.Assemble(
		[]*RenderedCertificate{solidCert(0, "Ada", 80, 40, color.White)},
		AssembleOptions{Mode: ModeArchive, ItemFormat: ItemPDF, Now: fixedNow},
	)
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, "Ada_certificate.pdf", payloads[0].Filename)
	assert.Equal(t, PayloadPDF, payloads[0].Kind)
	assert.Equal(t, 1, pdfPageCount(payloads[0].Content))
}

func TestAssemble_Unbundled(t *testing.T) {
	a := NewAssembler(0, discardLogger())
	certs := []*RenderedCertificate{
		solidCert(0, "Ada", 30, 20, color.RGBA{R: 255, A: 255}),
		solidCert(1, "Bob", 30, 20, color.RGBA{B: 255, A: 255}),
	}

	payloads, err := a.Assemble(certs, AssembleOptions{ItemFormat: ItemPNG, Unbundled: true, Now: fixedNow})
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	assert.Equal(t, "Ada_certificate.png", payloads[0].Filename)
	assert.Equal(t, "Bob_certificate.png", payloads[1].Filename)
	assert.Equal(t, "image/png", payloads[1].ContentType)

	img, err := png.Decode(bytes.NewReader(payloads[1].Content))
	require.NoError(t, err)
	r, g, b, _ := img.At(5, 5).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0xFFFF}, [3]uint32{r, g, b})
}

func TestAssemble_JPEGFlattensTransparency(t *testing.T) {
	a := NewAssembler(90, discardLogger())
	cert := solidCert(0, "Ada", 16, 16, color.Transparent)

	payloads, err := a.Assemble([]*RenderedCertificate{cert}, AssembleOptions{Now: fixedNow})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(payloads[0].Content))
	require.NoError(t, err)
	r, g, b, _ := img.At(8, 8).RGBA()
	assert.Greater(t, r, uint32(0xF000))
	assert.Greater(t, g, uint32(0xF000))
	assert.Greater(t, b, uint32(0xF000))
}

func TestAssemble_Empty(t *testing.T) {
	a := NewAssembler(0, discardLogger())
	for _, mode := range []OutputMode{ModeSinglePDF, ModeArchive} {
		_, err := a.Assemble(nil, AssembleOptions{Mode: mode})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoCertificates)
		assert.Equal(t, KindEmptyResult, KindOf(err))
	}
}
