package core

// fonts.go resolves font families to faces with a best-effort fallback chain.
//
// Parsed fonts are heavyweight and shared across the whole process; faces are
// cheap, sized, and not safe for concurrent use, so every render asks for its
// own face and closes it when done.
//
// Resolution order for a requested family:
//
//  1. the family itself
//  2. the configured fallback families
//  3. the embedded Go Regular font
//  4. basicfont.Face7x13, which cannot fail

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/opentype"
)

// DefaultFontFallbacks is tried when the configured family is unavailable.
var DefaultFontFallbacks = []string{"Roboto", "DejaVu Sans", "Liberation Sans", "Arial", "Go"}

// BuiltinFontFamily names the embedded font that ends every chain.
const BuiltinFontFamily = "Go"

// embeddedFonts maps normalized family names to bundled TTF data.
var embeddedFonts = map[string][]byte{
	"go":           goregular.TTF,
	"goregular":    goregular.TTF,
	"gobold":       gobold.TTF,
	"goitalic":     goitalic.TTF,
	"gobolditalic": gobolditalic.TTF,
	"gomedium":     gomedium.TTF,
	"gomono":       gomono.TTF,
	"gomonobold":   gomonobold.TTF,
	"gosmallcaps":  gosmallcaps.TTF,
}

var fontExtensions = map[string]bool{".ttf": true, ".otf": true, ".ttc": true}

// FontBook loads and caches fonts from embedded data and font directories.
// It is safe for concurrent use.
type FontBook struct {
	dirs      []string
	fallbacks []string
	logger    *slog.Logger

	mu      sync.Mutex
	files   map[string]string // normalized family -> font file
	indexed bool
	parsed  map[string]*opentype.Font
	failed  map[string]bool
}

// NewFontBook creates a FontBook searching dirs for font files. A nil
// fallbacks slice selects DefaultFontFallbacks.
func NewFontBook(logger *slog.Logger, dirs, fallbacks []string) *FontBook {
	if logger == nil {
		logger = slog.Default()
	}
	if fallbacks == nil {
		fallbacks = DefaultFontFallbacks
	}
	return &FontBook{
		dirs:      dirs,
		fallbacks: fallbacks,
		logger:    logger,
		parsed:    make(map[string]*opentype.Font),
		failed:    make(map[string]bool),
	}
}

// Face returns a face for family at size pixels and the family actually
// used. It never returns nil. The caller must Close the face.
func (b *FontBook) Face(family string, size int) (font.Face, string) {
	if size < 1 {
		size = DefaultFontSize
	}

	chain := make([]string, 0, len(b.fallbacks)+2)
	chain = append(chain, family)
	chain = append(chain, b.fallbacks...)
	chain = append(chain, BuiltinFontFamily)

	for i, name := range chain {
		f := b.load(name)
		if f == nil {
			continue
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			b.logger.Warn("font face creation failed", "family", name, "size", size, "error", err)
			continue
		}
		if i > 0 {
			b.logger.Debug("font fallback used", "requested", family, "used", name)
		}
		return face, name
	}

	b.logger.Warn("all font sources failed, using built-in bitmap font", "requested", family)
	return basicfont.Face7x13, "basicfont"
}

// Has reports whether family resolves without falling back.
func (b *FontBook) Has(family string) bool {
	return b.load(family) != nil
}

// load returns the parsed font for family, or nil. Failures are logged once
// per family.
func (b *FontBook) load(family string) *opentype.Font {
	key := normalizeFamily(family)
	if key == "" {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if f, ok := b.parsed[key]; ok {
		return f
	}
	if b.failed[key] {
		return nil
	}

	f, err := b.parseLocked(key)
	if err != nil || f == nil {
		b.failed[key] = true
		if err != nil {
			b.logger.Warn("font load failed", "kind", KindFontLoad, "family", family, "error", err)
		} else {
			b.logger.Info("font family not available", "kind", KindFontLoad, "family", family)
		}
		return nil
	}
	b.parsed[key] = f
	return f
}

func (b *FontBook) parseLocked(key string) (*opentype.Font, error) {
	if data, ok := embeddedFonts[key]; ok {
		return opentype.Parse(data)
	}

	if !b.indexed {
		b.files = indexFontDirs(b.dirs, b.logger)
		b.indexed = true
	}
	path, ok := b.files[key]
	if !ok {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".ttc") {
		coll, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, err
		}
		return coll.Font(0)
	}
	return opentype.Parse(data)
}

// indexFontDirs maps normalized file stems to font files. "Roboto-Regular.ttf"
// registers both "robotoregular" and "roboto"; a Regular file wins the bare
// family name over other styles.
func indexFontDirs(dirs []string, logger *slog.Logger) map[string]string {
	files := make(map[string]string)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() || !fontExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			stem := normalizeFamily(strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())))
			if _, ok := files[stem]; !ok {
				files[stem] = path
			}
			if base, ok := strings.CutSuffix(stem, "regular"); ok && base != "" {
				files[base] = path
			} else if base := familyBase(stem); base != "" {
				if _, ok := files[base]; !ok {
					files[base] = path
				}
			}
			return nil
		})
		if err != nil {
			logger.Warn("font directory scan failed", "dir", dir, "error", err)
		}
	}
	return files
}

var styleSuffixes = []string{"bolditalic", "bold", "italic", "medium", "light", "semibold", "black", "thin"}

// familyBase strips a trailing style word from a normalized stem.
func familyBase(stem string) string {
	for _, s := range styleSuffixes {
		if base, ok := strings.CutSuffix(stem, s); ok && base != "" {
			return base
		}
	}
	return ""
}

// normalizeFamily lowercases and drops separators: "DejaVu Sans" -> "dejavusans".
func normalizeFamily(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch r {
		case ' ', '-', '_', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
