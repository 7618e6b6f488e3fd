package core

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Layout defaults.
const (
	DefaultFontFamily = "Go"
	DefaultFontSize   = 48
	MaxFontSize       = 2048
	DefaultAnchorX    = 0.5
	DefaultAnchorY    = 0.45
)

// AnchorMode says how anchor coordinates are interpreted.
type AnchorMode string

const (
	// AnchorFraction coordinates are fractions of the template size, so one
	// layout fits templates of any resolution.
	AnchorFraction AnchorMode = "fraction"
	// AnchorPixels coordinates are absolute pixels from the top-left corner.
	AnchorPixels AnchorMode = "pixels"
)

// Anchor is the point the text is centered on.
type Anchor struct {
	Mode AnchorMode
	X, Y float64
}

// Point converts the anchor to pixel coordinates within bounds.
func (a Anchor) Point(bounds image.Rectangle) (x, y float64) {
	if a.Mode == AnchorPixels {
		return float64(bounds.Min.X) + a.X, float64(bounds.Min.Y) + a.Y
	}
	return float64(bounds.Min.X) + a.X*float64(bounds.Dx()),
		float64(bounds.Min.Y) + a.Y*float64(bounds.Dy())
}

// RenderSpec is the concrete layout for one batch. It is read-only once built
// and shared by every render in the batch.
type RenderSpec struct {
	FontFamily string
	FontSize   int
	Color      color.RGBA
	Anchor     Anchor
}

// DefaultRenderSpec returns the layout used when nothing usable is stored.
func DefaultRenderSpec() RenderSpec {
	return RenderSpec{
		FontFamily: DefaultFontFamily,
		FontSize:   DefaultFontSize,
		Color:      color.RGBA{A: 0xff},
		Anchor:     Anchor{Mode: AnchorFraction, X: DefaultAnchorX, Y: DefaultAnchorY},
	}
}

// StoredLayout is the persisted per-template layout. Pointer fields tell an
// absent value from a zero one.
type StoredLayout struct {
	FontSize     *float64      `json:"font_size" yaml:"font_size"`
	FontFamily   *string       `json:"font_family" yaml:"font_family"`
	TextColor    *string       `json:"text_color" yaml:"text_color"`
	TextPosition *TextPosition `json:"text_position" yaml:"text_position"`
	// PositionMode is "fraction" (default when empty) or "pixels".
	PositionMode string `json:"position_mode,omitempty" yaml:"position_mode,omitempty"`
}

// TextPosition is the stored anchor.
type TextPosition struct {
	X *float64 `json:"x" yaml:"x"`
	Y *float64 `json:"y" yaml:"y"`
}

// StoredLayout converts a spec back to its persisted form.
func (s RenderSpec) StoredLayout() StoredLayout {
	size := float64(s.FontSize)
	family := s.FontFamily
	hex := FormatHexColor(s.Color)
	x, y := s.Anchor.X, s.Anchor.Y
	return StoredLayout{
		FontSize:     &size,
		FontFamily:   &family,
		TextColor:    &hex,
		TextPosition: &TextPosition{X: &x, Y: &y},
		PositionMode: string(s.Anchor.Mode),
	}
}

// DecodeLayout decodes a stored layout from JSON or YAML. Empty input means
// no layout and returns nil without error.
func DecodeLayout(data []byte) (*StoredLayout, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var l StoredLayout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, newError(KindConfigParse, "decode layout", fmt.Errorf("%w: %v", ErrInvalidLayout, err))
	}
	return &l, nil
}

// ResolveLayout builds the batch RenderSpec. A nil layout yields the defaults.
// A malformed layout also yields the defaults, together with a ConfigParse
// error the caller is expected to log; it never blocks a batch.
func ResolveLayout(l *StoredLayout) (RenderSpec, error) {
	if l == nil {
		return DefaultRenderSpec(), nil
	}
	spec, err := l.toSpec()
	if err != nil {
		return DefaultRenderSpec(), newError(KindConfigParse, "resolve layout", fmt.Errorf("%w: %v", ErrInvalidLayout, err))
	}
	return spec, nil
}

func (l *StoredLayout) toSpec() (RenderSpec, error) {
	var errs []error

	size := 0
	switch {
	case l.FontSize == nil:
		errs = append(errs, errors.New("font_size is required"))
	case math.IsNaN(*l.FontSize) || math.Round(*l.FontSize) < 1:
		errs = append(errs, fmt.Errorf("font_size %v must be a positive integer", *l.FontSize))
	case math.Round(*l.FontSize) > MaxFontSize:
		errs = append(errs, fmt.Errorf("font_size %v exceeds %d", *l.FontSize, MaxFontSize))
	default:
		size = int(math.Round(*l.FontSize))
	}

	family := ""
	if l.FontFamily == nil || strings.TrimSpace(*l.FontFamily) == "" {
		errs = append(errs, errors.New("font_family is required"))
	} else {
		family = strings.TrimSpace(*l.FontFamily)
	}

	var c color.RGBA
	if l.TextColor == nil {
		errs = append(errs, errors.New("text_color is required"))
	} else if parsed, err := ParseHexColor(*l.TextColor); err != nil {
		errs = append(errs, err)
	} else {
		c = parsed
	}

	mode := AnchorMode(strings.ToLower(strings.TrimSpace(l.PositionMode)))
	switch mode {
	case "":
		mode = AnchorFraction
	case AnchorFraction, AnchorPixels:
	default:
		errs = append(errs, fmt.Errorf("position_mode %q must be fraction or pixels", l.PositionMode))
	}

	var x, y float64
	if l.TextPosition == nil || l.TextPosition.X == nil || l.TextPosition.Y == nil {
		errs = append(errs, errors.New("text_position.x and text_position.y are required"))
	} else {
		x, y = *l.TextPosition.X, *l.TextPosition.Y
		if err := checkCoordinate("x", x, mode); err != nil {
			errs = append(errs, err)
		}
		if err := checkCoordinate("y", y, mode); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return RenderSpec{}, errors.Join(errs...)
	}
	return RenderSpec{
		FontFamily: family,
		FontSize:   size,
		Color:      c,
		Anchor:     Anchor{Mode: mode, X: x, Y: y},
	}, nil
}

func checkCoordinate(axis string, v float64, mode AnchorMode) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("text_position.%s is not a number", axis)
	}
	if v < 0 {
		return fmt.Errorf("text_position.%s %v must not be negative", axis, v)
	}
	if mode == AnchorFraction && v > 1 {
		return fmt.Errorf("text_position.%s %v must be within [0,1] in fraction mode", axis, v)
	}
	return nil
}

// ParseHexColor parses "#RRGGBB" (the '#' is optional) into an opaque color.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("text_color %q must be #RRGGBB", s)
	}
	var ch [3]uint8
	for i := range ch {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("text_color %q must be #RRGGBB", s)
		}
		ch[i] = uint8(v)
	}
	return color.RGBA{R: ch[0], G: ch[1], B: ch[2], A: 0xff}, nil
}

// FormatHexColor renders c as "#RRGGBB".
func FormatHexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
