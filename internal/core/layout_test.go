package core

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func validLayout() *StoredLayout {
	return &StoredLayout{
		FontSize:     ptr(36.0),
		FontFamily:   ptr("Go Bold"),
		TextColor:    ptr("#1A2B3C"),
		TextPosition: &TextPosition{X: ptr(0.5), Y: ptr(0.6)},
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#1A2B3C", color.RGBA{26, 43, 60, 255}, false},
		{"1a2b3c", color.RGBA{26, 43, 60, 255}, false},
		{"#000000", color.RGBA{0, 0, 0, 255}, false},
		{"#FFF", color.RGBA{}, true},
		{"#GG0000", color.RGBA{}, true},
		{"", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "#1A2B3C", FormatHexColor(color.RGBA{26, 43, 60, 255}))
}

func TestResolveLayout_Defaults(t *testing.T) {
	spec, err := ResolveLayout(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRenderSpec(), spec)
	assert.Equal(t, "Go", spec.FontFamily)
	assert.Equal(t, 48, spec.FontSize)
	assert.Equal(t, color.RGBA{A: 255}, spec.Color)
	assert.Equal(t, Anchor{Mode: AnchorFraction, X: 0.5, Y: 0.45}, spec.Anchor)
}

func TestResolveLayout_WellFormed(t *testing.T) {
	spec, err := ResolveLayout(validLayout())
	require.NoError(t, err)
	assert.Equal(t, RenderSpec{
		FontFamily: "Go Bold",
		FontSize:   36,
		Color:      color.RGBA{26, 43, 60, 255},
		Anchor:     Anchor{Mode: AnchorFraction, X: 0.5, Y: 0.6},
	}, spec)

	again, err := ResolveLayout(validLayout())
	require.NoError(t, err)
	assert.Equal(t, spec, again, "resolution is idempotent")
}

func TestResolveLayout_Malformed(t *testing.T) {
	tests := map[string]func(l *StoredLayout){
		"zero size":          func(l *StoredLayout) { l.FontSize = ptr(0.0) },
		"missing size":       func(l *StoredLayout) { l.FontSize = nil },
		"huge size":          func(l *StoredLayout) { l.FontSize = ptr(3e5) },
		"infinite size":      func(l *StoredLayout) { l.FontSize = ptr(math.Inf(1)) },
		"blank family":       func(l *StoredLayout) { l.FontFamily = ptr("  ") },
		"bad color":          func(l *StoredLayout) { l.TextColor = ptr("red") },
		"missing position":   func(l *StoredLayout) { l.TextPosition = nil },
		"missing y":          func(l *StoredLayout) { l.TextPosition.Y = nil },
		"fraction above one": func(l *StoredLayout) { l.TextPosition.X = ptr(1.5) },
		"negative pixel": func(l *StoredLayout) {
			l.PositionMode = "pixels"
			l.TextPosition.X = ptr(-3.0)
		},
		"unknown mode": func(l *StoredLayout) { l.PositionMode = "percent" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			l := validLayout()
			mutate(l)
			spec, err := ResolveLayout(l)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidLayout)
			assert.Equal(t, KindConfigParse, KindOf(err))
			assert.False(t, IsFatal(err))
			assert.Equal(t, DefaultRenderSpec(), spec)
		})
	}
}

func TestResolveLayout_MaxFontSize(t *testing.T) {
	l := validLayout()
	l.FontSize = ptr(float64(MaxFontSize))

	spec, err := ResolveLayout(l)
	require.NoError(t, err)
	assert.Equal(t, MaxFontSize, spec.FontSize)
}

func TestResolveLayout_PixelMode(t *testing.T) {
	l := validLayout()
	l.PositionMode = "pixels"
	l.TextPosition = &TextPosition{X: ptr(640.0), Y: ptr(410.0)}

	spec, err := ResolveLayout(l)
	require.NoError(t, err)
	assert.Equal(t, Anchor{Mode: AnchorPixels, X: 640, Y: 410}, spec.Anchor)
}

func TestAnchor_Point(t *testing.T) {
	bounds := image.Rect(0, 0, 1000, 800)

	x, y := Anchor{Mode: AnchorFraction, X: 0.5, Y: 0.45}.Point(bounds)
	assert.InDelta(t, 500, x, 1e-9)
	assert.InDelta(t, 360, y, 1e-9)

	x, y = Anchor{Mode: AnchorPixels, X: 120, Y: 80}.Point(bounds)
	assert.InDelta(t, 120, x, 1e-9)
	assert.InDelta(t, 80, y, 1e-9)
}

func TestDecodeLayout(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		l, err := DecodeLayout([]byte(`{"font_size": 40, "font_family": "Go", "text_color": "#FF0000", "text_position": {"x": 0.5, "y": 0.5}}`))
		require.NoError(t, err)
		spec, err := ResolveLayout(l)
		require.NoError(t, err)
		assert.Equal(t, 40, spec.FontSize)
		assert.Equal(t, color.RGBA{255, 0, 0, 255}, spec.Color)
	})

	t.Run("yaml", func(t *testing.T) {
		l, err := DecodeLayout([]byte("font_size: 30\nfont_family: Go Mono\ntext_color: '#00FF00'\nposition_mode: pixels\ntext_position:\n  x: 100\n  y: 50\n"))
		require.NoError(t, err)
		spec, err := ResolveLayout(l)
		require.NoError(t, err)
		assert.Equal(t, "Go Mono", spec.FontFamily)
		assert.Equal(t, Anchor{Mode: AnchorPixels, X: 100, Y: 50}, spec.Anchor)
	})

	t.Run("empty", func(t *testing.T) {
		l, err := DecodeLayout([]byte("  \n"))
		require.NoError(t, err)
		assert.Nil(t, l)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodeLayout([]byte("{font_size: [unclosed"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidLayout)
		assert.Equal(t, KindConfigParse, KindOf(err))
	})
}

func TestRenderSpec_StoredLayoutRoundTrip(t *testing.T) {
	spec, err := ResolveLayout(validLayout())
	require.NoError(t, err)

	stored := spec.StoredLayout()
	back, err := ResolveLayout(&stored)
	require.NoError(t, err)
	assert.Equal(t, spec, back)
}
