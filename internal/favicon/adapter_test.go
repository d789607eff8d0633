package favicon

import (
	"bytes"
	"errors"
	"testing"

	ico "github.com/sergeymakinen/go-ico"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultAdapter() *Adapter {
	cfg := DefaultLocatorConfig()
	return NewAdapter(0, cfg.IconTypes, cfg.PNGTypes)
}

func TestAdapterPassesIconsThrough(t *testing.T) {
	t.Parallel()

	raw := icoBytes(t, 16)
	out, converted, err := newDefaultAdapter().Adapt(raw, "image/x-icon")
	require.NoError(t, err)
	assert.False(t, converted)
	assert.Equal(t, raw, out)
}

func TestAdapterConvertsPNG(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		w, h int
	}{
		{"square downscale", 64, 64},
		{"wide", 120, 40},
		{"tall upscale", 8, 16},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out, converted, err := newDefaultAdapter().Adapt(pngBytes(t, tc.w, tc.h), "image/png")
			require.NoError(t, err)
			assert.True(t, converted)

			cfg, err := ico.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, DefaultIconSize, cfg.Width)
			assert.Equal(t, DefaultIconSize, cfg.Height)
		})
	}
}

func TestAdapterRejectsCorruptPNG(t *testing.T) {
	t.Parallel()

	_, _, err := newDefaultAdapter().Adapt([]byte("definitely not a png"), "image/png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConversionFailed))
}

func TestAdapterRejectsUnknownTypes(t *testing.T) {
	t.Parallel()

	_, _, err := newDefaultAdapter().Adapt([]byte("<svg/>"), "image/svg+xml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConversionFailed))
	assert.True(t, errors.Is(err, ErrUnsupportedContentType))
}

func TestFitSquareCentersImage(t *testing.T) {
	t.Parallel()

	dst := fitSquare(noiseImage(64, 32), 32)
	assert.Equal(t, 32, dst.Bounds().Dx())
	assert.Equal(t, 32, dst.Bounds().Dy())
	// 64x32 scales to 32x16, leaving 8 transparent rows above and below.
	assert.Equal(t, uint8(0), dst.NRGBAAt(16, 0).A)
	assert.Equal(t, uint8(0), dst.NRGBAAt(16, 31).A)
	assert.NotEqual(t, uint8(0), dst.NRGBAAt(16, 16).A)
}
