package favicon

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	ico "github.com/sergeymakinen/go-ico"
	xdraw "golang.org/x/image/draw"
)

// DefaultIconSize is the edge length of re-encoded icons.
const DefaultIconSize = 32

// Adapter passes icon payloads through and re-encodes PNG payloads as a
// single-image ICO.
type Adapter struct {
	size      int
	iconTypes []string
	pngTypes  []string
}

// NewAdapter builds an Adapter. A non-positive size falls back to
// DefaultIconSize.
func NewAdapter(size int, iconTypes, pngTypes []string) *Adapter {
	if size <= 0 {
		size = DefaultIconSize
	}
	return &Adapter{size: size, iconTypes: iconTypes, pngTypes: pngTypes}
}

// Adapt implements Converter.
func (a *Adapter) Adapt(raw []byte, contentType string) ([]byte, bool, error) {
	switch {
	case matchesAny(contentType, a.iconTypes):
		return raw, false, nil
	case matchesAny(contentType, a.pngTypes):
		out, err := a.pngToICO(raw)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	default:
		return nil, false, fmt.Errorf("%w: %w %q", ErrConversionFailed, ErrUnsupportedContentType, contentType)
	}
}

func (a *Adapter) pngToICO(raw []byte) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode png: %w", ErrConversionFailed, err)
	}
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty png", ErrConversionFailed)
	}
	dst := fitSquare(src, a.size)
	var buf bytes.Buffer
	if err := ico.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("%w: encode ico: %w", ErrConversionFailed, err)
	}
	return buf.Bytes(), nil
}

// fitSquare scales src to fit a size×size transparent canvas, keeping aspect
// ratio and centering the result.
func fitSquare(src image.Image, size int) *image.NRGBA {
	sb := src.Bounds()
	scale := math.Min(float64(size)/float64(sb.Dx()), float64(size)/float64(sb.Dy()))
	w := max(1, int(math.Round(float64(sb.Dx())*scale)))
	h := max(1, int(math.Round(float64(sb.Dy())*scale)))

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	offX := (size - w) / 2
	offY := (size - h) / 2
	xdraw.CatmullRom.Scale(dst, image.Rect(offX, offY, offX+w, offY+h), src, sb, xdraw.Over, nil)
	return dst
}
