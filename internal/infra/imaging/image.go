package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
)

// DefaultMaxDimension matches the tile limit of the Llama 3.2 vision models.
const DefaultMaxDimension = 1120

// DefaultMaxPixels bounds width*height before the full decode allocates.
const DefaultMaxPixels = 40_000_000

const jpegQuality = 85

var mimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// Preparer implements interpretation.ImagePreparer for JPEG and PNG uploads.
type Preparer struct {
	MaxDimension int
	MaxPixels    int
}

func NewPreparer(maxDimension, maxPixels int) *Preparer {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Preparer{MaxDimension: maxDimension, MaxPixels: maxPixels}
}

// Prepare rejects anything that does not fully decode as JPEG/PNG or has more
// than MaxPixels pixels, and downsizes images larger than MaxDimension on either side.
func (p *Preparer) Prepare(data []byte) (interpretation.Image, error) {
	if len(data) == 0 {
		return interpretation.Image{}, invalid("image is empty", nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return interpretation.Image{}, invalid("image does not decode as JPEG or PNG", err)
	}
	mime, ok := mimeTypes[format]
	if !ok {
		return interpretation.Image{}, invalid(fmt.Sprintf("unsupported image format %q", format), nil)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return interpretation.Image{}, invalid("image has no pixels", nil)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(p.MaxPixels) {
		return interpretation.Image{}, invalid(fmt.Sprintf("image is %dx%d, limit is %d pixels", cfg.Width, cfg.Height, p.MaxPixels), nil)
	}

	// the header alone says nothing about the pixel data
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return interpretation.Image{}, invalid("image is truncated or corrupt", err)
	}

	if cfg.Width <= p.MaxDimension && cfg.Height <= p.MaxDimension {
		return interpretation.Image{Data: data, MIMEType: mime, Width: cfg.Width, Height: cfg.Height}, nil
	}

	// keep aspect ratio
	ratio := min(float64(p.MaxDimension)/float64(cfg.Width), float64(p.MaxDimension)/float64(cfg.Height))
	w := max(1, int(float64(cfg.Width)*ratio))
	h := max(1, int(float64(cfg.Height)*ratio))
	resized := resize.Resize(uint(w), uint(h), src, resize.Lanczos3)

	// JPEG has no alpha channel, flatten onto white
	b := resized.Bounds()
	flat := image.NewRGBA(b)
	draw.Draw(flat, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, b, resized, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return interpretation.Image{}, invalid("re-encode resized image", err)
	}
	return interpretation.Image{Data: buf.Bytes(), MIMEType: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

func invalid(msg string, err error) error {
	return interpretation.NewError(interpretation.KindInvalidInput, msg, err)
}
