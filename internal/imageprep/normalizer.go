package imageprep

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/domain"
	_ "golang.org/x/image/webp" // registers WebP with image.Decode
)

// ErrNormalizeFailed indicates that a single attachment could not be
// decoded, converted or re-encoded.
var ErrNormalizeFailed = errors.New("image normalization failed")

// ErrInvalidConfig indicates that the normalizer settings are out of range.
var ErrInvalidConfig = errors.New("invalid image normalizer configuration")

// Normalizer converts raw image bytes into normalized JPEG payloads.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	maxSide int
	quality int
}

// NewNormalizer creates a Normalizer from the image configuration.
func NewNormalizer(cfg config.ImageConfig) (*Normalizer, error) {
	if cfg.MaxSide <= 0 {
		return nil, fmt.Errorf("%w: max side must be positive, got %d", ErrInvalidConfig, cfg.MaxSide)
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return nil, fmt.Errorf("%w: jpeg quality must be within 1-100, got %d", ErrInvalidConfig, cfg.JPEGQuality)
	}

	return &Normalizer{
		maxSide: cfg.MaxSide,
		quality: cfg.JPEGQuality,
	}, nil
}

// Normalize decodes raw, applies orientation, flattening and scaling, and
// returns the re-encoded JPEG with its base64 text form.
func (n *Normalizer) Normalize(raw []byte) (*domain.EncodedImage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrNormalizeFailed)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrNormalizeFailed, err)
	}

	img = flatten(img)
	img = n.fit(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.quality)); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrNormalizeFailed, err)
	}

	bounds := img.Bounds()
	data := buf.Bytes()
	return &domain.EncodedImage{
		Format: domain.ImageFormatJPEG,
		Data:   data,
		Base64: base64.StdEncoding.EncodeToString(data),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// fit scales img so its longer side is at most maxSide.
func (n *Normalizer) fit(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= n.maxSide && h <= n.maxSide {
		return img
	}

	if w >= h {
		return imaging.Resize(img, n.maxSide, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, n.maxSide, imaging.Lanczos)
}

// flatten composites images that may carry transparency onto white.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	bounds := img.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}
