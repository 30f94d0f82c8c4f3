// Image payload helpers. Images are stored as already-encoded bytes; this
// only decodes them for dimension metadata and pixel access.

package ndarray

import (
	"fmt"
	"image"
	"io"

	// Image payloads are JPEG or PNG.
	_ "image/jpeg"
	_ "image/png"
)

// ImageInfo describes an encoded image payload.
type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// DecodeImageInfo reads the pixel dimensions of an encoded image without
// decoding the full pixel data.
func DecodeImageInfo(r io.Reader) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// DecodeImage decodes the full image for downstream pixel access.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
