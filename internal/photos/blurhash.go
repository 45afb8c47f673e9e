package photos

import (
	"bytes"
	"image"

	"github.com/bbrks/go-blurhash"

	"lumen/internal/services"
)

// blurhashSize is the thumbnail edge used for blurhash computation. The
// hash is a low-resolution placeholder, so a small input produces a nearly
// identical result at a fraction of the cost.
const blurhashSize = 64

// Blurhash computes a compact placeholder hash for a photo. History
// entries store it so the UI can paint a blurred stand-in before the
// photo file loads.
func Blurhash(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", services.Wrap(services.ErrImageProcessing, "photos", "blurhash", "decode image", err)
	}

	hash, err := blurhash.Encode(4, 3, thumbnailFor(img))
	if err != nil {
		return "", services.Wrap(services.ErrImageProcessing, "photos", "blurhash", "encode blurhash", err)
	}
	return hash, nil
}

// thumbnailFor shrinks an image to at most blurhashSize on its longest
// edge using nearest-neighbor sampling, which is plenty for a blurhash.
func thumbnailFor(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= blurhashSize && height <= blurhashSize {
		return img
	}

	dstW, dstH := fitWithin(width, height, blurhashSize)
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xRatio := float64(width) / float64(dstW)
	yRatio := float64(height) / float64(dstH)
	for y := 0; y < dstH; y++ {
		for x := 0; x < dstW; x++ {
			srcX := bounds.Min.X + int(float64(x)*xRatio)
			srcY := bounds.Min.Y + int(float64(y)*yRatio)
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}
	return dst
}
