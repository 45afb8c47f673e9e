package photos

import (
	"bytes"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder

	"lumen/internal/services"
)

const jpegQuality = 85

// PrepareForUpload decodes a captured photo, downscales it so its longest
// edge does not exceed maxEdge, and re-encodes it as JPEG. A capture that
// already fits and is already JPEG passes through unchanged.
func PrepareForUpload(data []byte, maxEdge int) ([]byte, error) {
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrImageProcessing, "photos", "prepare", "empty image data", nil)
	}
	if maxEdge <= 0 {
		maxEdge = 1536
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrImageProcessing, "photos", "prepare", "decode image", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxEdge && height <= maxEdge {
		if format == "jpeg" {
			return data, nil
		}
		return encodeJPEG(img)
	}

	dstW, dstH := fitWithin(width, height, maxEdge)
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return encodeJPEG(dst)
}

// fitWithin scales (width, height) so the longest edge equals maxEdge,
// preserving aspect ratio. Both results are at least 1.
func fitWithin(width, height, maxEdge int) (int, int) {
	if width >= height {
		h := (height * maxEdge) / width
		if h < 1 {
			h = 1
		}
		return maxEdge, h
	}
	w := (width * maxEdge) / height
	if w < 1 {
		w = 1
	}
	return w, maxEdge
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, services.Wrap(services.ErrImageProcessing, "photos", "prepare", "encode jpeg", err)
	}
	return buf.Bytes(), nil
}
