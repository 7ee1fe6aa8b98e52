package attachment

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP decoding for image.Decode
)

// ScaledSize fits (w, h) inside a limit x limit box, scaling the longer side
// to limit and the shorter side proportionally. Sizes already inside the box
// are returned unchanged.
func ScaledSize(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, atLeastOne((h*limit + w/2) / w)
	}
	return atLeastOne((w*limit + h/2) / h), limit
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// ResizeImage decodes data, scales it to fit maxDim and re-encodes it as JPEG
// at quality. Transparent areas are flattened onto white.
func ResizeImage(data []byte, maxDim, quality int) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := ScaledSize(bounds.Dx(), bounds.Dy(), maxDim)

	var img image.Image = src
	if w != bounds.Dx() || h != bounds.Dy() {
		img = imaging.Resize(src, w, h, imaging.Lanczos)
	}

	canvas := imaging.New(w, h, color.White)
	canvas = imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
