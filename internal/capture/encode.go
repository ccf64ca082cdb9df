package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
)

// Fit scales w x h down to fit inside a maxDim x maxDim box, keeping the aspect
// ratio. Images that already fit are returned unchanged.
func Fit(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	scale := math.Min(float64(maxDim)/float64(w), float64(maxDim)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// Encode decodes a screenshot, downscales it into the maxDim box and
// re-encodes it as JPEG at quality.
func Encode(raw []byte, maxDim, quality int) (Frame, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Frame{}, fmt.Errorf("decode screenshot: %w", err)
	}

	sb := src.Bounds()
	w, h := Fit(sb.Dx(), sb.Dy(), maxDim)
	img := src
	if w != sb.Dx() || h != sb.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Frame{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Frame{Data: buf.Bytes(), Width: w, Height: h}, nil
}
