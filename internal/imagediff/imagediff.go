// Package imagediff compares two screenshots by mean squared error.
package imagediff

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// DefaultThreshold is the MSE above which two captures differ visibly.
const DefaultThreshold = 50.0

var ErrEmptyImage = errors.New("image has no pixels")

// DecodePNG decodes a PNG screenshot.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}

// MSE returns the mean squared error between prev and curr over the R, G and
// B channels on a 0-255 scale. When the sizes differ, curr is resized to the
// bounds of prev first. Alpha is ignored.
func MSE(prev, curr image.Image) (float64, error) {
	pb := prev.Bounds()
	if pb.Empty() || curr.Bounds().Empty() {
		return 0, ErrEmptyImage
	}
	a := toRGBA(prev, pb.Dx(), pb.Dy())
	b := toRGBA(curr, pb.Dx(), pb.Dy())

	var sum float64
	for i := 0; i < len(a.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			d := float64(a.Pix[i+c]) - float64(b.Pix[i+c])
			sum += d * d
		}
	}
	n := float64(pb.Dx() * pb.Dy() * 3)
	return sum / n, nil
}

// ComparePNG decodes both screenshots and returns their MSE.
func ComparePNG(prev, curr []byte) (float64, error) {
	a, err := DecodePNG(prev)
	if err != nil {
		return 0, fmt.Errorf("previous capture: %w", err)
	}
	b, err := DecodePNG(curr)
	if err != nil {
		return 0, fmt.Errorf("current capture: %w", err)
	}
	return MSE(a, b)
}

// Significant reports whether mse exceeds threshold.
func Significant(mse, threshold float64) bool {
	return mse > threshold
}

// toRGBA draws img into a w x h RGBA canvas anchored at the origin,
// scaling bilinearly when the size differs.
func toRGBA(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	src := img.Bounds()
	if src.Dx() == w && src.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
		return dst
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst
}
