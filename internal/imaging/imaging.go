// Package imaging provides image decoding and the raster transforms shared
// by the quality scorer and the format writers: bounded downsampling,
// grayscale/RGB plane extraction, and 8-bit normalization.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/draw"

	// Decoders for the formats a scan batch can contain.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
)

// Decode opens and decodes a raster image file.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Downsample scales img so that neither dimension exceeds maxDim, preserving
// aspect ratio. Images already within bounds are returned unchanged.
func Downsample(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	if w >= h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// ScaleGray resizes img to exactly w×h and converts it to grayscale.
// Used for the fixed-resolution structural-similarity basis.
func ScaleGray(img image.Image, w, h int) *image.Gray {
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	gray := image.NewGray(scaled.Bounds())
	draw.Draw(gray, gray.Bounds(), scaled, image.Point{}, draw.Src)
	return gray
}

// GrayPlane extracts a row-major luminance plane scaled to 0–255.
// Uses the ITU-R 601 weights the legacy analyzer used.
func GrayPlane(img image.Image) ([]float64, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			row := g.Pix[y*g.Stride : y*g.Stride+w]
			for x, v := range row {
				out[y*w+x] = float64(v)
			}
		}
		return out, w, h
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			rf := float64(r) / 257
			gf := float64(g) / 257
			bf := float64(bl) / 257
			out[i] = 0.2989*rf + 0.5870*gf + 0.1140*bf
			i++
		}
	}
	return out, w, h
}

// RGBPlanes extracts row-major R, G, B planes scaled to 0–255. The second
// return is false for single-channel images, where chroma statistics are
// meaningless.
func RGBPlanes(img image.Image) (r, g, b []float64, ok bool) {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return nil, nil, nil, false
	}

	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	r = make([]float64, n)
	g = make([]float64, n)
	b = make([]float64, n)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			r[i] = float64(pr) / 257
			g[i] = float64(pg) / 257
			b[i] = float64(pb) / 257
			i++
		}
	}
	return r, g, b, true
}

// BitDepth returns the per-sample bit depth of the decoded representation.
func BitDepth(img image.Image) int {
	switch img.(type) {
	case *image.Gray16, *image.RGBA64, *image.NRGBA64:
		return 16
	default:
		return 8
	}
}

// To8Bit normalizes img to an 8-bit representation suitable for lossy
// encoders: grayscale stays single-channel, everything else (palette, alpha,
// high bit depth) is flattened onto a white background as 8-bit RGB.
func To8Bit(img image.Image) image.Image {
	switch v := img.(type) {
	case *image.Gray:
		return v
	case *image.Gray16:
		b := v.Bounds()
		out := image.NewGray(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out.SetGray(x, y, color.Gray{Y: uint8(v.Gray16At(x, y).Y >> 8)})
			}
		}
		return out
	}

	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}
