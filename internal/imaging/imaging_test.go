package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDownsample_Bounds(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		maxW  int
		maxH  int
		scale bool
	}{
		{"already small", 640, 480, 640, 480, false},
		{"wide", 4096, 1024, 1024, 256, true},
		{"tall", 512, 2048, 256, 1024, true},
		{"square", 3000, 3000, 1024, 1024, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewGray(image.Rect(0, 0, tt.w, tt.h))
			got := Downsample(src, 1024)
			b := got.Bounds()
			if b.Dx() != tt.maxW || b.Dy() != tt.maxH {
				t.Errorf("got %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.maxW, tt.maxH)
			}
			if !tt.scale && got != image.Image(src) {
				t.Error("in-bounds image should be returned unchanged")
			}
		})
	}
}

func TestGrayPlane_GrayFastPath(t *testing.T) {
	require := require.New(t)

	src := image.NewGray(image.Rect(0, 0, 2, 2))
	src.SetGray(0, 0, color.Gray{Y: 0})
	src.SetGray(1, 0, color.Gray{Y: 128})
	src.SetGray(0, 1, color.Gray{Y: 200})
	src.SetGray(1, 1, color.Gray{Y: 255})

	plane, w, h := GrayPlane(src)
	require.Equal(2, w)
	require.Equal(2, h)
	require.Equal([]float64{0, 128, 200, 255}, plane)
}

func TestRGBPlanes_SingleChannel(t *testing.T) {
	_, _, _, ok := RGBPlanes(image.NewGray(image.Rect(0, 0, 4, 4)))
	if ok {
		t.Error("grayscale image should report no RGB planes")
	}
	_, _, _, ok = RGBPlanes(image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	if !ok {
		t.Error("RGB image should report planes")
	}
}

func TestTo8Bit(t *testing.T) {
	require := require.New(t)

	g16 := image.NewGray16(image.Rect(0, 0, 1, 1))
	g16.SetGray16(0, 0, color.Gray16{Y: 0xabcd})
	out := To8Bit(g16)
	gray, ok := out.(*image.Gray)
	require.True(ok, "Gray16 should normalize to Gray")
	require.Equal(uint8(0xab), gray.GrayAt(0, 0).Y)

	// Alpha flattens onto white.
	rgba := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	rgba.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
	out = To8Bit(rgba)
	flat, ok := out.(*image.NRGBA)
	require.True(ok)
	c := flat.NRGBAAt(0, 0)
	require.Equal(uint8(255), c.R)
	require.Equal(uint8(255), c.A)
}

func TestScaleGray_FixedResolution(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 777, 333))
	got := ScaleGray(src, 512, 512)
	b := got.Bounds()
	if b.Dx() != 512 || b.Dy() != 512 {
		t.Errorf("got %dx%d, want 512x512", b.Dx(), b.Dy())
	}
}
