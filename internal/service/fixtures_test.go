package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"testing"

	"github.com/aidetector/aidetector/internal/imaging"
)

// newImage builds a w x h image whose pixels come from fn.
func newImage(w, h int, fn func(x, y int) color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fn(x, y))
		}
	}
	return img
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	return newImage(w, h, func(int, int) color.NRGBA { return c })
}

// mirroredImage is left/right symmetric but otherwise varied.
func mirroredImage(w, h int) *image.NRGBA {
	return newImage(w, h, func(x, y int) color.NRGBA {
		m := min(x, w-1-x)
		return color.NRGBA{R: uint8(m * 37), G: uint8(y * 11), B: uint8(m*5 + y*3), A: 255}
	})
}

func checkerboardImage(w, h int) *image.NRGBA {
	return newImage(w, h, func(x, y int) color.NRGBA {
		if (x+y)%2 == 0 {
			return color.NRGBA{A: 255}
		}
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	})
}

func noisyImage(w, h int, seed uint64) *image.NRGBA {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	return newImage(w, h, func(int, int) color.NRGBA {
		return color.NRGBA{R: uint8(rng.IntN(256)), G: uint8(rng.IntN(256)), B: uint8(rng.IntN(256)), A: 255}
	})
}

func raster(img image.Image) imaging.Raster {
	return imaging.FromImage(img)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

var gray = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

// panicRaster fails on every pixel read.
type panicRaster struct{}

func (panicRaster) Width() int              { return 10 }
func (panicRaster) Height() int             { return 10 }
func (panicRaster) At(int, int) imaging.RGB { panic("pixel read failed") }
