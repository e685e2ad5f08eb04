// Package imaging turns encoded image bytes into the two inputs the scoring
// engine works on: a Raster with random-access 8-bit RGB reads, and the
// ContainerMetadata found in the encoded container.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// RGB is one pixel with straight (non-premultiplied) 8-bit channels.
type RGB struct {
	R, G, B uint8
}

// Raster is a decoded pixel grid. Coordinates start at (0,0).
type Raster interface {
	Width() int
	Height() int
	At(x, y int) RGB
}

// nrgbaRaster is a Raster backed by a zero-origin *image.NRGBA.
type nrgbaRaster struct {
	img *image.NRGBA
}

// FromImage converts img into a Raster. The pixels are copied once so
// repeated reads avoid per-pixel color model conversion.
func FromImage(img image.Image) Raster {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return &nrgbaRaster{img: nrgba}
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return &nrgbaRaster{img: dst}
}

func (r *nrgbaRaster) Width() int  { return r.img.Rect.Dx() }
func (r *nrgbaRaster) Height() int { return r.img.Rect.Dy() }

func (r *nrgbaRaster) At(x, y int) RGB {
	i := r.img.PixOffset(x, y)
	p := r.img.Pix[i : i+3 : i+3]
	return RGB{R: p[0], G: p[1], B: p[2]}
}

// Decode decodes JPEG, PNG, GIF, WebP, BMP or TIFF bytes into a Raster and
// returns the registered format name.
func Decode(data []byte) (Raster, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, format, fmt.Errorf("decode image: empty %s raster", format)
	}
	return FromImage(img), format, nil
}
