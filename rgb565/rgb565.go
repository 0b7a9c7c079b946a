// Package rgb565 provides the 16-bit RGB565 color format used by the ILI9488
// display when configured for 16 bits per pixel.
//
// Pixels are transmitted big-endian, 2 bytes per pixel, row-major within the
// active window. This package provides the Pixel color type and an Image
// implementation backed by the exact byte layout the display consumes.
package rgb565

import (
	"image"
	"image/color"
)

// Pixel is a 16-bit RGB565 color: 5 bits red, 6 bits green, 5 bits blue.
type Pixel uint16

// Common colors.
const (
	Black Pixel = 0x0000
	White Pixel = 0xFFFF
	Red   Pixel = 0xF800
	Green Pixel = 0x07E0
	Blue  Pixel = 0x001F
	Cyan  Pixel = 0x07FF
)

// RGBA converts the Pixel to standard 16-bit-per-channel RGBA.
// Each channel is expanded by bit replication so that full-scale values map
// to full-scale 16-bit values.
func (p Pixel) RGBA() (r, g, b, a uint32) {
	r5 := uint32(p>>11) & 0x1F
	g6 := uint32(p>>5) & 0x3F
	b5 := uint32(p) & 0x1F
	r8 := r5<<3 | r5>>2
	g8 := g6<<2 | g6>>4
	b8 := b5<<3 | b5>>2
	return r8 * 0x101, g8 * 0x101, b8 * 0x101, 0xFFFF
}

// From888 packs 8-bit-per-channel RGB into a Pixel.
func From888(r, g, b uint8) Pixel {
	return Pixel(uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3))
}

// PutBytes writes the big-endian wire encoding of the pixel into dst, which
// must be at least 2 bytes long.
func (p Pixel) PutBytes(dst []byte) {
	dst[0] = byte(p >> 8)
	dst[1] = byte(p)
}

// toPixel converts any color.Color to Pixel.
func toPixel(c color.Color) color.Color {
	if p, ok := c.(Pixel); ok {
		return p
	}
	r, g, b, _ := c.RGBA()
	return From888(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// Model converts colors to Pixel.
var Model = color.ModelFunc(toPixel)

// Image is an RGB565 image stored in the display's wire format: big-endian,
// 2 bytes per pixel, row-major.
type Image struct {
	Pix    []byte          // Pixel data (2 bytes per pixel, big-endian)
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// NewImage creates a new Image with the specified bounds.
func NewImage(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r}
	}
	stride := w * 2
	return &Image{
		Pix:    make([]byte, stride*h),
		Stride: stride,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *Image) ColorModel() color.Model {
	return Model
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
// It implements the image.Image interface.
func (p *Image) At(x, y int) color.Color {
	return p.PixelAt(x, y)
}

// PixelAt returns the Pixel at (x, y).
func (p *Image) PixelAt(x, y int) Pixel {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return 0
	}
	o := p.pixOffset(x, y)
	return Pixel(uint16(p.Pix[o])<<8 | uint16(p.Pix[o+1]))
}

// Set sets the color of the pixel at (x, y).
func (p *Image) Set(x, y int, c color.Color) {
	p.SetPixel(x, y, Model.Convert(c).(Pixel))
}

// SetPixel sets the Pixel at (x, y).
// This is faster than Set() as it doesn't require color conversion.
func (p *Image) SetPixel(x, y int, c Pixel) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	c.PutBytes(p.Pix[p.pixOffset(x, y):])
}

// pixOffset returns the byte offset for the pixel at (x, y).
func (p *Image) pixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}
