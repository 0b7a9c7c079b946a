package terminal

import (
	"periph.io/x/devices/v3/ili9488/font"
	"periph.io/x/devices/v3/ili9488/rgb565"
)

// glyphKey identifies a rasterized glyph: one character drawn with one
// foreground/background color pair.
type glyphKey struct {
	r      rune
	fg, bg rgb565.Pixel
}

// GlyphCache rasterizes (rune, fg, bg) triples into fixed-size two-color
// RGB565 bitmaps and reuses them.
//
// The cache has no eviction policy; it grows with the number of distinct
// triples actually drawn. That is acceptable for the small alphabets and
// palettes a terminal uses, but callers on memory-constrained targets should
// keep the palette small.
type GlyphCache struct {
	bitmaps map[glyphKey][]byte
}

// NewGlyphCache creates an empty glyph cache.
func NewGlyphCache() *GlyphCache {
	return &GlyphCache{bitmaps: map[glyphKey][]byte{}}
}

// Bitmap returns the big-endian RGB565 bitmap for r drawn in fg over bg,
// font.Width x font.Height pixels in row-major order. The bitmap is
// rasterized on first use and cached; callers must not modify it.
func (c *GlyphCache) Bitmap(r rune, fg, bg rgb565.Pixel) []byte {
	key := glyphKey{r: r, fg: fg, bg: bg}
	if bm, ok := c.bitmaps[key]; ok {
		return bm
	}

	rows := font.Glyph(r)
	bm := make([]byte, font.Width*font.Height*2)
	i := 0
	for _, mask := range rows {
		for bit := font.Width - 1; bit >= 0; bit-- {
			if mask>>uint(bit)&1 == 1 {
				fg.PutBytes(bm[i:])
			} else {
				bg.PutBytes(bm[i:])
			}
			i += 2
		}
	}

	c.bitmaps[key] = bm
	return bm
}

// Len returns the number of cached glyph bitmaps.
func (c *GlyphCache) Len() int {
	return len(c.bitmaps)
}

// Reset discards all cached bitmaps.
func (c *GlyphCache) Reset() {
	c.bitmaps = map[glyphKey][]byte{}
}
