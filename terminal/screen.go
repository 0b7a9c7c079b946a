package terminal

import (
	"errors"
	"fmt"
	"image"

	"periph.io/x/devices/v3/ili9488/font"
	"periph.io/x/devices/v3/ili9488/rgb565"
)

// Display is the subset of the ili9488 driver the renderer needs. It is
// satisfied by *ili9488.Dev.
type Display interface {
	Bounds() image.Rectangle
	SetWindow(x0, y0, x1, y1 int) error
	WritePixels(pixels []byte) error
	FillRect(x, y, w, h int, c rgb565.Pixel) error
	FillScreen(c rgb565.Pixel) error
	DefineScrollArea(topFixed, scrollHeight, bottomFixed int) error
	SetScrollStart(line int) error
	ResetScroll() error
	ScrollStart() int
}

const (
	// DefaultMaxBatchPixels is the batching ceiling for concatenated glyph
	// writes. Spans needing more pixels than this fall back to
	// per-character writes.
	DefaultMaxBatchPixels = 512

	// shortTextMax is the span length at or below which characters are
	// always drawn individually; the batching setup isn't worth it.
	shortTextMax = 4
)

// ScreenOpts is the configuration for a Screen.
type ScreenOpts struct {
	// MaxBatchPixels overrides DefaultMaxBatchPixels when > 0.
	MaxBatchPixels int
}

// Screen draws text rows onto a Display using the controller's vertical
// hardware scroll, tracking which rows are pending redraw.
//
// Screen is not safe for concurrent use; the caller owns the serialization
// of all drawing, as it owns the bus.
type Screen struct {
	disp   Display
	width  int
	height int
	cols   int
	rows   int

	offset int              // physical scroll offset in pixels
	dirty  map[int]struct{} // logical rows pending redraw
	glyphs *GlyphCache

	maxBatchPixels int
}

// NewScreen creates a Screen over disp, defining a full-height scroll area
// and resetting the scroll offset.
//
// opts can be nil to use defaults.
func NewScreen(disp Display, opts *ScreenOpts) (*Screen, error) {
	b := disp.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < font.Width || h < font.Height {
		return nil, fmt.Errorf("terminal: display %dx%d is smaller than one %dx%d character cell",
			w, h, font.Width, font.Height)
	}
	if h%font.Height != 0 {
		// Offsets advance in whole character rows; a height that isn't a
		// multiple of the cell height would let a row band straddle the
		// scroll wrap point.
		return nil, fmt.Errorf("terminal: display height %d is not a multiple of the %d-pixel character cell",
			h, font.Height)
	}

	s := &Screen{
		disp:           disp,
		width:          w,
		height:         h,
		cols:           w / font.Width,
		rows:           h / font.Height,
		dirty:          map[int]struct{}{},
		glyphs:         NewGlyphCache(),
		maxBatchPixels: DefaultMaxBatchPixels,
	}
	if opts != nil && opts.MaxBatchPixels > 0 {
		s.maxBatchPixels = opts.MaxBatchPixels
	}

	if err := disp.DefineScrollArea(0, h, 0); err != nil {
		return nil, err
	}
	if err := disp.ResetScroll(); err != nil {
		return nil, err
	}
	return s, nil
}

// Size returns the screen dimensions in character cells.
func (s *Screen) Size() (cols, rows int) {
	return s.cols, s.rows
}

// ScrollOffset returns the current physical scroll offset in pixels.
func (s *Screen) ScrollOffset() int {
	return s.offset
}

// MarkDirty adds rows to the set of rows pending redraw. Out-of-range rows
// are ignored.
func (s *Screen) MarkDirty(rows ...int) {
	for _, r := range rows {
		if r >= 0 && r < s.rows {
			s.dirty[r] = struct{}{}
		}
	}
}

// Dirty reports whether row is pending redraw.
func (s *Screen) Dirty(row int) bool {
	_, ok := s.dirty[row]
	return ok
}

// DirtyCount returns the number of rows pending redraw.
func (s *Screen) DirtyCount() int {
	return len(s.dirty)
}

// physY translates a logical pixel row into the physical framebuffer row,
// wrapping modulo the scroll height.
func (s *Screen) physY(y int) int {
	return (y + s.offset) % s.height
}

// ScrollUp advances the hardware scroll by lines character rows and marks
// the newly exposed bottom rows dirty. The exposed rows still show stale
// pixels until redrawn.
func (s *Screen) ScrollUp(lines int) error {
	if lines <= 0 {
		return nil
	}
	if err := s.disp.SetScrollStart(s.offset + lines*font.Height); err != nil {
		return err
	}
	s.offset = s.disp.ScrollStart()

	exposed := lines
	if exposed > s.rows {
		exposed = s.rows
	}
	for i := s.rows - exposed; i < s.rows; i++ {
		s.MarkDirty(i)
	}
	return nil
}

// ClearRow fills one character row with the background color in a single
// window+fill write.
func (s *Screen) ClearRow(row int, bg rgb565.Pixel) error {
	if row < 0 || row >= s.rows {
		return nil
	}
	return s.disp.FillRect(0, s.physY(row*font.Height), s.width, font.Height, bg)
}

// DrawChar draws a single character at (col, row).
func (s *Screen) DrawChar(r rune, col, row int, fg, bg rgb565.Pixel) error {
	if col < 0 || col >= s.cols || row < 0 || row >= s.rows {
		return nil
	}
	x := col * font.Width
	y := s.physY(row * font.Height)
	if err := s.disp.SetWindow(x, y, x+font.Width-1, y+font.Height-1); err != nil {
		return err
	}
	return s.disp.WritePixels(s.glyphs.Bitmap(r, fg, bg))
}

// DrawText draws text starting at (col, row), truncated at the right edge.
//
// Spans up to the batching ceiling are sent as one window write built from
// cached glyph bitmaps; larger spans fall back to per-character writes.
func (s *Screen) DrawText(text string, col, row int, fg, bg rgb565.Pixel) error {
	if row < 0 || row >= s.rows || col >= s.cols {
		return nil
	}
	if col < 0 {
		col = 0
	}
	runes := []rune(text)
	if col+len(runes) > s.cols {
		runes = runes[:s.cols-col]
	}
	if len(runes) == 0 {
		return nil
	}

	if len(runes) <= shortTextMax || len(runes)*font.Width*font.Height > s.maxBatchPixels {
		for i, r := range runes {
			if err := s.DrawChar(r, col+i, row, fg, bg); err != nil {
				return err
			}
		}
		return nil
	}

	x0 := col * font.Width
	y0 := s.physY(row * font.Height)
	x1 := x0 + len(runes)*font.Width - 1
	if err := s.disp.SetWindow(x0, y0, x1, y0+font.Height-1); err != nil {
		return err
	}
	return s.disp.WritePixels(s.buildSpan(runes, fg, bg))
}

// buildSpan assembles the row-major pixel buffer for a run of characters by
// interleaving one pixel row from each cached glyph bitmap at a time.
func (s *Screen) buildSpan(runes []rune, fg, bg rgb565.Pixel) []byte {
	cellStride := font.Width * 2
	rowStride := len(runes) * cellStride
	buf := make([]byte, rowStride*font.Height)
	for i, r := range runes {
		bm := s.glyphs.Bitmap(r, fg, bg)
		for y := 0; y < font.Height; y++ {
			copy(buf[y*rowStride+i*cellStride:], bm[y*cellStride:(y+1)*cellStride])
		}
	}
	return buf
}

// DrawRow draws a full text row: the row is cleared to the background color
// first so no stale pixels remain past the end of text, then text is drawn
// truncated to the screen width. The row is removed from the dirty set on
// completion.
func (s *Screen) DrawRow(text string, row int, fg, bg rgb565.Pixel) error {
	if row < 0 || row >= s.rows {
		return nil
	}
	if err := s.ClearRow(row, bg); err != nil {
		return err
	}
	if err := s.DrawText(text, 0, row, fg, bg); err != nil {
		return err
	}
	delete(s.dirty, row)
	return nil
}

// UpdateFromBuffer redraws screen rows [0, count) from lines[start+i],
// skipping any row that is neither dirty nor affected by a nonzero scroll
// offset. Callers must mark rows dirty to force a redraw.
func (s *Screen) UpdateFromBuffer(lines []string, start, count int, fg, bg rgb565.Pixel) error {
	if start < 0 || count < 0 {
		return errors.New("terminal: negative buffer range")
	}
	if count > s.rows {
		count = s.rows
	}
	for i := 0; i < count; i++ {
		if !s.Dirty(i) && s.offset == 0 {
			continue
		}
		if idx := start + i; idx < len(lines) {
			if err := s.DrawRow(lines[idx], i, fg, bg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clear fills the screen with the background color and resets the scroll
// offset, the dirty set and the glyph cache.
func (s *Screen) Clear(bg rgb565.Pixel) error {
	if err := s.disp.FillScreen(bg); err != nil {
		return err
	}
	if err := s.disp.ResetScroll(); err != nil {
		return err
	}
	s.offset = 0
	s.dirty = map[int]struct{}{}
	s.glyphs.Reset()
	return nil
}
