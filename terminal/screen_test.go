package terminal

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"periph.io/x/devices/v3/ili9488/font"
	"periph.io/x/devices/v3/ili9488/rgb565"
)

// fakeDisplay records all drawing calls and mimics the driver's scroll
// register semantics: modulo normalization and rejection of undefined areas.
type fakeDisplay struct {
	rect image.Rectangle
	vsa  int
	scrl int

	windows     []image.Rectangle
	writes      [][]byte
	fills       []image.Rectangle
	screenFills int
	resets      int
}

func newFakeDisplay(w, h int) *fakeDisplay {
	return &fakeDisplay{rect: image.Rect(0, 0, w, h)}
}

func (f *fakeDisplay) Bounds() image.Rectangle { return f.rect }

func (f *fakeDisplay) SetWindow(x0, y0, x1, y1 int) error {
	f.windows = append(f.windows, image.Rect(x0, y0, x1+1, y1+1))
	return nil
}

func (f *fakeDisplay) WritePixels(pixels []byte) error {
	f.writes = append(f.writes, append([]byte(nil), pixels...))
	return nil
}

func (f *fakeDisplay) FillRect(x, y, w, h int, c rgb565.Pixel) error {
	f.fills = append(f.fills, image.Rect(x, y, x+w, y+h))
	return nil
}

func (f *fakeDisplay) FillScreen(c rgb565.Pixel) error {
	f.screenFills++
	return nil
}

func (f *fakeDisplay) DefineScrollArea(topFixed, scrollHeight, bottomFixed int) error {
	if topFixed < 0 || scrollHeight < 0 || bottomFixed < 0 ||
		topFixed+scrollHeight+bottomFixed != f.rect.Dy() {
		return errors.New("fake: invalid scroll area")
	}
	f.vsa = scrollHeight
	return nil
}

func (f *fakeDisplay) SetScrollStart(line int) error {
	if f.vsa <= 0 {
		return errors.New("fake: scroll area not defined")
	}
	line %= f.vsa
	if line < 0 {
		line += f.vsa
	}
	f.scrl = line
	return nil
}

func (f *fakeDisplay) ResetScroll() error {
	f.scrl = 0
	f.resets++
	return nil
}

func (f *fakeDisplay) ScrollStart() int { return f.scrl }

// reset drops the recorded calls but keeps the scroll state.
func (f *fakeDisplay) reset() {
	f.windows = nil
	f.writes = nil
	f.fills = nil
	f.screenFills = 0
	f.resets = 0
}

func testScreen(t *testing.T) (*Screen, *fakeDisplay) {
	t.Helper()
	disp := newFakeDisplay(320, 320)
	s, err := NewScreen(disp, nil)
	if err != nil {
		t.Fatalf("NewScreen() = %v", err)
	}
	disp.reset()
	return s, disp
}

func TestNewScreenGeometry(t *testing.T) {
	disp := newFakeDisplay(320, 320)
	s, err := NewScreen(disp, nil)
	if err != nil {
		t.Fatalf("NewScreen() = %v", err)
	}
	cols, rows := s.Size()
	if cols != 40 || rows != 20 {
		t.Errorf("Size() = (%d, %d), want (40, 20)", cols, rows)
	}
	if disp.vsa != 320 {
		t.Errorf("scroll area height = %d, want 320", disp.vsa)
	}
	if disp.resets != 1 {
		t.Errorf("resets = %d, want 1", disp.resets)
	}
}

func TestNewScreenRejectsBadGeometry(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"smaller than a cell", 4, 4},
		{"height not cell multiple", 320, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewScreen(newFakeDisplay(tt.w, tt.h), nil); err == nil {
				t.Error("expected error but didn't get one")
			}
		})
	}
}

func TestScreenScrollUp(t *testing.T) {
	s, disp := testScreen(t)

	if err := s.ScrollUp(1); err != nil {
		t.Fatalf("ScrollUp() = %v", err)
	}
	if s.ScrollOffset() != font.Height {
		t.Errorf("ScrollOffset() = %d, want %d", s.ScrollOffset(), font.Height)
	}
	if disp.scrl != font.Height {
		t.Errorf("hardware scroll = %d, want %d", disp.scrl, font.Height)
	}
	if !s.Dirty(19) {
		t.Error("bottom row should be dirty after a one-line scroll")
	}
	if s.Dirty(18) {
		t.Error("row 18 should not be dirty after a one-line scroll")
	}
}

func TestScreenScrollOffsetWraps(t *testing.T) {
	s, _ := testScreen(t)
	_, rows := s.Size()

	for i := 0; i < rows; i++ {
		if err := s.ScrollUp(1); err != nil {
			t.Fatalf("ScrollUp() #%d = %v", i, err)
		}
	}
	if s.ScrollOffset() != 0 {
		t.Errorf("ScrollOffset() after %d single-line scrolls = %d, want 0",
			rows, s.ScrollOffset())
	}
}

func TestScreenScrollUpMoreThanWindow(t *testing.T) {
	s, _ := testScreen(t)

	if err := s.ScrollUp(25); err != nil {
		t.Fatalf("ScrollUp() = %v", err)
	}
	if want := 25 * font.Height % 320; s.ScrollOffset() != want {
		t.Errorf("ScrollOffset() = %d, want %d", s.ScrollOffset(), want)
	}
	if s.DirtyCount() != 20 {
		t.Errorf("DirtyCount() = %d, want all 20 rows", s.DirtyCount())
	}
}

func TestScreenClearRowTranslatesOffset(t *testing.T) {
	s, disp := testScreen(t)
	if err := s.ScrollUp(2); err != nil {
		t.Fatalf("ScrollUp() = %v", err)
	}
	disp.reset()

	if err := s.ClearRow(0, rgb565.Black); err != nil {
		t.Fatalf("ClearRow() = %v", err)
	}
	want := image.Rect(0, 2*font.Height, 320, 3*font.Height)
	if len(disp.fills) != 1 || disp.fills[0] != want {
		t.Errorf("fills = %v, want [%v]", disp.fills, want)
	}
}

func TestScreenClearRowWrapsAtBottom(t *testing.T) {
	s, disp := testScreen(t)
	if err := s.ScrollUp(2); err != nil {
		t.Fatalf("ScrollUp() = %v", err)
	}
	disp.reset()

	// Logical row 19 lands past the physical frame and wraps to the top.
	if err := s.ClearRow(19, rgb565.Black); err != nil {
		t.Fatalf("ClearRow() = %v", err)
	}
	want := image.Rect(0, font.Height, 320, 2*font.Height)
	if len(disp.fills) != 1 || disp.fills[0] != want {
		t.Errorf("fills = %v, want [%v]", disp.fills, want)
	}
}

func TestScreenDrawChar(t *testing.T) {
	s, disp := testScreen(t)

	if err := s.DrawChar('A', 1, 2, rgb565.White, rgb565.Black); err != nil {
		t.Fatalf("DrawChar() = %v", err)
	}
	want := image.Rect(font.Width, 2*font.Height, 2*font.Width, 3*font.Height)
	if len(disp.windows) != 1 || disp.windows[0] != want {
		t.Fatalf("windows = %v, want [%v]", disp.windows, want)
	}
	if len(disp.writes) != 1 || len(disp.writes[0]) != font.Width*font.Height*2 {
		t.Errorf("writes = %d entries, want one glyph-sized write", len(disp.writes))
	}
}

func TestScreenDrawTextShortIsPerChar(t *testing.T) {
	s, disp := testScreen(t)

	if err := s.DrawText("abc", 0, 0, rgb565.White, rgb565.Black); err != nil {
		t.Fatalf("DrawText() = %v", err)
	}
	if len(disp.writes) != 3 {
		t.Errorf("writes = %d, want 3 per-character writes", len(disp.writes))
	}
}

func TestScreenDrawTextBatched(t *testing.T) {
	disp := newFakeDisplay(320, 320)
	s, err := NewScreen(disp, &ScreenOpts{MaxBatchPixels: 8192})
	if err != nil {
		t.Fatalf("NewScreen() = %v", err)
	}
	disp.reset()

	if err := s.DrawText("ABCDE", 0, 0, rgb565.White, rgb565.Black); err != nil {
		t.Fatalf("DrawText() = %v", err)
	}
	if len(disp.writes) != 1 {
		t.Fatalf("writes = %d, want one batched write", len(disp.writes))
	}
	if want := 5 * font.Width * font.Height * 2; len(disp.writes[0]) != want {
		t.Errorf("batched write = %d bytes, want %d", len(disp.writes[0]), want)
	}

	// The span must be row-interleaved: the first pixel row holds row 0 of
	// every glyph in order, not whole glyphs back to back.
	ref := NewGlyphCache()
	a := ref.Bitmap('A', rgb565.White, rgb565.Black)
	b := ref.Bitmap('B', rgb565.White, rgb565.Black)
	rowBytes := font.Width * 2
	if !bytes.Equal(disp.writes[0][:rowBytes], a[:rowBytes]) {
		t.Error("span row 0 does not start with row 0 of the first glyph")
	}
	if !bytes.Equal(disp.writes[0][rowBytes:2*rowBytes], b[:rowBytes]) {
		t.Error("span row 0 does not continue with row 0 of the second glyph")
	}
}

func TestScreenDrawTextOverCeilingFallsBack(t *testing.T) {
	s, disp := testScreen(t)

	// Ten characters exceed the default ceiling, so each is written alone.
	if err := s.DrawText("0123456789", 0, 0, rgb565.White, rgb565.Black); err != nil {
		t.Fatalf("DrawText() = %v", err)
	}
	if len(disp.writes) != 10 {
		t.Errorf("writes = %d, want 10 per-character writes", len(disp.writes))
	}
}

func TestScreenDrawTextTruncates(t *testing.T) {
	s, disp := testScreen(t)
	cols, _ := s.Size()

	long := make([]rune, cols+10)
	for i := range long {
		long[i] = 'x'
	}
	if err := s.DrawText(string(long), 0, 0, rgb565.White, rgb565.Black); err != nil {
		t.Fatalf("DrawText() = %v", err)
	}
	if len(disp.writes) != cols {
		t.Errorf("writes = %d, want truncation to %d columns", len(disp.writes), cols)
	}
}

func TestScreenDrawRowClearsDirty(t *testing.T) {
	s, disp := testScreen(t)
	s.MarkDirty(3)

	if err := s.DrawRow("hi", 3, rgb565.White, rgb565.Black); err != nil {
		t.Fatalf("DrawRow() = %v", err)
	}
	if s.Dirty(3) {
		t.Error("row should not be dirty after DrawRow")
	}
	// The row is cleared before text lands so no stale pixels survive.
	if len(disp.fills) != 1 {
		t.Errorf("fills = %d, want 1 row clear", len(disp.fills))
	}
}

func TestScreenMarkDirtyIgnoresOutOfRange(t *testing.T) {
	s, _ := testScreen(t)
	s.MarkDirty(-1, 20, 100)
	if s.DirtyCount() != 0 {
		t.Errorf("DirtyCount() = %d, want 0", s.DirtyCount())
	}
}

func TestScreenUpdateFromBufferSkipsCleanRows(t *testing.T) {
	s, disp := testScreen(t)
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "text"
	}

	if err := s.UpdateFromBuffer(lines, 0, 20, rgb565.White, rgb565.Black); err != nil {
		t.Fatalf("UpdateFromBuffer() = %v", err)
	}
	if len(disp.fills)+len(disp.writes) != 0 {
		t.Error("clean rows at zero offset should not be redrawn")
	}

	s.MarkDirty(2)
	if err := s.UpdateFromBuffer(lines, 0, 20, rgb565.White, rgb565.Black); err != nil {
		t.Fatalf("UpdateFromBuffer() = %v", err)
	}
	if len(disp.fills) != 1 {
		t.Errorf("fills = %d, want only the dirty row cleared", len(disp.fills))
	}
	if disp.fills[0].Min.Y != 2*font.Height {
		t.Errorf("redrawn row at y=%d, want y=%d", disp.fills[0].Min.Y, 2*font.Height)
	}
}

func TestScreenUpdateFromBufferRedrawsAllWhenScrolled(t *testing.T) {
	s, disp := testScreen(t)
	if err := s.ScrollUp(1); err != nil {
		t.Fatalf("ScrollUp() = %v", err)
	}
	disp.reset()

	lines := make([]string, 20)
	if err := s.UpdateFromBuffer(lines, 0, 20, rgb565.White, rgb565.Black); err != nil {
		t.Fatalf("UpdateFromBuffer() = %v", err)
	}
	if len(disp.fills) != 20 {
		t.Errorf("fills = %d, want all 20 rows redrawn at nonzero offset", len(disp.fills))
	}
}

func TestScreenUpdateFromBufferRejectsNegativeRange(t *testing.T) {
	s, _ := testScreen(t)
	if err := s.UpdateFromBuffer(nil, -1, 5, rgb565.White, rgb565.Black); err == nil {
		t.Error("expected error for negative start")
	}
}

func TestScreenClear(t *testing.T) {
	s, disp := testScreen(t)
	if err := s.ScrollUp(3); err != nil {
		t.Fatalf("ScrollUp() = %v", err)
	}
	s.glyphs.Bitmap('A', rgb565.White, rgb565.Black)

	if err := s.Clear(rgb565.Black); err != nil {
		t.Fatalf("Clear() = %v", err)
	}
	if disp.screenFills != 1 {
		t.Errorf("screenFills = %d, want 1", disp.screenFills)
	}
	if s.ScrollOffset() != 0 || disp.scrl != 0 {
		t.Error("scroll offset should be reset")
	}
	if s.DirtyCount() != 0 {
		t.Error("dirty set should be drained")
	}
	if s.glyphs.Len() != 0 {
		t.Error("glyph cache should be discarded")
	}
}
