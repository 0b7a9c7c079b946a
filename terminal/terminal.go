package terminal

import (
	"strings"

	"periph.io/x/devices/v3/ili9488/rgb565"
)

// Opts is the configuration for a Terminal.
type Opts struct {
	// Foreground and Background are the text colors. If they are equal (as
	// in the zero value), white on black is used.
	Foreground rgb565.Pixel
	Background rgb565.Pixel

	// HistoryMargin is the number of completed lines kept beyond the
	// visible window; DefaultHistoryMargin when ≤ 0.
	HistoryMargin int

	// MaxBatchPixels overrides the renderer's batching ceiling when > 0.
	MaxBatchPixels int
}

// Terminal is a line-oriented text console on top of a Screen.
//
// It holds the line history, the current edit line and the cursor, and
// decides per input event between an O(1) hardware-scroll update and a
// dirty-tracked window redraw.
type Terminal struct {
	screen *Screen
	buf    *LineBuffer
	rows   []string // displayed content of each screen row, padded to width
	fg, bg rgb565.Pixel
}

// New creates a Terminal on disp and clears the screen.
//
// opts can be nil to use defaults.
func New(disp Display, opts *Opts) (*Terminal, error) {
	fg, bg := rgb565.White, rgb565.Black
	margin := DefaultHistoryMargin
	var sopts *ScreenOpts
	if opts != nil {
		if opts.Foreground != opts.Background {
			fg, bg = opts.Foreground, opts.Background
		}
		if opts.HistoryMargin > 0 {
			margin = opts.HistoryMargin
		}
		if opts.MaxBatchPixels > 0 {
			sopts = &ScreenOpts{MaxBatchPixels: opts.MaxBatchPixels}
		}
	}

	screen, err := NewScreen(disp, sopts)
	if err != nil {
		return nil, err
	}
	_, rows := screen.Size()

	t := &Terminal{
		screen: screen,
		buf:    NewLineBuffer(rows, margin),
		rows:   make([]string, rows),
		fg:     fg,
		bg:     bg,
	}
	for i := range t.rows {
		t.rows[i] = t.pad("")
	}
	if err := t.screen.Clear(bg); err != nil {
		return nil, err
	}
	return t, nil
}

// Size returns the terminal dimensions in character cells.
func (t *Terminal) Size() (cols, rows int) {
	return t.screen.Size()
}

// Scrolling reports whether the hardware scroll is engaged, which happens
// once more lines have been buffered than fit in the window.
func (t *Terminal) Scrolling() bool {
	_, rows := t.screen.Size()
	return t.buf.LineCount() > rows
}

// ScrollPosition returns the count of buffered lines above the visible
// window.
func (t *Terminal) ScrollPosition() int {
	return t.buf.ScrollPosition()
}

// VisibleLines returns the completed lines inside the visible window, oldest
// first.
func (t *Terminal) VisibleLines() []string {
	return t.buf.VisibleLines()
}

// Row returns the displayed content of one screen row, padded to the screen
// width. Out-of-range rows return the empty string.
func (t *Terminal) Row(row int) string {
	if row < 0 || row >= len(t.rows) {
		return ""
	}
	return t.rows[row]
}

// Cursor returns the cursor position in character cells.
func (t *Terminal) Cursor() (row, col int) {
	cols, _ := t.screen.Size()
	col = len([]rune(t.buf.CurrentLine()))
	if col > cols-1 {
		col = cols - 1
	}
	return t.currentRow(), col
}

// Handle processes one input character: '\n' finalizes the current line,
// '\b' removes its last character, anything else is appended. Input past the
// right edge is truncated silently.
func (t *Terminal) Handle(r rune) error {
	switch r {
	case '\n':
		return t.newline()
	case '\b':
		t.buf.Backspace()
		return t.redrawCurrentLine()
	default:
		t.buf.AddChar(r)
		return t.redrawCurrentLine()
	}
}

// WriteString feeds each rune of s through Handle.
func (t *Terminal) WriteString(s string) error {
	for _, r := range s {
		if err := t.Handle(r); err != nil {
			return err
		}
	}
	return nil
}

// Clear empties the line history, resets the logical and physical scroll
// positions and fills the screen with the background color.
func (t *Terminal) Clear() error {
	t.buf.Clear()
	if err := t.screen.Clear(t.bg); err != nil {
		return err
	}
	for i := range t.rows {
		t.rows[i] = t.pad("")
	}
	return nil
}

// newline finalizes the current line. While more lines are buffered than fit
// on screen, each newline advances the hardware scroll by one character row
// and redraws only the newly exposed bottom row; otherwise the visible
// window is redrawn through the dirty tracker.
func (t *Terminal) newline() error {
	t.buf.NewLine()
	_, rows := t.screen.Size()
	if t.buf.LineCount() > rows {
		t.buf.SetScrollPosition(t.buf.ScrollPosition() + 1)
		vis := t.buf.VisibleLines()
		newest := vis[len(vis)-1]
		bottom := rows - 1

		copy(t.rows, t.rows[1:])
		t.rows[bottom] = t.pad(newest)

		if err := t.screen.ScrollUp(1); err != nil {
			return err
		}
		return t.screen.DrawRow(newest, bottom, t.fg, t.bg)
	}
	return t.redraw()
}

// redraw brings the window in sync with the line buffer, marking only the
// rows whose content actually changed, then redraws the current edit line.
func (t *Terminal) redraw() error {
	vis := t.buf.VisibleLines()
	for i := range t.rows {
		if i >= len(vis) {
			break
		}
		if want := t.pad(vis[i]); want != t.rows[i] {
			t.rows[i] = want
			t.screen.MarkDirty(i)
		}
	}
	if err := t.screen.UpdateFromBuffer(t.rows, 0, len(t.rows), t.fg, t.bg); err != nil {
		return err
	}
	return t.redrawCurrentLine()
}

// redrawCurrentLine redraws the single row holding the current edit line.
func (t *Terminal) redrawCurrentLine() error {
	cur := t.buf.CurrentLine()
	row := t.currentRow()
	t.rows[row] = t.pad(cur)
	return t.screen.DrawRow(cur, row, t.fg, t.bg)
}

// currentRow returns the screen row of the current edit line: directly below
// the last buffered visible line, clamped to the bottom row once the scroll
// is engaged.
func (t *Terminal) currentRow() int {
	_, rows := t.screen.Size()
	row := t.buf.LineCount() - t.buf.ScrollPosition()
	if row > rows-1 {
		row = rows - 1
	}
	return row
}

// pad truncates s to the screen width and pads it with spaces.
func (t *Terminal) pad(s string) string {
	cols, _ := t.screen.Size()
	runes := []rune(s)
	if len(runes) > cols {
		return string(runes[:cols])
	}
	return string(runes) + strings.Repeat(" ", cols-len(runes))
}
