package terminal

// DefaultHistoryMargin is the number of completed lines kept beyond the
// visible window before the oldest are evicted.
const DefaultHistoryMargin = 10

// LineBuffer holds the completed text lines, the line currently being
// edited, and the logical scroll position: the count of buffered lines above
// the visible window.
//
// The history is a bounded FIFO; once it holds visible+margin lines, every
// finalized line evicts the oldest one.
type LineBuffer struct {
	lines   []string
	max     int
	visible int
	current []rune
	scroll  int
}

// NewLineBuffer creates a LineBuffer for a window of visible lines, keeping
// margin extra lines of history. A margin < 0 selects DefaultHistoryMargin.
func NewLineBuffer(visible, margin int) *LineBuffer {
	if visible < 1 {
		visible = 1
	}
	if margin < 0 {
		margin = DefaultHistoryMargin
	}
	return &LineBuffer{
		max:     visible + margin,
		visible: visible,
	}
}

// AddChar appends a character to the current line.
func (b *LineBuffer) AddChar(r rune) {
	b.current = append(b.current, r)
}

// Backspace removes the last character of the current line, if any.
func (b *LineBuffer) Backspace() {
	if len(b.current) > 0 {
		b.current = b.current[:len(b.current)-1]
	}
}

// NewLine finalizes the current line into the history, evicting the oldest
// line if the history is full, and starts a fresh current line.
func (b *LineBuffer) NewLine() {
	b.lines = append(b.lines, string(b.current))
	b.current = b.current[:0]
	if len(b.lines) > b.max {
		n := copy(b.lines, b.lines[len(b.lines)-b.max:])
		b.lines = b.lines[:n]
	}
	// Eviction shifts line indices; keep the scroll position pointing at a
	// valid window.
	b.SetScrollPosition(b.scroll)
}

// Clear discards the history, the current line and the scroll position.
func (b *LineBuffer) Clear() {
	b.lines = b.lines[:0]
	b.current = b.current[:0]
	b.scroll = 0
}

// LineCount returns the number of completed lines in the history.
func (b *LineBuffer) LineCount() int {
	return len(b.lines)
}

// CurrentLine returns the line currently being edited.
func (b *LineBuffer) CurrentLine() string {
	return string(b.current)
}

// ScrollPosition returns the logical scroll position.
func (b *LineBuffer) ScrollPosition() int {
	return b.scroll
}

// SetScrollPosition sets the logical scroll position, clamped so the visible
// window never extends past the buffered lines.
func (b *LineBuffer) SetScrollPosition(n int) {
	max := len(b.lines) - b.visible
	if max < 0 {
		max = 0
	}
	if n > max {
		n = max
	}
	if n < 0 {
		n = 0
	}
	b.scroll = n
}

// VisibleLines returns the completed lines inside the visible window, oldest
// first. Fewer than the window height may be returned while the history is
// still short.
func (b *LineBuffer) VisibleLines() []string {
	end := b.scroll + b.visible
	if end > len(b.lines) {
		end = len(b.lines)
	}
	out := make([]string, end-b.scroll)
	copy(out, b.lines[b.scroll:end])
	return out
}
