// Package terminal renders scrolling monospace text onto an ILI9488 display
// using the controller's vertical hardware-scroll registers.
//
// Retransmitting a full 320x320 RGB565 frame over SPI costs 200KB per
// update. This package avoids that for the common case: once the window is
// full, each new line of text reprograms the scroll-start register and
// redraws a single character row, roughly 10KB.
//
// # Layers
//
// Screen draws text rows onto a Display (normally *ili9488.Dev). It owns the
// glyph cache, the physical scroll offset and the dirty-row set. All writes
// are translated through the scroll offset, wrapping modulo the scroll
// height.
//
// Terminal sits on top of Screen: it buffers completed lines in a bounded
// FIFO, tracks the current edit line and cursor, and decides per input event
// whether a hardware scroll or a window redraw is needed.
//
// # Usage
//
//	dev, err := ili9488.NewSPI(port, dcPin, &ili9488.Opts{W: 320, H: 320})
//	if err != nil {
//		log.Fatal(err)
//	}
//	term, err := terminal.New(dev, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	term.WriteString("hello\n")
//
// # Concurrency
//
// Everything in this package is synchronous and single-threaded.
// The SPI bus is an exclusively owned resource; the calling control loop is
// responsible for serializing input polling and drawing. No internal locking
// is performed.
package terminal
