// Package ili9488 controls an ILI9488 TFT display via SPI.
//
// The ILI9488 is a 320x480 TFT controller. This driver configures it for
// 16-bit RGB565 color and exposes the controller's vertical hardware-scroll
// registers, which let text renderers shift displayed content by
// reprogramming a single register instead of retransmitting pixel rows.
//
// See the examples and the terminal subpackage for how to use this package.
package ili9488

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ili9488/rgb565"
)

// ILI9488 command opcodes used by this driver.
const (
	cmdSleepIn      = 0x10 // SLPIN
	cmdSleepOut     = 0x11 // SLPOUT, requires 120ms settle
	cmdInvertOff    = 0x20 // INVOFF
	cmdInvertOn     = 0x21 // INVON
	cmdDisplayOff   = 0x28 // DISPOFF
	cmdDisplayOn    = 0x29 // DISPON, requires 20ms settle
	cmdColumnSet    = 0x2A // CASET
	cmdRowSet       = 0x2B // RASET
	cmdMemoryWrite  = 0x2C // RAMWR
	cmdTearingOff   = 0x35 // TEOFF
	cmdVScrollDef   = 0x33 // VSCRDEF
	cmdMemoryAccess = 0x36 // MADCTL
	cmdVScrollStart = 0x37 // VSCSAD
	cmdPixelFormat  = 0x3A // COLMOD
)

// ErrInvalidScrollArea is returned by DefineScrollArea when the fixed and
// scrolling areas don't add up to the display height, and by SetScrollStart
// when no scroll area has been defined yet. The scroll registers are left
// untouched.
var ErrInvalidScrollArea = errors.New("ili9488: invalid scroll area")

// Opts is the configuration for the ILI9488 display.
type Opts struct {
	// Display dimensions in pixels
	W int // Width (default: 320, must be ≤320)
	H int // Height (default: 480, must be ≤480)

	// Optional hardware reset pin
	RST gpio.PinIO // Reset pin (optional, nil if not used)
	// Optional backlight control pin (active high)
	BL gpio.PinIO // Backlight pin (optional, nil if not used)
}

// Dev is the device handle for the ILI9488 display.
type Dev struct {
	// Communication
	c   conn.Conn   // SPI connection
	dc  gpio.PinOut // Data/Command pin
	rst gpio.PinIO  // Reset pin (optional)
	bl  gpio.PinIO  // Backlight pin (optional)

	// Display geometry
	rect image.Rectangle

	// Scroll controller state
	vsaHeight   int // Height of the vertical scroll area, modulus for offsets
	scrollStart int // Current scroll start line, always in [0, vsaHeight)

	// Pixel buffers for differential drawing
	buffer []byte        // Current frame
	next   *rgb565.Image // For lazy double buffering
	last   *rgb565.Image // Last displayed frame for differential updates

	// State
	halted bool
}

// NewSPI creates a new ILI9488 device connected via SPI.
//
// The SPI port is configured for 20MHz, Mode0 (CPOL=0, CPHA=0), 8-bit
// transfers. The dc (Data/Command) GPIO pin must be provided and configured
// as an output.
//
// opts can be nil to use defaults (320x480 display, no reset or backlight
// pin).
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{W: 320, H: 480}
	}

	if opts.W <= 0 || opts.W > 320 {
		return nil, errors.New("ili9488: width must be between 1 and 320")
	}
	if opts.H <= 0 || opts.H > 480 {
		return nil, errors.New("ili9488: height must be between 1 and 480")
	}

	// ILI9488 supports up to 20MHz in SPI mode.
	c, err := p.Connect(20*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("ili9488: SPI connect: %w", err)
	}

	d := &Dev{
		c:    c,
		dc:   dc,
		rst:  opts.RST,
		bl:   opts.BL,
		rect: image.Rect(0, 0, opts.W, opts.H),
	}

	if err := d.init(); err != nil {
		return nil, err
	}

	return d, nil
}

// init performs the hardware reset and sends the initialization sequence to
// the display.
func (d *Dev) init() error {
	// Hardware reset sequence (if RST pin is provided)
	if d.rst != nil {
		if err := d.rst.Out(gpio.Low); err != nil {
			return fmt.Errorf("ili9488: failed to pull RST low: %w", err)
		}
		time.Sleep(50 * time.Millisecond)

		if err := d.rst.Out(gpio.High); err != nil {
			return fmt.Errorf("ili9488: failed to pull RST high: %w", err)
		}
		time.Sleep(150 * time.Millisecond)
	}

	type cmd struct {
		op   byte
		data []byte
	}
	cmds := []cmd{
		{cmdMemoryAccess, []byte{0x40}}, // Portrait (MY=0,MX=1,MV=0), RGB order
		{cmdPixelFormat, []byte{0x55}},  // 16 bits/pixel (RGB565)
		{0xB0, []byte{0x80}},            // Interface mode control
		{0xB4, []byte{0x00}},            // Display inversion control
		{0xB6, []byte{0x80, 0x02, 0x3B}}, // Display function control
		{0xB7, []byte{0xC6}},            // Entry mode set
		{0xC0, []byte{0x10, 0x10}},      // Power control 1
		{0xC1, []byte{0x41}},            // Power control 2
		{0xC5, []byte{0x00, 0x18}},      // VCOM control 1
		// Positive and negative gamma correction
		{0xE0, []byte{0x0F, 0x1F, 0x1C, 0x0C, 0x0F, 0x08, 0x48, 0x98, 0x37, 0x0A, 0x13, 0x04, 0x11, 0x0D, 0x00}},
		{0xE1, []byte{0x0F, 0x32, 0x2E, 0x0B, 0x0D, 0x05, 0x47, 0x75, 0x37, 0x06, 0x10, 0x03, 0x24, 0x20, 0x00}},
		{cmdTearingOff, []byte{0x00}},
	}
	for _, c := range cmds {
		if err := d.writeCommand(c.op, c.data...); err != nil {
			return err
		}
	}

	// Exit sleep mode. The controller mandates a settle delay before the
	// next command.
	if err := d.writeCommand(cmdSleepOut); err != nil {
		return err
	}
	time.Sleep(120 * time.Millisecond)

	if err := d.writeCommand(cmdDisplayOn); err != nil {
		return err
	}
	time.Sleep(20 * time.Millisecond)

	return d.Backlight(true)
}

// fault marks the device unusable and passes the transport error through.
// Any bus I/O failure is fatal; the device must be re-initialized with
// NewSPI before further use.
func (d *Dev) fault(err error) error {
	d.halted = true
	return err
}

// writeCommand sends a command byte followed by optional parameter bytes.
func (d *Dev) writeCommand(op byte, data ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return d.fault(fmt.Errorf("ili9488: DC pin: %w", err))
	}
	if err := d.c.Tx([]byte{op}, nil); err != nil {
		return d.fault(fmt.Errorf("ili9488: command 0x%02X: %w", op, err))
	}
	if len(data) == 0 {
		return nil
	}
	return d.writeData(data)
}

// writeData sends a slice of data bytes.
func (d *Dev) writeData(data []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return d.fault(fmt.Errorf("ili9488: DC pin: %w", err))
	}
	if err := d.c.Tx(data, nil); err != nil {
		return d.fault(fmt.Errorf("ili9488: data write: %w", err))
	}
	return nil
}

// clamp limits v to [0, max].
func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// SetWindow programs the rectangular pixel write window. The next WritePixels
// call targets exactly this rectangle, row-major.
//
// All four coordinates are clamped into the frame. If after clamping the end
// coordinate is smaller than the start coordinate, the window collapses to a
// single column (or row) at the start coordinate.
func (d *Dev) SetWindow(x0, y0, x1, y1 int) error {
	if d.halted {
		return errors.New("ili9488: halted")
	}
	x0 = clamp(x0, d.rect.Dx()-1)
	x1 = clamp(x1, d.rect.Dx()-1)
	y0 = clamp(y0, d.rect.Dy()-1)
	y1 = clamp(y1, d.rect.Dy()-1)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}

	var buf [4]byte
	binary.BigEndian.PutUint16(buf[0:], uint16(x0))
	binary.BigEndian.PutUint16(buf[2:], uint16(x1))
	if err := d.writeCommand(cmdColumnSet, buf[:]...); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(buf[0:], uint16(y0))
	binary.BigEndian.PutUint16(buf[2:], uint16(y1))
	return d.writeCommand(cmdRowSet, buf[:]...)
}

// WritePixels streams big-endian RGB565 pixel data into the window set by the
// last SetWindow call. The caller must supply a byte count matching the
// active window's pixel count; no chunking is performed.
func (d *Dev) WritePixels(pixels []byte) error {
	if d.halted {
		return errors.New("ili9488: halted")
	}
	if len(pixels)%2 != 0 {
		return errors.New("ili9488: pixel data must be an even number of bytes")
	}
	if err := d.writeCommand(cmdMemoryWrite); err != nil {
		return err
	}
	return d.writeData(pixels)
}

// fillStagingPixels is the size of the staging buffer used by FillRect, in
// pixels.
const fillStagingPixels = 128

// FillRect fills a rectangular area with a single color. The rectangle is
// intersected with the frame; areas fully outside it are ignored.
func (d *Dev) FillRect(x, y, w, h int, c rgb565.Pixel) error {
	if d.halted {
		return errors.New("ili9488: halted")
	}
	r := image.Rect(x, y, x+w, y+h).Intersect(d.rect)
	if r.Empty() {
		return nil
	}
	if err := d.SetWindow(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1); err != nil {
		return err
	}
	if err := d.writeCommand(cmdMemoryWrite); err != nil {
		return err
	}

	staging := make([]byte, fillStagingPixels*2)
	for i := 0; i < len(staging); i += 2 {
		c.PutBytes(staging[i:])
	}
	remaining := r.Dx() * r.Dy() * 2
	for remaining > 0 {
		n := remaining
		if n > len(staging) {
			n = len(staging)
		}
		if err := d.writeData(staging[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

// FillScreen fills the entire screen with a single color.
func (d *Dev) FillScreen(c rgb565.Pixel) error {
	return d.FillRect(0, 0, d.rect.Dx(), d.rect.Dy(), c)
}

// DefineScrollArea defines the vertical scrolling area of the display.
//
// topFixed and bottomFixed are the number of rows at the top and bottom of
// the frame that never scroll; scrollHeight rows in between are eligible for
// offset-based scrolling. The three values must sum to the display height or
// ErrInvalidScrollArea is returned before any bus write.
//
// scrollHeight becomes the modulus for all subsequent SetScrollStart calls.
func (d *Dev) DefineScrollArea(topFixed, scrollHeight, bottomFixed int) error {
	if d.halted {
		return errors.New("ili9488: halted")
	}
	if topFixed < 0 || scrollHeight < 0 || bottomFixed < 0 ||
		topFixed+scrollHeight+bottomFixed != d.rect.Dy() {
		return fmt.Errorf("%w: %d+%d+%d != %d", ErrInvalidScrollArea,
			topFixed, scrollHeight, bottomFixed, d.rect.Dy())
	}
	var buf [6]byte
	binary.BigEndian.PutUint16(buf[0:], uint16(topFixed))
	binary.BigEndian.PutUint16(buf[2:], uint16(scrollHeight))
	binary.BigEndian.PutUint16(buf[4:], uint16(bottomFixed))
	if err := d.writeCommand(cmdVScrollDef, buf[:]...); err != nil {
		return err
	}
	d.vsaHeight = scrollHeight
	return nil
}

// SetScrollStart sets the physical row the controller treats as the first
// visible row of the scroll region.
//
// line is normalized into [0, scrollHeight) by wrapping, never clamping, so
// callers can scroll continuously without bounds checking. The normalized
// value is readable via ScrollStart.
func (d *Dev) SetScrollStart(line int) error {
	if d.halted {
		return errors.New("ili9488: halted")
	}
	if d.vsaHeight <= 0 {
		return fmt.Errorf("%w: scroll area not defined", ErrInvalidScrollArea)
	}
	line %= d.vsaHeight
	if line < 0 {
		line += d.vsaHeight
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(line))
	if err := d.writeCommand(cmdVScrollStart, buf[:]...); err != nil {
		return err
	}
	d.scrollStart = line
	return nil
}

// ResetScroll unconditionally sets the scroll start back to row 0. It works
// even before a scroll area has been defined.
func (d *Dev) ResetScroll() error {
	if d.halted {
		return errors.New("ili9488: halted")
	}
	if err := d.writeCommand(cmdVScrollStart, 0x00, 0x00); err != nil {
		return err
	}
	d.scrollStart = 0
	return nil
}

// ScrollStart returns the current scroll start line, in [0, scrollHeight).
func (d *Dev) ScrollStart() int {
	return d.scrollStart
}

// ScrollHeight returns the height of the scroll area defined by the last
// DefineScrollArea call, or 0 if none was defined.
func (d *Dev) ScrollHeight() int {
	return d.vsaHeight
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return rgb565.Model
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Write writes a raw full frame to the display in big-endian RGB565 format.
// The data must be exactly d.Bounds().Dx() * d.Bounds().Dy() * 2 bytes.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.halted {
		return 0, errors.New("ili9488: halted")
	}
	if len(pixels) != d.rect.Dx()*d.rect.Dy()*2 {
		return 0, errors.New("ili9488: invalid buffer size")
	}
	if err := d.writeFullFrame(pixels); err != nil {
		return 0, err
	}
	if d.buffer == nil {
		d.buffer = make([]byte, len(pixels))
	}
	copy(d.buffer, pixels)
	return len(pixels), nil
}

// Draw draws an image onto the display with differential update
// optimization. The dst rectangle specifies the destination region on the
// display; sp is the source point within src.
//
// Draw assumes the scroll start is 0; it does not translate coordinates
// through the scroll offset. Use the terminal subpackage for scroll-aware
// rendering.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return errors.New("ili9488: halted")
	}

	dst = dst.Intersect(d.rect)
	if dst.Empty() {
		return nil
	}

	// Fast path: full-frame native image.
	if srcImg, ok := src.(*rgb565.Image); ok {
		zeroPoint := image.Point{}
		if dst == d.rect && sp == zeroPoint && srcImg.Rect == d.rect {
			return d.writeFullFrame(srcImg.Pix)
		}
	}

	// Slow path: render to buffer with differential updates.
	if d.next == nil {
		d.next = rgb565.NewImage(d.rect)
		d.last = rgb565.NewImage(d.rect)
		if d.buffer == nil {
			d.buffer = make([]byte, len(d.next.Pix))
		}
		copy(d.last.Pix, d.buffer)
		copy(d.next.Pix, d.buffer)
	}

	draw.Draw(d.next, dst, src, sp, draw.Src)

	minX, maxX, minY, maxY := d.calculateDiff()
	if minX > maxX {
		// No changes
		return nil
	}

	changed := d.extractRegion(minX, maxX, minY, maxY)
	if err := d.writeRect(minX, minY, maxX-minX+1, maxY-minY+1, changed); err != nil {
		return err
	}

	copy(d.buffer, d.next.Pix)
	copy(d.last.Pix, d.next.Pix)
	return nil
}

// calculateDiff compares the last displayed and pending frames and returns
// the minimal changed region as (minX, maxX, minY, maxY) in pixels, or
// minX > maxX if nothing changed.
func (d *Dev) calculateDiff() (minX, maxX, minY, maxY int) {
	width := d.rect.Dx()
	height := d.rect.Dy()
	stride := width * 2

	minX = width
	maxX = -1
	minY = height
	maxY = -1

	for y := 0; y < height; y++ {
		rowStart := y * stride
		rowEnd := rowStart + stride
		if bytes.Equal(d.last.Pix[rowStart:rowEnd], d.next.Pix[rowStart:rowEnd]) {
			continue
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
		for x := 0; x < width; x++ {
			o := rowStart + x*2
			if d.last.Pix[o] != d.next.Pix[o] || d.last.Pix[o+1] != d.next.Pix[o+1] {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
			}
		}
	}
	return
}

// extractRegion extracts the pending pixel data for a rectangular region.
func (d *Dev) extractRegion(minX, maxX, minY, maxY int) []byte {
	width := maxX - minX + 1
	stride := d.rect.Dx() * 2
	byteWidth := width * 2

	result := make([]byte, byteWidth*(maxY-minY+1))
	dstIdx := 0
	for y := minY; y <= maxY; y++ {
		srcStart := y*stride + minX*2
		copy(result[dstIdx:], d.next.Pix[srcStart:srcStart+byteWidth])
		dstIdx += byteWidth
	}
	return result
}

// writeRect writes pixel data to a rectangular region of the display.
func (d *Dev) writeRect(x, y, w, h int, pixels []byte) error {
	if err := d.SetWindow(x, y, x+w-1, y+h-1); err != nil {
		return err
	}
	return d.WritePixels(pixels)
}

// writeFullFrame writes an entire frame buffer to the display.
func (d *Dev) writeFullFrame(pixels []byte) error {
	return d.writeRect(0, 0, d.rect.Dx(), d.rect.Dy(), pixels)
}

// Invert inverts the display colors.
func (d *Dev) Invert(invert bool) error {
	if d.halted {
		return errors.New("ili9488: halted")
	}
	op := byte(cmdInvertOff)
	if invert {
		op = cmdInvertOn
	}
	return d.writeCommand(op)
}

// Backlight switches the backlight pin, if one was configured.
func (d *Dev) Backlight(on bool) error {
	if d.bl == nil {
		return nil
	}
	l := gpio.Low
	if on {
		l = gpio.High
	}
	if err := d.bl.Out(l); err != nil {
		return fmt.Errorf("ili9488: backlight pin: %w", err)
	}
	return nil
}

// Sleep blanks the display, enters sleep mode and switches the backlight
// off. Display RAM is retained; use Wake to resume.
func (d *Dev) Sleep() error {
	if d.halted {
		return errors.New("ili9488: halted")
	}
	if err := d.writeCommand(cmdDisplayOff); err != nil {
		return err
	}
	if err := d.writeCommand(cmdSleepIn); err != nil {
		return err
	}
	return d.Backlight(false)
}

// Wake exits sleep mode and turns the display back on, honoring the settle
// delays the controller mandates.
func (d *Dev) Wake() error {
	if d.halted {
		return errors.New("ili9488: halted")
	}
	if err := d.writeCommand(cmdSleepOut); err != nil {
		return err
	}
	time.Sleep(120 * time.Millisecond)
	if err := d.writeCommand(cmdDisplayOn); err != nil {
		return err
	}
	time.Sleep(20 * time.Millisecond)
	return d.Backlight(true)
}

// Halt powers off the display.
// After calling Halt, the display will not respond to further commands until
// the device is re-initialized.
func (d *Dev) Halt() error {
	if err := d.writeCommand(cmdDisplayOff); err != nil {
		return err
	}
	d.halted = true
	return d.Backlight(false)
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("ili9488.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}
