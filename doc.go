// Package ili9488 controls an ILI9488 TFT display via SPI.
//
// The ILI9488 is a 320x480 TFT controller; this driver runs it in 16-bit
// RGB565 mode and is written for the square 320x320 panels used by
// PicoCalc-style handhelds, but any geometry up to 320x480 works.
//
// # Hardware Connection
//
// Connect the display via SPI:
//
//	Display Pin → System Pin
//	GND         → GND
//	VCC         → 3.3V
//	SCL/CLK     → SPI Clock (SCLK)
//	SDA/MOSI    → SPI Data (MOSI)
//	DC          → GPIO (any available pin)
//	CS          → SPI Chip Select
//	RST         → Optional: GPIO for hardware reset
//	BL          → Optional: GPIO for backlight control
//
// # Basic Usage
//
//	package main
//
//	import (
//		"image"
//
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/conn/v3/spi/spireg"
//		"periph.io/x/devices/v3/ili9488"
//		"periph.io/x/devices/v3/ili9488/rgb565"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		host.Init()
//
//		spiBus, _ := spireg.Open("")
//		dcPin := gpioreg.ByName("GPIO14")
//
//		dev, _ := ili9488.NewSPI(spiBus, dcPin, &ili9488.Opts{W: 320, H: 320})
//		defer dev.Halt()
//
//		// Draw an image with differential updates.
//		img := rgb565.NewImage(dev.Bounds())
//		for x := 0; x < 320; x++ {
//			img.SetPixel(x, 160, rgb565.Cyan)
//		}
//		dev.Draw(dev.Bounds(), img, image.Point{})
//	}
//
// # Drawing Modes
//
// Write sends a raw full frame. Draw renders through a lazily allocated
// double buffer and only transmits the minimal bounding rectangle of changed
// pixels. SetWindow plus WritePixels gives direct control over a rectangular
// region.
//
// # Hardware Scrolling
//
// The controller's vertical scroll registers redefine which physical
// framebuffer row is displayed first, so content can be shifted without
// retransmitting pixel data:
//
//	dev.DefineScrollArea(0, 320, 0) // whole frame scrolls
//	dev.SetScrollStart(16)          // shift display up one text row
//	dev.ResetScroll()
//
// SetScrollStart wraps its argument modulo the scroll height, so callers can
// scroll continuously without bounds checking. The terminal subpackage
// builds a scrolling text console on top of these registers.
//
// # Error Handling
//
// Malformed scroll-area parameters are rejected with ErrInvalidScrollArea
// before any bus write. Window coordinates outside the frame are clamped
// rather than rejected, a deliberate leniency for opportunistically computed
// windows. Any bus I/O failure is fatal: the device reports itself halted
// until re-initialized with NewSPI.
//
// # Datasheet
//
// https://www.hpinfotech.ro/ILI9488.pdf
package ili9488
