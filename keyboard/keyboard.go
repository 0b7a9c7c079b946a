// Package keyboard polls the STM32-based keyboard controller found on
// PicoCalc-style handhelds via SPI.
//
// The controller answers each polled byte with either a key code or an idle
// marker (0x00 or 0xFF). Scan-code-to-character translation happens on the
// controller; this package only surfaces the key codes it reports.
package keyboard

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Key codes reported by the controller.
const (
	KeyBackspace = 0x08
	KeyTab       = 0x09
	KeyEnter     = 0x0D
	KeyEscape    = 0x1B
)

// Dev is the device handle for the keyboard controller.
type Dev struct {
	c       conn.Conn
	pending []byte
}

// New creates a keyboard device connected via SPI.
//
// The SPI port is configured for 1MHz, Mode0, 8-bit transfers.
func New(p spi.Port) (*Dev, error) {
	c, err := p.Connect(1*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("keyboard: SPI connect: %w", err)
	}
	return &Dev{c: c}, nil
}

// poll performs one SPI transaction and queues the returned byte if it is a
// key code.
func (d *Dev) poll() error {
	var r [1]byte
	if err := d.c.Tx([]byte{0x00}, r[:]); err != nil {
		return fmt.Errorf("keyboard: poll: %w", err)
	}
	if r[0] != 0x00 && r[0] != 0xFF {
		d.pending = append(d.pending, r[0])
	}
	return nil
}

// Pending reports whether a key code is waiting to be read, polling the
// controller once if the local queue is empty.
func (d *Dev) Pending() (bool, error) {
	if len(d.pending) > 0 {
		return true, nil
	}
	if err := d.poll(); err != nil {
		return false, err
	}
	return len(d.pending) > 0, nil
}

// ReadKey returns the next key code. ok is false when no key is pending.
func (d *Dev) ReadKey() (key byte, ok bool, err error) {
	if len(d.pending) == 0 {
		if err := d.poll(); err != nil {
			return 0, false, err
		}
	}
	if len(d.pending) == 0 {
		return 0, false, nil
	}
	key = d.pending[0]
	d.pending = d.pending[1:]
	return key, true, nil
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return "keyboard.Dev"
}
