package keyboard

import (
	"testing"

	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/spi/spitest"
)

func playbackKeyboard(t *testing.T, responses ...byte) (*Dev, *spitest.Playback) {
	t.Helper()
	ops := make([]conntest.IO, len(responses))
	for i, r := range responses {
		ops[i] = conntest.IO{W: []byte{0x00}, R: []byte{r}}
	}
	port := &spitest.Playback{
		Playback: conntest.Playback{Ops: ops, DontPanic: true},
	}
	d, err := New(port)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return d, port
}

func TestReadKey(t *testing.T) {
	d, port := playbackKeyboard(t, 'a')

	key, ok, err := d.ReadKey()
	if err != nil {
		t.Fatalf("ReadKey() = %v", err)
	}
	if !ok || key != 'a' {
		t.Errorf("ReadKey() = (%#02X, %t), want ('a', true)", key, ok)
	}
	if err := port.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestReadKeyIdle(t *testing.T) {
	// Both idle markers report no key pending.
	for _, idle := range []byte{0x00, 0xFF} {
		d, port := playbackKeyboard(t, idle)

		key, ok, err := d.ReadKey()
		if err != nil {
			t.Fatalf("ReadKey() = %v", err)
		}
		if ok || key != 0 {
			t.Errorf("ReadKey() with idle %#02X = (%#02X, %t), want (0, false)", idle, key, ok)
		}
		if err := port.Close(); err != nil {
			t.Errorf("Close() = %v", err)
		}
	}
}

func TestPending(t *testing.T) {
	d, port := playbackKeyboard(t, KeyEnter)

	// The first call polls the controller; the second is answered from the
	// local queue without touching the bus.
	for i := 0; i < 2; i++ {
		ok, err := d.Pending()
		if err != nil {
			t.Fatalf("Pending() #%d = %v", i, err)
		}
		if !ok {
			t.Errorf("Pending() #%d = false, want true", i)
		}
	}

	key, ok, err := d.ReadKey()
	if err != nil {
		t.Fatalf("ReadKey() = %v", err)
	}
	if !ok || key != KeyEnter {
		t.Errorf("ReadKey() = (%#02X, %t), want (KeyEnter, true)", key, ok)
	}
	if err := port.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestReadKeyError(t *testing.T) {
	// An exhausted playback port fails the poll transaction.
	d, _ := playbackKeyboard(t)
	if _, _, err := d.ReadKey(); err == nil {
		t.Error("ReadKey() should surface transport errors")
	}
}

func TestString(t *testing.T) {
	d, _ := playbackKeyboard(t)
	if got := d.String(); got != "keyboard.Dev" {
		t.Errorf("String() = %q, want %q", got, "keyboard.Dev")
	}
}
