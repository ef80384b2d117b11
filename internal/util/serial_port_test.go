package util

import (
	"errors"
	"testing"

	"go.bug.st/serial"
)

func TestPickPortPrefersUSB(t *testing.T) {
	name, err := pickPort([]PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523"},
	})
	if err != nil {
		t.Fatalf("pickPort failed: %v", err)
	}
	if name != "/dev/ttyUSB0" {
		t.Errorf("Expected /dev/ttyUSB0, got %s", name)
	}
}

func TestPickPortFallsBackToFirst(t *testing.T) {
	name, err := pickPort([]PortInfo{{Name: "/dev/ttyS0"}, {Name: "/dev/ttyS1"}})
	if err != nil {
		t.Fatalf("pickPort failed: %v", err)
	}
	if name != "/dev/ttyS0" {
		t.Errorf("Expected /dev/ttyS0, got %s", name)
	}
}

func TestPickPortEmpty(t *testing.T) {
	if _, err := pickPort(nil); !errors.Is(err, ErrNoPorts) {
		t.Errorf("Expected ErrNoPorts, got %v", err)
	}
}

func TestMode8N1(t *testing.T) {
	mode := Mode8N1(0)
	if mode.BaudRate != DefaultBaudRate || mode.DataBits != 8 ||
		mode.Parity != serial.NoParity || mode.StopBits != serial.OneStopBit {
		t.Errorf("unexpected mode %+v", mode)
	}
	if Mode8N1(9600).BaudRate != 9600 {
		t.Errorf("baud rate not applied")
	}
}
