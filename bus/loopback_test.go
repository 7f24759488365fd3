package bus

import (
	"errors"
	"io"
	"testing"

	"github.com/FabianPetersen/can"
)

func TestLoopbackDeliversToOthers(t *testing.T) {
	lb := NewLoopback()
	defer lb.Close()

	a, b, c := lb.Open(), lb.Open(), lb.Open()

	sent := can.Frame{ID: 0x98FF3203, Length: 2, Data: [8]uint8{0x4C, 0xFC}}
	if err := a.WriteFrame(sent, 0); err != nil {
		t.Fatal(err)
	}
	for _, rwc := range []can.ReadWriteCloser{b, c} {
		var got can.Frame
		if err := rwc.ReadFrame(&got); err != nil {
			t.Fatal(err)
		}
		if !got.Equals(&sent) {
			t.Fatalf("ReadFrame() = %+v, want %+v", got, sent)
		}
	}
}

func TestLoopbackClosedEndpoint(t *testing.T) {
	lb := NewLoopback()
	a, b := lb.Open(), lb.Open()

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
	var frm can.Frame
	if err := b.ReadFrame(&frm); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("ReadFrame() after Close() = %v, want io.ErrClosedPipe", err)
	}
	if err := b.WriteFrame(can.Frame{ID: 0x98FF3203}, 0); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("WriteFrame() after Close() = %v", err)
	}

	lb.Close()
	if err := a.WriteFrame(can.Frame{ID: 0x98FF3203}, 0); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("WriteFrame() on closed medium = %v", err)
	}
	if err := lb.Open().ReadFrame(&frm); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("ReadFrame() of endpoint opened after Close() = %v", err)
	}
}
