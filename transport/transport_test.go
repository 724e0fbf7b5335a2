package transport

import (
	"bytes"
	"testing"
)

func TestFragmentReassembleRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, MaxFragmentSize*3+17)
	frames := Fragment(7, 0, payload)
	if len(frames) != 4 {
		t.Fatalf("expected 4 fragments, got %d", len(frames))
	}

	r := NewReassembler()
	var got []byte
	var done bool
	for _, f := range frames {
		got, done = r.Add(f)
	}
	if !done {
		t.Fatalf("expected reassembly to complete on last fragment")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("reassembled payload mismatch")
	}
}

func TestFragmentReassembleOutOfOrder(t *testing.T) {
	payload := bytes.Repeat([]byte{0x01, 0x02}, MaxFragmentSize)
	frames := Fragment(9, 3, payload)
	r := NewReassembler()

	for i := len(frames) - 1; i >= 0; i-- {
		got, done := r.Add(frames[i])
		if i == 0 {
			if !done {
				t.Fatalf("expected completion once all fragments delivered")
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("out-of-order reassembly mismatch")
			}
		} else if done {
			t.Fatalf("reassembly completed early at fragment %d", i)
		}
	}
}

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{MessageId: 123, FragIndex: 1, FragTotal: 2, SendCtr: 99, Payload: []byte("hello")}
	got, err := DecodeFrame(f.Encode())
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.MessageId != f.MessageId || got.FragIndex != f.FragIndex || got.FragTotal != f.FragTotal || got.SendCtr != f.SendCtr {
		t.Fatalf("header mismatch: got %+v want %+v", got, f)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestLoopbackSendReceive(t *testing.T) {
	hub := NewLoopbackHub()
	var a, b NeighborId
	a[0], b[0] = 1, 2

	ta := hub.Join(a)
	tb := hub.Join(b)
	defer ta.Close()
	defer tb.Close()

	frame := Frame{MessageId: 1, FragTotal: 1, Payload: []byte("ping")}
	if err := ta.Send(b, frame); err != nil {
		t.Fatalf("Send: %v", err)
	}
	in := <-tb.Inbox()
	if in.From != a {
		t.Fatalf("expected frame from %s, got %s", a, in.From)
	}
	if string(in.Frame.Payload) != "ping" {
		t.Fatalf("payload mismatch: %q", in.Frame.Payload)
	}
}

func TestLoopbackBroadcastReachesAllNeighbors(t *testing.T) {
	hub := NewLoopbackHub()
	var a, b, c NeighborId
	a[0], b[0], c[0] = 1, 2, 3

	ta := hub.Join(a)
	tb := hub.Join(b)
	tc := hub.Join(c)
	defer ta.Close()
	defer tb.Close()
	defer tc.Close()

	if err := ta.Broadcast(Frame{MessageId: 5, FragTotal: 1, Payload: []byte("x")}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	for _, ch := range []<-chan Inbound{tb.Inbox(), tc.Inbox()} {
		in := <-ch
		if in.From != a {
			t.Fatalf("expected sender %s, got %s", a, in.From)
		}
	}
}
