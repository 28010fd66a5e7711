package frame

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeKnownFrame(t *testing.T) {
	f, err := Encode([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got, want := HexString(f), "aa-05-01-02-03-04-05-14-bb"; got != want {
		t.Fatalf("frame mismatch: got %s want %s", got, want)
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	f, err := Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(f, []byte{Head, 0x00, 0x00, Tail}) {
		t.Fatalf("unexpected empty frame: %s", HexString(f))
	}
}

func TestRoundTripAllLengths(t *testing.T) {
	for n := 0; n <= MaxPayloadLen; n++ {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i*7 + n)
		}
		f, err := Encode(payload)
		if err != nil {
			t.Fatalf("len=%d encode: %v", n, err)
		}
		if len(f) != n+Overhead {
			t.Fatalf("len=%d unexpected frame length %d", n, len(f))
		}
		out, err := Decode(f)
		if err != nil {
			t.Fatalf("len=%d decode: %v", n, err)
		}
		if !bytes.Equal(out, payload) {
			t.Fatalf("len=%d payload mismatch", n)
		}
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	_, err := Encode(make([]byte, MaxPayloadLen+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestAppendEncodeLeavesDstOnError(t *testing.T) {
	dst := []byte{0x01}
	out, err := DefaultCodec().AppendEncode(dst, make([]byte, 300))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !bytes.Equal(out, dst) {
		t.Fatalf("dst modified: %v", out)
	}
}

func TestDecodeRejections(t *testing.T) {
	valid, _ := Encode([]byte{0x11, 0x22})

	tests := []struct {
		name      string
		candidate []byte
		want      error
	}{
		{name: "empty", candidate: nil, want: ErrTooShort},
		{name: "three bytes", candidate: []byte{Head, 0x00, Tail}, want: ErrTooShort},
		{name: "bad head", candidate: []byte{0x00, 0x00, 0x00, Tail}, want: ErrBadHead},
		{name: "bad tail", candidate: []byte{Head, 0x00, 0x00, 0x00}, want: ErrBadTail},
		{name: "declared longer", candidate: []byte{Head, 0x01, 0x00, Tail}, want: ErrLengthMismatch},
		{name: "declared shorter", candidate: append(append([]byte{}, valid[:len(valid)-1]...), 0x00, Tail), want: ErrLengthMismatch},
		{name: "checksum", candidate: []byte{Head, 0x01, 0x10, 0x12, Tail}, want: ErrChecksumMismatch},
		// head is checked before tail, tail before length
		{name: "head wins", candidate: []byte{0x00, 0x09, 0x00, 0x00}, want: ErrBadHead},
		{name: "tail wins", candidate: []byte{Head, 0x09, 0x00, 0x00}, want: ErrBadTail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.candidate)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !IsDecodeError(err) {
				t.Fatalf("IsDecodeError(%v) = false", err)
			}
		})
	}
}

func TestDecodeReturnsView(t *testing.T) {
	f, _ := Encode([]byte{0x01, 0x02})
	out, err := Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out[0] = 0x7F
	if f[2] != 0x7F {
		t.Fatalf("payload does not alias the candidate")
	}
}

func TestSingleBitFlipsAreDetected(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x00},
		{0xAA},
		{0x01, 0x02, 0x03},
		{0xBB, 0xAA, 0xFF, 0x00},
	}

	for _, p := range payloads {
		f, err := Encode(p)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}

		// DATA and CHECKSUM region: a single-bit change moves the sum by a
		// power of two below 256, which is never 0 mod 256.
		for i := 2; i < len(f)-1; i++ {
			for bit := 0; bit < 8; bit++ {
				c := append([]byte{}, f...)
				c[i] ^= 1 << bit
				if _, err := Decode(c); !errors.Is(err, ErrChecksumMismatch) {
					t.Fatalf("payload=%x byte=%d bit=%d: expected ErrChecksumMismatch, got %v", p, i, bit, err)
				}
			}
		}

		// LEN region: the declared length no longer matches, which is
		// checked before the checksum.
		for bit := 0; bit < 8; bit++ {
			c := append([]byte{}, f...)
			c[1] ^= 1 << bit
			if _, err := Decode(c); !errors.Is(err, ErrLengthMismatch) {
				t.Fatalf("payload=%x len bit=%d: expected ErrLengthMismatch, got %v", p, bit, err)
			}
		}
	}
}

func TestCustomDelimiters(t *testing.T) {
	c := Codec{Head: 0x7E, Tail: 0x7F, MaxPayloadLen: 8}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	f, err := c.Encode([]byte{0xAA, 0xBB})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if f[0] != 0x7E || f[len(f)-1] != 0x7F {
		t.Fatalf("delimiters not applied: %s", HexString(f))
	}
	if _, err := Decode(f); !errors.Is(err, ErrBadHead) {
		t.Fatalf("default codec accepted custom frame: %v", err)
	}
	if _, err := c.Encode(make([]byte, 9)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecodeEnforcesPayloadLimit(t *testing.T) {
	c := DefaultCodec()
	c.MaxPayloadLen = 4
	f, err := Encode([]byte{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Decode(f); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}

	f, err = c.Encode([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Decode(f); err != nil {
		t.Fatalf("decode at limit: %v", err)
	}
}

func TestCodecValidate(t *testing.T) {
	tests := []struct {
		name  string
		codec Codec
		ok    bool
	}{
		{name: "default", codec: DefaultCodec(), ok: true},
		{name: "zero payload", codec: Codec{Head: 1, Tail: 2, MaxPayloadLen: 0}, ok: true},
		{name: "same delimiters", codec: Codec{Head: 1, Tail: 1, MaxPayloadLen: 10}},
		{name: "payload over 255", codec: Codec{Head: 1, Tail: 2, MaxPayloadLen: 256}},
		{name: "negative payload", codec: Codec{Head: 1, Tail: 2, MaxPayloadLen: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.codec.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidCodec) {
				t.Fatalf("expected ErrInvalidCodec, got %v", err)
			}
		})
	}
}

func TestParseHex(t *testing.T) {
	for _, in := range []string{"aa-05-bb", "aa05bb", "0xaa05bb", "aa:05:bb", "AA 05 BB"} {
		b, err := ParseHex(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if !bytes.Equal(b, []byte{0xAA, 0x05, 0xBB}) {
			t.Fatalf("%q: got %x", in, b)
		}
	}
	if _, err := ParseHex("zz"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
}
