// Package frame implements the serial frame wire format:
//
//	HEAD(1) | LEN(1) | DATA(LEN) | CHECKSUM(1) | TAIL(1)
//
// CHECKSUM is the mod-256 sum of LEN and every DATA byte. Payload bytes are
// not escaped, so DATA may contain the HEAD and TAIL values.
package frame

import (
	"errors"
	"fmt"
)

const (
	Head = 0xAA
	Tail = 0xBB

	// Overhead is the number of framing bytes around a payload.
	Overhead      = 4
	MinFrameLen   = Overhead
	MaxPayloadLen = 255
	MaxFrameLen   = MaxPayloadLen + Overhead
)

var (
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
	ErrTooShort         = errors.New("frame: candidate shorter than minimum frame")
	ErrBadHead          = errors.New("frame: bad head byte")
	ErrBadTail          = errors.New("frame: bad tail byte")
	ErrLengthMismatch   = errors.New("frame: declared length does not match candidate")
	ErrChecksumMismatch = errors.New("frame: checksum mismatch")
	ErrInvalidCodec     = errors.New("frame: invalid codec")
)

var decodeErrors = []error{ErrTooShort, ErrBadHead, ErrBadTail, ErrLengthMismatch, ErrChecksumMismatch}

// IsDecodeError reports whether err is one of the Decode rejection reasons.
func IsDecodeError(err error) bool {
	for _, target := range decodeErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Codec holds the frame delimiters and payload limit. The limit applies to
// both directions: Decode rejects frames declaring a longer payload. Use
// DefaultCodec to construct one; the zero value is not valid.
type Codec struct {
	Head          byte
	Tail          byte
	MaxPayloadLen int
}

func DefaultCodec() Codec {
	return Codec{
		Head:          Head,
		Tail:          Tail,
		MaxPayloadLen: MaxPayloadLen,
	}
}

func (c Codec) Validate() error {
	if c.MaxPayloadLen < 0 || c.MaxPayloadLen > MaxPayloadLen {
		return fmt.Errorf("%w: max payload length %d outside 0..%d", ErrInvalidCodec, c.MaxPayloadLen, MaxPayloadLen)
	}
	if c.Head == c.Tail {
		return fmt.Errorf("%w: head and tail are both 0x%02X", ErrInvalidCodec, c.Head)
	}
	return nil
}

// Encode returns payload wrapped in a frame.
func (c Codec) Encode(payload []byte) ([]byte, error) {
	return c.AppendEncode(nil, payload)
}

// AppendEncode appends the frame for payload to dst. On error dst is
// returned unchanged.
func (c Codec) AppendEncode(dst, payload []byte) ([]byte, error) {
	if len(payload) > c.MaxPayloadLen {
		return dst, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), c.MaxPayloadLen)
	}

	n := byte(len(payload))
	dst = append(dst, c.Head, n)
	dst = append(dst, payload...)
	dst = append(dst, Checksum(n, payload), c.Tail)
	return dst, nil
}

// Decode validates a single candidate frame and returns its payload. The
// payload aliases candidate.
func (c Codec) Decode(candidate []byte) ([]byte, error) {
	if len(candidate) < MinFrameLen {
		return nil, ErrTooShort
	}
	if candidate[0] != c.Head {
		return nil, ErrBadHead
	}
	if candidate[len(candidate)-1] != c.Tail {
		return nil, ErrBadTail
	}

	n := candidate[1]
	if len(candidate) != Overhead+int(n) {
		return nil, ErrLengthMismatch
	}
	if int(n) > c.MaxPayloadLen {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrLengthMismatch, n, c.MaxPayloadLen)
	}

	data := candidate[2 : 2+int(n)]
	if candidate[2+int(n)] != Checksum(n, data) {
		return nil, ErrChecksumMismatch
	}

	return data, nil
}

// FrameLen returns the total frame length announced by a length byte.
func FrameLen(lengthByte byte) int {
	return Overhead + int(lengthByte)
}

// Checksum is the mod-256 sum of the length byte and data.
func Checksum(lengthByte byte, data []byte) byte {
	sum := lengthByte
	for _, b := range data {
		sum += b
	}
	return sum
}

// Encode frames payload with the default delimiters.
func Encode(payload []byte) ([]byte, error) {
	return DefaultCodec().Encode(payload)
}

// Decode validates candidate with the default delimiters.
func Decode(candidate []byte) ([]byte, error) {
	return DefaultCodec().Decode(candidate)
}
