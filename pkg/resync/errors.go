package resync

import (
	"errors"
	"fmt"

	"github.com/seagrayinc/serialproto/pkg/frame"
)

var (
	ErrBufferOverflow = errors.New("resync: receive buffer overflow")
	ErrConsumer       = errors.New("resync: payload consumer failed")
	ErrInvalidOptions = errors.New("resync: invalid options")
)

// FrameError is reported when an extracted candidate fails validation. It
// unwraps to one of the frame decode errors.
type FrameError struct {
	Err   error
	Frame []byte
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%v (candidate %s)", e.Err, frame.HexString(e.Frame))
}

func (e *FrameError) Unwrap() error { return e.Err }

// OverflowError is the capacity warning raised when the receive buffer
// exceeds its bound and the oldest bytes are discarded.
type OverflowError struct {
	Dropped int
	Kept    int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%v: dropped %d bytes, kept %d", ErrBufferOverflow, e.Dropped, e.Kept)
}

func (e *OverflowError) Unwrap() error { return ErrBufferOverflow }

// ConsumerError wraps a failure returned (or panicked) by the payload
// consumer.
type ConsumerError struct {
	Payload []byte
	Err     error
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("%v: %v", ErrConsumer, e.Err)
}

func (e *ConsumerError) Unwrap() []error { return []error{ErrConsumer, e.Err} }
