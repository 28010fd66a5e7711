// Package resync recovers frame boundaries from a noisy byte stream that
// arrives in arbitrary chunks.
//
// Each Feed call appends the chunk to a bounded receive buffer and then
// repeatedly seeks a head byte, reads the length byte, waits for the body
// and validates the candidate. A candidate is consumed whether or not it
// validates; bytes inside a corrupt candidate are never rescanned. This
// bounds the work per call at the cost of occasionally skipping a real frame
// that started inside the corrupt one.
package resync

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seagrayinc/serialproto/pkg/frame"
)

const (
	DefaultMaxBufferBytes   = 4096
	DefaultMaxFramesPerFeed = 10
)

type Options struct {
	Codec frame.Codec

	// MaxBufferBytes bounds the receive buffer. When exceeded, the oldest
	// bytes are dropped so the most recent half remains.
	MaxBufferBytes int

	// MaxFramesPerFeed caps the candidates extracted by one Feed call.
	// Complete frames beyond the cap stay buffered for the next call.
	MaxFramesPerFeed int

	Logger zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		Codec:            frame.DefaultCodec(),
		MaxBufferBytes:   DefaultMaxBufferBytes,
		MaxFramesPerFeed: DefaultMaxFramesPerFeed,
		Logger:           zerolog.Nop(),
	}
}

func (o Options) Validate() error {
	if err := o.Codec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if o.MaxBufferBytes < frame.MaxFrameLen {
		return fmt.Errorf("%w: max buffer bytes %d smaller than a maximum frame (%d)", ErrInvalidOptions, o.MaxBufferBytes, frame.MaxFrameLen)
	}
	if o.MaxFramesPerFeed <= 0 {
		return fmt.Errorf("%w: max frames per feed must be positive", ErrInvalidOptions)
	}
	return nil
}

// Result is one extraction outcome: a payload or an error, never both.
type Result struct {
	Payload []byte
	Err     error
}

type Stats struct {
	Frames         uint64
	DecodeErrors   uint64
	DroppedBytes   uint64
	Overflows      uint64
	ConsumerErrors uint64
}

// Resynchronizer is not safe for concurrent use. All Feed calls on one
// instance must come from a single goroutine or be serialized by the caller.
type Resynchronizer struct {
	opts   Options
	logger zerolog.Logger
	buf    bytes.Buffer
	stats  Stats

	onPayload func([]byte) error
	onError   func(error)
}

func New(opts Options) (*Resynchronizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r := &Resynchronizer{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "resync").Logger(),
	}
	r.buf.Grow(opts.MaxBufferBytes)
	return r, nil
}

// OnPayload registers the payload consumer, replacing any previous one.
// A nil fn unregisters it.
func (r *Resynchronizer) OnPayload(fn func(payload []byte) error) {
	r.onPayload = fn
}

// OnError registers the error consumer, replacing any previous one. It
// receives *FrameError, *OverflowError and *ConsumerError values.
func (r *Resynchronizer) OnError(fn func(err error)) {
	r.onError = fn
}

// Buffered returns the number of bytes retained for the next Feed.
func (r *Resynchronizer) Buffered() int {
	return r.buf.Len()
}

func (r *Resynchronizer) Stats() Stats {
	return r.stats
}

// Reset discards all buffered bytes. Stats and consumers are kept.
func (r *Resynchronizer) Reset() {
	r.buf.Reset()
}

// Feed appends chunk to the receive buffer and extracts up to
// MaxFramesPerFeed candidates. Results are returned and dispatched to the
// registered consumers in extraction order. Returned payloads are owned by
// the caller. A nil chunk drains frames left over from an earlier call.
func (r *Resynchronizer) Feed(chunk []byte) []Result {
	r.buf.Write(chunk)

	var results []Result
	if over := r.enforceBound(); over != nil {
		results = append(results, r.emitError(over))
	}

	for extracted := 0; extracted < r.opts.MaxFramesPerFeed; {
		b := r.buf.Bytes()

		idx := bytes.IndexByte(b, r.opts.Codec.Head)
		if idx < 0 {
			r.drop(len(b))
			r.buf.Reset()
			break
		}
		if idx > 0 {
			r.drop(idx)
			r.buf.Next(idx)
			b = r.buf.Bytes()
		}

		if len(b) < frame.MinFrameLen {
			break
		}
		total := frame.FrameLen(b[1])
		if len(b) < total {
			break
		}

		candidate := bytes.Clone(r.buf.Next(total))
		extracted++

		payload, err := r.opts.Codec.Decode(candidate)
		if err != nil {
			r.stats.DecodeErrors++
			results = append(results, r.emitError(&FrameError{Err: err, Frame: candidate}))
			continue
		}

		r.stats.Frames++
		results = append(results, Result{Payload: payload})
		if cerr := r.dispatch(payload); cerr != nil {
			results = append(results, r.emitError(cerr))
		}
	}

	return results
}

// Flush feeds no new bytes until a call yields nothing, draining every
// complete frame still buffered.
func (r *Resynchronizer) Flush() []Result {
	var results []Result
	for {
		rs := r.Feed(nil)
		if len(rs) == 0 {
			return results
		}
		results = append(results, rs...)
	}
}

func (r *Resynchronizer) enforceBound() *OverflowError {
	n := r.buf.Len()
	if n <= r.opts.MaxBufferBytes {
		return nil
	}
	keep := r.opts.MaxBufferBytes / 2
	r.buf.Next(n - keep)
	r.stats.Overflows++
	r.drop(n - keep)
	return &OverflowError{Dropped: n - keep, Kept: keep}
}

func (r *Resynchronizer) drop(n int) {
	if n == 0 {
		return
	}
	r.stats.DroppedBytes += uint64(n)
	r.logger.Trace().Int("bytes", n).Msg("dropped bytes")
}

func (r *Resynchronizer) dispatch(payload []byte) (err *ConsumerError) {
	if r.onPayload == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = &ConsumerError{Payload: payload, Err: fmt.Errorf("panic: %v", p)}
		}
		if err != nil {
			r.stats.ConsumerErrors++
		}
	}()
	if cerr := r.onPayload(payload); cerr != nil {
		return &ConsumerError{Payload: payload, Err: cerr}
	}
	return nil
}

func (r *Resynchronizer) emitError(err error) Result {
	r.logger.Debug().Err(err).Msg("stream error")
	if r.onError != nil {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error().Interface("panic", p).Msg("error consumer panicked")
				}
			}()
			r.onError(err)
		}()
	}
	return Result{Err: err}
}
