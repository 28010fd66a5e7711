package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seagrayinc/serialproto/pkg/frame"
	"github.com/seagrayinc/serialproto/pkg/resync"
)

var (
	ErrSendBufferFull   = errors.New("link: send buffer full")
	ErrSenderNotStarted = errors.New("link: sender not started")
	ErrAlreadyPolling   = errors.New("link: poll already running")
)

const (
	defaultReadSize    = 256
	defaultSendBuffer  = 100
	defaultEventBuffer = 16
)

// Observer is notified of every payload and stream error a Link produces.
type Observer interface {
	Observe(payload []byte, err error)
}

type Options struct {
	Resync resync.Options

	// ReadSize is the chunk size requested from the source per read
	// (default 256).
	ReadSize int

	// SendBuffer is the capacity of the queue used by Send (default 100).
	SendBuffer int

	Observer Observer
	Logger   zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		Resync:     resync.DefaultOptions(),
		ReadSize:   defaultReadSize,
		SendBuffer: defaultSendBuffer,
		Logger:     zerolog.Nop(),
	}
}

// Event is one decoded payload or one stream error, in arrival order.
type Event struct {
	Payload []byte
	Err     error
	At      time.Time
}

// Link frames payloads onto a byte sink and extracts payloads from a byte
// source. The source is read by a single goroutine started by Poll, which
// owns the resynchronizer.
type Link struct {
	ID string

	rw     io.ReadWriter
	opts   Options
	codec  frame.Codec
	logger zerolog.Logger

	writeMu sync.Mutex

	sendOnce sync.Once
	sending  atomic.Bool
	sendMu   sync.Mutex
	queue    chan []byte

	pollMu  sync.Mutex
	polling bool

	statsMu sync.Mutex
	stats   resync.Stats
}

func New(rw io.ReadWriter, opts Options) (*Link, error) {
	if err := opts.Resync.Validate(); err != nil {
		return nil, err
	}
	if opts.ReadSize <= 0 {
		opts.ReadSize = defaultReadSize
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}

	id := uuid.NewString()
	return &Link{
		ID:     id,
		rw:     rw,
		opts:   opts,
		codec:  opts.Resync.Codec,
		logger: opts.Logger.With().Str("link", id).Logger(),
		queue:  make(chan []byte, opts.SendBuffer),
	}, nil
}

// Close closes the underlying device when it is an io.Closer.
func (l *Link) Close() error {
	if c, ok := l.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// SendNow frames each payload and writes them to the sink in one write.
// Nothing is written if any payload is too large.
func (l *Link) SendNow(payloads ...[]byte) error {
	var out []byte
	for _, p := range payloads {
		var err error
		out, err = l.codec.AppendEncode(out, p)
		if err != nil {
			return err
		}
	}
	return l.write(out)
}

func (l *Link) write(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.logger.Debug().Str("bytes", frame.HexString(b)).Msg("writing frames")
	if _, err := l.rw.Write(b); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// StartSender starts the background goroutine that drains the queue filled
// by Send. The context controls the lifetime of the sender.
func (l *Link) StartSender(ctx context.Context) {
	l.sendOnce.Do(func() {
		l.sending.Store(true)
		go l.sendLoop(ctx)
	})
}

func (l *Link) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-l.queue:
			// Coalesce whatever else is already queued into the same write.
			out := f
		collect:
			for {
				select {
				case next := <-l.queue:
					out = append(out, next...)
				default:
					break collect
				}
			}

			if err := l.write(out); err != nil {
				l.logger.Warn().Err(err).Msg("failed to write queued frames")
			}
		}
	}
}

// Send encodes payloads and queues them for the sender goroutine. It never
// blocks. A batch is queued whole or not at all: encoding errors and a queue
// without room for every frame are reported before anything is queued.
func (l *Link) Send(_ context.Context, payloads ...[]byte) error {
	if !l.sending.Load() {
		return ErrSenderNotStarted
	}

	frames := make([][]byte, 0, len(payloads))
	for _, p := range payloads {
		f, err := l.codec.Encode(p)
		if err != nil {
			return err
		}
		frames = append(frames, f)
	}

	// the sender only drains, so free room cannot shrink under sendMu
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	if cap(l.queue)-len(l.queue) < len(frames) {
		l.logger.Warn().Int("frames", len(frames)).Msg("send buffer full, dropping frames")
		return ErrSendBufferFull
	}
	for _, f := range frames {
		l.queue <- f
	}
	return nil
}

// Stats returns the counters of the resynchronizer owned by the running or
// last Poll, as of its last read.
func (l *Link) Stats() resync.Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

func (l *Link) storeStats(s resync.Stats) {
	l.statsMu.Lock()
	l.stats = s
	l.statsMu.Unlock()
}

// Poll reads the source until ctx is done or the source fails, feeding every
// chunk through a fresh resynchronizer. Frames held back by the per-feed
// budget are drained before the next read. The returned channel is closed when
// polling stops; a terminal read error other than io.EOF is delivered as the
// last event.
func (l *Link) Poll(ctx context.Context) (<-chan Event, error) {
	l.pollMu.Lock()
	defer l.pollMu.Unlock()
	if l.polling {
		return nil, ErrAlreadyPolling
	}

	ropts := l.opts.Resync
	ropts.Logger = l.logger
	rs, err := resync.New(ropts)
	if err != nil {
		return nil, err
	}
	l.polling = true

	out := make(chan Event, defaultEventBuffer)
	go l.pollLoop(ctx, rs, out)
	return out, nil
}

func (l *Link) pollLoop(ctx context.Context, rs *resync.Resynchronizer, out chan<- Event) {
	defer func() {
		l.pollMu.Lock()
		l.polling = false
		l.pollMu.Unlock()
		close(out)
	}()

	buf := make([]byte, l.opts.ReadSize)
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := l.rw.Read(buf)
		if n > 0 {
			l.logger.Trace().Str("bytes", frame.HexString(buf[:n])).Msg("read chunk")
			results := append(rs.Feed(buf[:n]), rs.Flush()...)
			l.storeStats(rs.Stats())
			if !l.deliver(ctx, out, results) {
				return
			}
		}

		switch {
		case err == nil:
			// serial ports report a read timeout as (0, nil)
		case errors.Is(err, io.EOF):
			l.logger.Info().Msg("source closed")
			l.deliver(ctx, out, rs.Flush())
			l.storeStats(rs.Stats())
			return
		case ctx.Err() != nil:
			return
		default:
			l.logger.Warn().Err(err).Msg("read failed")
			l.deliver(ctx, out, []resync.Result{{Err: fmt.Errorf("read: %w", err)}})
			return
		}
	}
}

func (l *Link) deliver(ctx context.Context, out chan<- Event, results []resync.Result) bool {
	for _, r := range results {
		if l.opts.Observer != nil {
			l.opts.Observer.Observe(r.Payload, r.Err)
		}
		ev := Event{Payload: r.Payload, Err: r.Err, At: time.Now().UTC()}
		select {
		case <-ctx.Done():
			return false
		case out <- ev:
		}
	}
	return true
}
