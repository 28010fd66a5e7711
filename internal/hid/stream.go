package hid

import (
	"context"
	"io"
)

// MaxReportData is the number of stream bytes one report can carry.
const MaxReportData = 63

// Stream carries a byte stream over HID reports using the convention of
// USB-UART bridges such as the CP2110: the report ID holds the count of valid
// bytes at the start of the report data, the rest is zero padding.
type Stream struct {
	dev     Device
	ctx     context.Context
	cancel  context.CancelFunc
	reports <-chan Report
	pending []byte
}

// NewStream starts polling dev. Read returns io.EOF once ctx is done or the
// device stops delivering reports.
func NewStream(ctx context.Context, dev Device) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	return &Stream{
		dev:     dev,
		ctx:     ctx,
		cancel:  cancel,
		reports: dev.PollReports(ctx),
	}
}

func (s *Stream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		r, ok := <-s.reports
		if !ok {
			return 0, io.EOF
		}
		s.pending = reportBytes(r)
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *Stream) Write(p []byte) (int, error) {
	var written int
	for len(p) > 0 {
		n := min(len(p), MaxReportData)
		data := make([]byte, MaxReportData)
		copy(data, p[:n])
		if err := s.dev.WriteReport(s.ctx, Report{ID: byte(n), Data: data}); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

func (s *Stream) Close() error {
	s.cancel()
	return s.dev.Close()
}

func reportBytes(r Report) []byte {
	n := min(int(r.ID), len(r.Data))
	return r.Data[:n]
}
