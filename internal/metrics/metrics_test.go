package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/seagrayinc/serialproto/pkg/frame"
	"github.com/seagrayinc/serialproto/pkg/resync"
)

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: &resync.FrameError{Err: frame.ErrChecksumMismatch}, want: "checksum_mismatch"},
		{err: &resync.FrameError{Err: frame.ErrBadTail}, want: "bad_tail"},
		{err: &resync.OverflowError{Dropped: 1}, want: "buffer_overflow"},
		{err: &resync.ConsumerError{Err: errors.New("x")}, want: "consumer"},
		{err: fmt.Errorf("read: %w", io.ErrClosedPipe), want: "io"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Reason(tt.err); got != tt.want {
				t.Fatalf("Reason(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.Observe([]byte{1, 2, 3}, nil)
	r.Observe([]byte{4}, nil)
	r.Observe(nil, &resync.FrameError{Err: frame.ErrChecksumMismatch})

	if got := testutil.ToFloat64(r.payloads); got != 2 {
		t.Fatalf("payloads = %v", got)
	}
	if got := testutil.ToFloat64(r.payloadBytes); got != 4 {
		t.Fatalf("payload bytes = %v", got)
	}
	if got := testutil.ToFloat64(r.errors.WithLabelValues("checksum_mismatch")); got != 1 {
		t.Fatalf("checksum errors = %v", got)
	}
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.Observe([]byte{1}, nil)
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	for path, want := range map[string]string{
		"/healthz": "ok",
		"/metrics": "serialproto_link_payloads_total 1",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), want) {
			t.Fatalf("%s: status=%d body=%s", path, resp.StatusCode, body)
		}
	}
}

type fixedStats resync.Stats

func (f fixedStats) Stats() resync.Stats { return resync.Stats(f) }

func TestTrack(t *testing.T) {
	r := NewRecorder()
	r.Track(fixedStats{DroppedBytes: 7, Overflows: 1, DecodeErrors: 3})
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		"serialproto_resync_dropped_bytes_total 7",
		"serialproto_resync_overflows_total 1",
		"serialproto_resync_decode_errors_total 3",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}
