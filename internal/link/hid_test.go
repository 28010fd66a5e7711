package link

import (
	"bytes"
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seagrayinc/serialproto/internal/hid"
)

func TestLinkOverHIDStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	mock := hid.NewMockHID()
	l, err := New(hid.NewStream(ctx, mock), DefaultOptions())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	events, err := l.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	stream := append(encode(t, 0x01, 0x02, 0x03), encode(t, 0x04)...)
	report := func(b []byte) hid.Report {
		data := make([]byte, hid.MaxReportData)
		copy(data, b)
		return hid.Report{ID: byte(len(b)), Data: data}
	}

	var g errgroup.Group
	g.Go(func() error {
		mock.Emit(report(stream[:4]))
		mock.Emit(report(stream[4:]))
		mock.Unplug()
		return nil
	})

	got := collect(t, events)
	if err := g.Wait(); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %+v", got)
	}
	if !bytes.Equal(got[0].Payload, []byte{0x01, 0x02, 0x03}) || !bytes.Equal(got[1].Payload, []byte{0x04}) {
		t.Fatalf("unexpected payloads: %+v", got)
	}

	if err := l.SendNow([]byte{0x09}); err != nil {
		t.Fatalf("send: %v", err)
	}
	written := mock.Written()
	if len(written) != 1 || written[0].ID != 5 || !bytes.Equal(written[0].Data[:5], encode(t, 0x09)) {
		t.Fatalf("unexpected reports written: %+v", written)
	}
}
