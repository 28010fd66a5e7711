package hid

import (
	"context"
	"sync"
)

// MockHID is an in-memory Device. Reports passed to Emit are delivered by
// PollReports; written reports are recorded.
type MockHID struct {
	reports chan Report

	mu      sync.Mutex
	written []Report
}

func NewMockHID() *MockHID {
	return &MockHID{
		reports: make(chan Report),
	}
}

func (m *MockHID) Close() error {
	return nil
}

func (m *MockHID) WriteReport(_ context.Context, r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, Report{ID: r.ID, Data: append([]byte{}, r.Data...)})
	return nil
}

// Written returns the reports written so far.
func (m *MockHID) Written() []Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Report{}, m.written...)
}

func (m *MockHID) PollReports(ctx context.Context) <-chan Report {
	out := make(chan Report)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-m.reports:
				if !ok {
					return
				}
				select {
				case <-ctx.Done():
					return
				case out <- r:
				}
			}
		}
	}()
	return out
}

// Emit blocks until the report is picked up by a poller.
func (m *MockHID) Emit(r Report) {
	m.reports <- Report{ID: r.ID, Data: r.Data}
}

// Unplug ends every poll as if the device went away.
func (m *MockHID) Unplug() {
	close(m.reports)
}
