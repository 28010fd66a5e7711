package hid

import (
	"context"

	"github.com/rs/zerolog"
)

// Report is a single HID report. ID is the report ID byte; Data excludes it.
type Report struct {
	ID   byte
	Data []byte
}

// Device represents an opened HID device capable of report I/O.
type Device interface {
	WriteReport(ctx context.Context, r Report) error
	// PollReports reads input reports until ctx is done or the device
	// fails, then closes the returned channel.
	PollReports(ctx context.Context) <-chan Report
	Close() error
}

// Info represents a HID device descriptor.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string
}

// Manager enumerates and opens HID devices.
type Manager interface {
	List() ([]Info, error)
	Open(info Info) (Device, error)
	OpenVIDPID(vendorID, productID uint16) (Device, error)
}

// NewManager returns the usbhid backed manager. Opened devices log read
// failures to logger.
func NewManager(logger zerolog.Logger) Manager {
	return &usbManager{logger: logger.With().Str("component", "hid").Logger()}
}
