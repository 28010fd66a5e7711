package hid

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	usbhid "rafaelmartins.com/p/usbhid"
)

type usbManager struct {
	logger zerolog.Logger
}

func (m *usbManager) List() ([]Info, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, fmt.Errorf("hid enumerate: %w", err)
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		out = append(out, Info{
			Path:         d.Path(),
			VendorID:     d.VendorId(),
			ProductID:    d.ProductId(),
			Product:      d.Product(),
			Manufacturer: d.Manufacturer(),
		})
	}
	return out, nil
}

func (m *usbManager) Open(info Info) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.Path() == info.Path
	}, true, false)
	if err != nil {
		return nil, fmt.Errorf("hid open %s: %w", info.Path, err)
	}
	return &usbDevice{d: d, logger: m.logger.With().Str("path", d.Path()).Logger()}, nil
}

func (m *usbManager) OpenVIDPID(vendorID, productID uint16) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.VendorId() == vendorID && dev.ProductId() == productID
	}, true, false)
	if err != nil {
		return nil, fmt.Errorf("hid open %04x:%04x: %w", vendorID, productID, err)
	}
	return &usbDevice{d: d, logger: m.logger.With().Str("path", d.Path()).Logger()}, nil
}

type usbDevice struct {
	d      *usbhid.Device
	logger zerolog.Logger
}

func (d *usbDevice) WriteReport(_ context.Context, r Report) error {
	if err := d.d.SetOutputReport(r.ID, r.Data); err != nil {
		return fmt.Errorf("hid write report 0x%02x: %w", r.ID, err)
	}
	return nil
}

// PollReports blocks in GetInputReport; closing the device is what unblocks
// a pending read after ctx is cancelled.
func (d *usbDevice) PollReports(ctx context.Context) <-chan Report {
	out := make(chan Report)
	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}
			id, buf, err := d.d.GetInputReport()
			if err != nil {
				if ctx.Err() == nil {
					d.logger.Warn().Err(err).Msg("hid input report read failed")
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- Report{ID: id, Data: buf}:
			}
		}
	}()
	return out
}

func (d *usbDevice) Close() error { return d.d.Close() }
