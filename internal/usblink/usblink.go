// Package usblink opens a USB device by vendor/product ID and exposes its
// bulk endpoints as a byte stream.
package usblink

import (
	"fmt"

	"github.com/karalabe/usb"
)

// Device is an opened USB device. It satisfies io.ReadWriteCloser.
type Device struct {
	dev  usb.Device
	info usb.DeviceInfo
}

// Open finds the first device matching vendorID/productID and opens it.
func Open(vendorID, productID uint16) (*Device, error) {
	infos, err := usb.Enumerate(vendorID, productID)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("usb device %04x:%04x not found", vendorID, productID)
	}

	dev, err := infos[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", infos[0].Path, err)
	}
	return &Device{dev: dev, info: infos[0]}, nil
}

// Supported reports whether the USB backend is available on this platform.
func Supported() bool {
	return usb.Supported()
}

func (d *Device) Path() string {
	return d.info.Path
}

func (d *Device) Read(p []byte) (int, error) {
	n, err := d.dev.Read(p)
	if err != nil {
		return n, fmt.Errorf("usb read: %w", err)
	}
	return n, nil
}

func (d *Device) Write(p []byte) (int, error) {
	n, err := d.dev.Write(p)
	if err != nil {
		return n, fmt.Errorf("usb write: %w", err)
	}
	return n, nil
}

// Close releases the device.
func (d *Device) Close() error {
	return d.dev.Close()
}
