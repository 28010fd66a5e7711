package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/seagrayinc/serialproto/pkg/frame"
	"github.com/seagrayinc/serialproto/pkg/resync"
)

const (
	LinkSerial = "serial"
	LinkHID    = "hid"
	LinkUSB    = "usb"
)

type Config struct {
	Protocol Protocol `yaml:"protocol" toml:"protocol"`
	Link     Link     `yaml:"link" toml:"link"`
	Log      Log      `yaml:"log" toml:"log"`
	Metrics  Metrics  `yaml:"metrics" toml:"metrics"`
}

type Protocol struct {
	HeadByte         int `yaml:"head_byte" toml:"head_byte"`
	TailByte         int `yaml:"tail_byte" toml:"tail_byte"`
	MaxPayloadLen    int `yaml:"max_payload_len" toml:"max_payload_len"`
	MaxBufferBytes   int `yaml:"max_buffer_bytes" toml:"max_buffer_bytes"`
	MaxFramesPerFeed int `yaml:"max_frames_per_feed" toml:"max_frames_per_feed"`
}

type Link struct {
	Kind        string        `yaml:"kind" toml:"kind"`
	Device      string        `yaml:"device" toml:"device"`
	BaudRate    int           `yaml:"baud_rate" toml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	VendorID    int           `yaml:"vendor_id" toml:"vendor_id"`
	ProductID   int           `yaml:"product_id" toml:"product_id"`
	ReadSize    int           `yaml:"read_size" toml:"read_size"`
	SendBuffer  int           `yaml:"send_buffer" toml:"send_buffer"`
}

type Log struct {
	Level   string `yaml:"level" toml:"level"`
	NoColor bool   `yaml:"no_color" toml:"no_color"`
}

type Metrics struct {
	Addr string `yaml:"addr" toml:"addr"`
}

func Default() Config {
	return Config{
		Protocol: Protocol{
			HeadByte:         frame.Head,
			TailByte:         frame.Tail,
			MaxPayloadLen:    frame.MaxPayloadLen,
			MaxBufferBytes:   resync.DefaultMaxBufferBytes,
			MaxFramesPerFeed: resync.DefaultMaxFramesPerFeed,
		},
		Link: Link{
			Kind:        LinkSerial,
			BaudRate:    115200,
			ReadTimeout: 100 * time.Millisecond,
			ReadSize:    256,
			SendBuffer:  100,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file over the defaults and
// validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(data, &cfg)
	case ".toml":
		_, err = toml.Decode(string(data), &cfg)
	default:
		return Config{}, fmt.Errorf("config format not supported (%s)", path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if err := validateByte("head_byte", cfg.Protocol.HeadByte); err != nil {
		return err
	}
	if err := validateByte("tail_byte", cfg.Protocol.TailByte); err != nil {
		return err
	}
	if err := cfg.Protocol.ResyncOptions(zerolog.Nop()).Validate(); err != nil {
		return fmt.Errorf("protocol config invalid: %w", err)
	}

	switch cfg.Link.Kind {
	case LinkSerial:
		if strings.TrimSpace(cfg.Link.Device) == "" {
			return fmt.Errorf("link config missing device")
		}
	case LinkHID, LinkUSB:
		// a hid device may be named by path instead of ids
		if cfg.Link.Kind == LinkHID && strings.TrimSpace(cfg.Link.Device) != "" {
			return nil
		}
		if err := validateID("vendor_id", cfg.Link.VendorID); err != nil {
			return err
		}
		if err := validateID("product_id", cfg.Link.ProductID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("link kind %q not supported", cfg.Link.Kind)
	}
	return nil
}

func validateByte(name string, v int) error {
	if v < 0 || v > 0xFF {
		return fmt.Errorf("protocol %s 0x%X is not a byte", name, v)
	}
	return nil
}

func validateID(name string, v int) error {
	if v <= 0 || v > 0xFFFF {
		return fmt.Errorf("link %s 0x%X is not a usb id", name, v)
	}
	return nil
}

func (p Protocol) Codec() frame.Codec {
	return frame.Codec{
		Head:          byte(p.HeadByte),
		Tail:          byte(p.TailByte),
		MaxPayloadLen: p.MaxPayloadLen,
	}
}

func (p Protocol) ResyncOptions(logger zerolog.Logger) resync.Options {
	return resync.Options{
		Codec:            p.Codec(),
		MaxBufferBytes:   p.MaxBufferBytes,
		MaxFramesPerFeed: p.MaxFramesPerFeed,
		Logger:           logger,
	}
}
