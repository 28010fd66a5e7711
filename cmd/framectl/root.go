package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seagrayinc/serialproto/internal/config"
	"github.com/seagrayinc/serialproto/internal/hid"
	"github.com/seagrayinc/serialproto/internal/logging"
	"github.com/seagrayinc/serialproto/internal/serialport"
	"github.com/seagrayinc/serialproto/internal/usblink"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logger     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "framectl",
		Short:         "Encode, decode and exchange 0xAA/0xBB framed payloads",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.logger = logging.Configure(logging.Config{
				Level: opts.logLevel,
				Out:   cmd.ErrOrStderr(),
			})
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "link configuration file (.yaml or .toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newEncodeCmd(opts),
		newDecodeCmd(opts),
		newListenCmd(opts),
		newSendCmd(opts),
		newPortsCmd(opts),
	)
	return cmd
}

// loadConfig reads --config and re-applies the log level it names unless
// --log-level was given explicitly.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	if o.configPath == "" {
		return config.Config{}, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if !cmd.Flags().Changed("log-level") {
		o.logger = logging.Configure(logging.Config{
			Level:   cfg.Log.Level,
			NoColor: cfg.Log.NoColor,
			Out:     cmd.ErrOrStderr(),
		})
	}
	return cfg, nil
}

func openDevice(ctx context.Context, cfg config.Link, logger zerolog.Logger) (io.ReadWriteCloser, error) {
	switch cfg.Kind {
	case config.LinkSerial:
		return serialport.Open(serialport.Config{
			Device:      cfg.Device,
			BaudRate:    cfg.BaudRate,
			ReadTimeout: cfg.ReadTimeout,
		})
	case config.LinkHID:
		m := hid.NewManager(logger)
		var (
			dev hid.Device
			err error
		)
		if cfg.Device != "" {
			dev, err = m.Open(hid.Info{Path: cfg.Device})
		} else {
			dev, err = m.OpenVIDPID(uint16(cfg.VendorID), uint16(cfg.ProductID))
		}
		if err != nil {
			return nil, err
		}
		return hid.NewStream(ctx, dev), nil
	case config.LinkUSB:
		if !usblink.Supported() {
			return nil, fmt.Errorf("usb backend not supported on this platform")
		}
		dev, err := usblink.Open(uint16(cfg.VendorID), uint16(cfg.ProductID))
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("path", dev.Path()).Msg("opened usb device")
		return dev, nil
	default:
		return nil, fmt.Errorf("link kind %q not supported", cfg.Kind)
	}
}
