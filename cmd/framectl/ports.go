package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seagrayinc/serialproto/internal/hid"
	"github.com/seagrayinc/serialproto/internal/serialport"
)

func newPortsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports and HID devices usable as links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			ports, err := serialport.List()
			if err != nil {
				o.logger.Warn().Err(err).Msg("listing serial ports failed")
			}
			for _, p := range ports {
				fmt.Fprintf(out, "serial %s\n", p)
			}

			devs, err := hid.NewManager(o.logger).List()
			if err != nil {
				o.logger.Warn().Err(err).Msg("listing hid devices failed")
			}
			for _, d := range devs {
				fmt.Fprintf(out, "hid    %04x:%04x %s (%s %s)\n", d.VendorID, d.ProductID, d.Path, d.Manufacturer, d.Product)
			}
			return nil
		},
	}
}
