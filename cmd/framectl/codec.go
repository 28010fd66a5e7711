package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/seagrayinc/serialproto/pkg/frame"
	"github.com/seagrayinc/serialproto/pkg/resync"
)

func newEncodeCmd(_ *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "encode <hex|->",
		Short: "Frame a payload given as hex, or read raw from stdin with -",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			var err error
			if args[0] == "-" {
				payload, err = io.ReadAll(cmd.InOrStdin())
			} else {
				payload, err = frame.ParseHex(args[0])
			}
			if err != nil {
				return err
			}

			f, err := frame.Encode(payload)
			if err != nil {
				return err
			}
			if raw {
				_, err = cmd.OutOrStdout().Write(f)
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), frame.HexString(f))
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "write the frame bytes instead of hex")
	return cmd
}

func newDecodeCmd(_ *rootOptions) *cobra.Command {
	var stream bool

	cmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Validate one frame, or extract every frame from a captured stream with --stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := frame.ParseHex(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !stream {
				payload, err := frame.Decode(b)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, frame.HexString(payload))
				return err
			}

			rs, err := resync.New(resync.DefaultOptions())
			if err != nil {
				return err
			}
			results := append(rs.Feed(b), rs.Flush()...)

			var failed int
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "error   %v\n", r.Err)
					continue
				}
				fmt.Fprintf(out, "payload %s\n", frame.HexString(r.Payload))
			}
			if rest := rs.Buffered(); rest > 0 {
				fmt.Fprintf(out, "partial %d bytes\n", rest)
			}
			if failed > 0 {
				return errors.New("stream contained invalid frames")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "resynchronize over arbitrary bytes instead of decoding one frame")
	return cmd
}
