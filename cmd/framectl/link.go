package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seagrayinc/serialproto/internal/config"
	"github.com/seagrayinc/serialproto/internal/link"
	"github.com/seagrayinc/serialproto/internal/metrics"
	"github.com/seagrayinc/serialproto/pkg/frame"
)

func openLink(ctx context.Context, o *rootOptions, cfg config.Config, observer link.Observer) (*link.Link, error) {
	dev, err := openDevice(ctx, cfg.Link, o.logger)
	if err != nil {
		return nil, err
	}

	opts := link.Options{
		Resync:     cfg.Protocol.ResyncOptions(o.logger),
		ReadSize:   cfg.Link.ReadSize,
		SendBuffer: cfg.Link.SendBuffer,
		Observer:   observer,
		Logger:     o.logger,
	}
	l, err := link.New(dev, opts)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return l, nil
}

func newListenCmd(o *rootOptions) *cobra.Command {
	var (
		metricsAddr string
		echo        bool
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print every payload and stream error received on the configured link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			if metricsAddr == "" {
				metricsAddr = cfg.Metrics.Addr
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, ctx := errgroup.WithContext(ctx)

			recorder := metrics.NewRecorder()
			l, err := openLink(ctx, o, cfg, recorder)
			if err != nil {
				return err
			}
			defer l.Close()
			recorder.Track(l)
			if echo {
				l.StartSender(ctx)
			}

			events, err := l.Poll(ctx)
			if err != nil {
				return err
			}
			o.logger.Info().Str("link", l.ID).Str("kind", cfg.Link.Kind).Msg("listening")

			g.Go(func() error {
				// the source closing ends the whole command
				defer cancel()
				for ev := range events {
					if ev.Err != nil {
						o.logger.Warn().Err(ev.Err).Msg("stream error")
						continue
					}
					o.logger.Info().Int("len", len(ev.Payload)).Str("payload", frame.HexString(ev.Payload)).Msg("payload")
					if echo {
						if err := l.Send(ctx, ev.Payload); err != nil {
							o.logger.Warn().Err(err).Msg("echo failed")
						}
					}
				}
				return nil
			})

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: recorder.Handler(), ReadHeaderTimeout: 5 * time.Second}
				g.Go(func() error {
					o.logger.Info().Str("addr", metricsAddr).Msg("serving metrics")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	cmd.Flags().BoolVar(&echo, "echo", false, "send every received payload back on the link")
	return cmd
}

func newSendCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <hex>...",
		Short: "Send each argument as one framed payload on the configured link",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payloads := make([][]byte, 0, len(args))
			for _, a := range args {
				p, err := frame.ParseHex(a)
				if err != nil {
					return err
				}
				payloads = append(payloads, p)
			}

			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			l, err := openLink(cmd.Context(), o, cfg, nil)
			if err != nil {
				return err
			}
			defer l.Close()

			if err := l.SendNow(payloads...); err != nil {
				return err
			}
			o.logger.Info().Int("frames", len(payloads)).Str("link", l.ID).Msg("sent")
			return nil
		},
	}
}
