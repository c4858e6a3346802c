package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	natsadapter "github.com/samirrijal/brooks/internal/adapters/nats"
	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/core/usecases"
	"github.com/samirrijal/brooks/internal/pkg/config"
)

var bboxCmd = &cobra.Command{
	Use:   "bbox",
	Short: "Print the query box the session would request around a point",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		delta, _ := cmd.Flags().GetFloat64("delta")

		c := domain.Coordinates{Lat: lat, Lng: lng}
		if err := c.Validate(); err != nil {
			return err
		}
		if delta <= 0 {
			return fmt.Errorf("delta must be positive, got %v", delta)
		}
		fmt.Fprintln(cmd.OutOrStdout(), usecases.BoxFor(c, delta).String())
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail session events from NATS as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load("brooks-events")
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.NATS.URL == "" {
			return fmt.Errorf("nats.url is not configured")
		}

		kind, _ := cmd.Flags().GetString("type")
		window, _ := cmd.Flags().GetDuration("since")
		var since time.Time
		if window > 0 {
			since = time.Now().Add(-window)
		}

		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		enc := json.NewEncoder(cmd.OutOrStdout())
		err = sub.SubscribeSessionEvents(ctx, domain.SessionEventType(kind), since, func(ctx context.Context, ev *domain.SessionEvent) error {
			return enc.Encode(ev)
		})
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}

		<-ctx.Done()
		return nil
	},
}

func init() {
	bboxCmd.Flags().Float64("lat", 0, "center latitude")
	bboxCmd.Flags().Float64("lng", 0, "center longitude")
	bboxCmd.Flags().Float64("delta", domain.DefaultBBoxDelta, "half-width of the box in degrees")
	_ = bboxCmd.MarkFlagRequired("lat")
	_ = bboxCmd.MarkFlagRequired("lng")

	eventsCmd.Flags().String("type", "", "only this event type, e.g. pin_created")
	eventsCmd.Flags().Duration("since", 0, "replay stored events from this far back")
}
