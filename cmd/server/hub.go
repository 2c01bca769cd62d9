package main

import (
	"electoral-service/internal/core/hub"
	grpcapi "electoral-service/internal/grpc"

	"github.com/spf13/cobra"
)

func newHubCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "hub",
		Short: "Run the vote notification hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := e.cfg.Hub
			logger := e.logger.Named("hub")

			h := hub.New(
				hub.WithLogger(logger),
				hub.WithSweepInterval(cfg.SweepIntervalDuration()),
				hub.WithDeliveryTimeout(cfg.DeliveryTimeoutDuration()),
			)
			h.Start(ctx)
			defer h.Close()

			srv := grpcapi.NewServer(e.logger.Named("grpc"))
			grpcapi.RegisterNotificationServer(srv, grpcapi.NewNotificationServer(h, grpcapi.DefaultObserverDialer(), logger))

			return serve(ctx, logger, srv, cfg.Listen, cfg.MetricsAddr, func() any {
				return map[string]any{"status": "ok"}
			})
		},
	}
}
