package main

import (
	"fmt"

	"electoral-service/internal/core/proxy"
	grpcapi "electoral-service/internal/grpc"
	"electoral-service/internal/store"

	"github.com/spf13/cobra"
)

func newProxyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "proxy",
		Short: "Serve report queries through the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := e.cfg.Proxy
			logger := e.logger.Named("proxy")

			upstream, err := grpcapi.DialReports(cfg.Upstream)
			if err != nil {
				return fmt.Errorf("dialling upstream %s: %w", cfg.Upstream, err)
			}
			defer upstream.Close()
			upstream.WithTimeout(cfg.FetchTimeoutDuration())

			var storeOpts []store.Option
			if cfg.MaxEntries > 0 {
				storeOpts = append(storeOpts, store.WithCapacity(cfg.MaxEntries), store.WithPolicyName(cfg.Policy))
			}
			cache := proxy.New(
				proxy.WithLogger(logger),
				proxy.WithCoalescing(cfg.Coalesce),
				proxy.WithStoreOptions(storeOpts...),
			)
			if retention := cfg.StaleRetentionDuration(); retention > 0 {
				cache.StartCleanup(ctx, cleanupInterval(retention), retention)
			}

			reports := proxy.NewReports(cache, upstream, proxy.TTLs{
				Election:  cfg.ElectionTTLDuration(),
				Reference: cfg.ReferenceTTLDuration(),
			}, logger)

			srv := grpcapi.NewServer(e.logger.Named("grpc"))
			grpcapi.RegisterReportServer(srv, grpcapi.NewReportServer(reports, logger))

			logger.Info("proxy starting", "upstream", cfg.Upstream, "election_ttl", cfg.ElectionTTLDuration(),
				"reference_ttl", cfg.ReferenceTTLDuration(), "max_entries", cfg.MaxEntries, "coalesce", cfg.Coalesce)
			return serve(ctx, logger, srv, cfg.Listen, cfg.MetricsAddr, func() any {
				return map[string]any{"status": "ok", "cache": cache.Stats()}
			})
		},
	}
}
