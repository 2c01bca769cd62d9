package main

import (
	"fmt"

	"electoral-service/internal/core/batch"
	"electoral-service/internal/generator"
	grpcapi "electoral-service/internal/grpc"
	"electoral-service/internal/sink"

	"github.com/spf13/cobra"
)

func newOrchestratorCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "orchestrator",
		Short: "Run bulk generation of per-mesa configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := e.cfg.Orchestrator
			logger := e.logger.Named("batch")

			upstream, err := grpcapi.DialReports(cfg.Upstream)
			if err != nil {
				return fmt.Errorf("dialling upstream %s: %w", cfg.Upstream, err)
			}
			defer upstream.Close()
			upstream.WithTimeout(e.cfg.Proxy.FetchTimeoutDuration())

			artifacts, err := sink.Open(cfg.Sink.LevelDB, cfg.Sink.ExportDir, logger.Named("sink"))
			if err != nil {
				return err
			}
			defer artifacts.Close()

			orch := batch.New(generator.New(upstream), artifacts,
				batch.WithChunkSize(cfg.ChunkSize),
				batch.WithWorkers(cfg.Workers),
				batch.WithProgressEvery(cfg.ProgressEvery),
				batch.WithUnitSource(generator.NewDirectory(upstream)),
				batch.WithLogger(logger),
			)

			srv := grpcapi.NewServer(e.logger.Named("grpc"))
			grpcapi.RegisterBatchServer(srv, grpcapi.NewBatchServer(orch, logger))

			err = serve(ctx, logger, srv, cfg.Listen, cfg.MetricsAddr, func() any {
				h := map[string]any{"status": "ok", "running": orch.Running(), "progress": orch.Status().String()}
				if last, ok := orch.LastSummary(); ok {
					h["last_job"] = map[string]any{
						"id":        last.JobID,
						"processed": last.Processed,
						"failed":    last.Failed,
						"elapsed":   last.Elapsed.String(),
					}
				}
				return h
			})
			if job := orch.Current(); job != nil {
				// Jobs cannot be cancelled; the sink stays open until the running one ends.
				logger.Warn("waiting for the running batch job before closing the sink", "job", job.ID, "progress", orch.Status().String())
				job.Wait()
			}
			return err
		},
	}
}
