package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"electoral-service/internal/core/domain"
	grpcapi "electoral-service/internal/grpc"

	"github.com/spf13/cobra"
)

func newObserveCmd(e *env) *cobra.Command {
	var (
		hubAddr    string
		listenAddr string
		advertise  string
		electionID int
	)
	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Register with the hub and log vote events as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := e.logger.Named("observe")
			if hubAddr == "" {
				hubAddr = "localhost" + e.cfg.Hub.Listen
			}

			lis, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", listenAddr, err)
			}
			if advertise == "" {
				advertise = lis.Addr().String()
			}

			srv := grpcapi.NewServer(e.logger.Named("grpc"))
			grpcapi.RegisterObserverServer(srv, grpcapi.NewListener(func(ev domain.VoteEvent) {
				logger.Info("vote received", "candidate", ev.CandidateLabel, "election", ev.ElectionID,
					"at", time.UnixMilli(ev.TimestampMillis).UTC().Format(time.RFC3339Nano))
			}, logger))
			go func() {
				if err := srv.Serve(lis); err != nil {
					logger.Error("listener stopped", "error", err)
				}
			}()
			defer srv.Stop()

			client, err := grpcapi.DialNotifications(hubAddr)
			if err != nil {
				return fmt.Errorf("dialling hub %s: %w", hubAddr, err)
			}
			defer client.Close()

			election := domain.ElectionID(electionID)
			if err := client.Register(ctx, advertise, election); err != nil {
				return fmt.Errorf("registering with hub: %w", err)
			}
			logger.Info("registered", "hub", hubAddr, "advertise", advertise, "election", election)

			<-ctx.Done()

			uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Unregister(uctx, advertise, election); err != nil {
				logger.Warn("unregister failed", "error", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&hubAddr, "hub", "", "Hub address (defaults to the configured hub listen port on localhost)")
	cmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:0", "Address to receive vote events on")
	cmd.Flags().StringVar(&advertise, "advertise", "", "Address the hub should dial (defaults to the listen address)")
	cmd.Flags().IntVar(&electionID, "election", 1, "Election to follow")
	return cmd
}
