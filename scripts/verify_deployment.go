package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"electoral-service/internal/core/domain"
	grpcapi "electoral-service/internal/grpc"

	"github.com/hashicorp/go-hclog"
)

// Checks a running deployment: the proxy answers and caches, the hub accepts
// queries and the orchestrator reports its status.
func main() {
	var (
		proxyAddr    = flag.String("proxy", "localhost:50051", "Cache proxy gRPC address")
		hubAddr      = flag.String("hub", "localhost:50052", "Notification hub gRPC address")
		orchAddr     = flag.String("orchestrator", "localhost:50053", "Batch orchestrator gRPC address")
		metricsURL   = flag.String("metrics", "http://localhost:9090", "Base URL of the proxy's metrics endpoint")
		electionID   = flag.Int("election", 1, "Election to query")
		checkTimeout = flag.Duration("timeout", 5*time.Second, "Timeout per check")
	)
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{Name: "verify", Level: hclog.Info})
	e := domain.ElectionID(*electionID)

	fail := func(step string, err error) {
		logger.Error("check failed", "step", step, "error", err)
		os.Exit(1)
	}

	if err := checkHealth(*metricsURL + "/health"); err != nil {
		fail("health", err)
	}
	logger.Info("health endpoint verified")

	reports, err := grpcapi.DialReports(*proxyAddr)
	if err != nil {
		fail("dial proxy", err)
	}
	defer reports.Close()
	reports.WithTimeout(*checkTimeout)

	ctx := context.Background()
	first, err := reports.FetchScalar(ctx, domain.ReportElectionSummary, strconv.Itoa(*electionID))
	if err != nil {
		fail("election summary", err)
	}
	second, err := reports.FetchScalar(ctx, domain.ReportElectionSummary, strconv.Itoa(*electionID))
	if err != nil {
		fail("election summary (cached)", err)
	}
	if first != second {
		fail("election summary (cached)", fmt.Errorf("cached answer differs: %q vs %q", first, second))
	}
	logger.Info("proxy verified", "summary_bytes", len(first))

	sample, err := metricValue(*metricsURL+"/metrics", "proxy_cache_requests_total")
	if err != nil {
		fail("metrics", err)
	}
	logger.Info("metrics verified", "sample", sample)

	notifications, err := grpcapi.DialNotifications(*hubAddr)
	if err != nil {
		fail("dial hub", err)
	}
	defer notifications.Close()
	hctx, cancel := context.WithTimeout(ctx, *checkTimeout)
	defer cancel()
	n, err := notifications.ObserverCount(hctx, e)
	if err != nil {
		fail("observer count", err)
	}
	logger.Info("hub verified", "observers", n)

	batches, err := grpcapi.DialBatch(*orchAddr)
	if err != nil {
		fail("dial orchestrator", err)
	}
	defer batches.Close()
	bctx, bcancel := context.WithTimeout(ctx, *checkTimeout)
	defer bcancel()
	status, err := batches.Status(bctx)
	if err != nil {
		fail("batch status", err)
	}
	logger.Info("orchestrator verified", "status", status)
}

func checkHealth(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status code %d", resp.StatusCode)
	}
	return nil
}

// metricValue returns the first sample line of the named metric family.
func metricValue(url, name string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status code %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(b), "\n") {
		if strings.HasPrefix(line, name) {
			return strings.TrimSpace(strings.TrimPrefix(line, name)), nil
		}
	}
	return "", fmt.Errorf("metric %s not exported", name)
}
