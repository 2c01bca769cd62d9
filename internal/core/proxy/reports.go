package proxy

import (
	"context"
	"errors"
	"time"

	"electoral-service/internal/core/domain"
	"electoral-service/internal/core/ports"
	"electoral-service/internal/observability"
	"electoral-service/internal/store"
	"electoral-service/internal/wire"

	"github.com/hashicorp/go-hclog"
)

// TTLs holds the expiry of each cache class.
type TTLs struct {
	Election  time.Duration
	Reference time.Duration
}

// DefaultTTLs are used when a class is left at zero.
var DefaultTTLs = TTLs{
	Election:  5 * time.Minute,
	Reference: time.Hour,
}

// Reports serves report kinds through the cache according to each kind's
// policy. Eligibility and readiness checks always go to the upstream.
type Reports struct {
	cache    *CacheProxy
	upstream ports.ReportService
	ttls     TTLs
	logger   hclog.Logger
}

// NewReports wires a cache to an upstream report service.
func NewReports(cache *CacheProxy, upstream ports.ReportService, ttls TTLs, logger hclog.Logger) *Reports {
	if ttls.Election <= 0 {
		ttls.Election = DefaultTTLs.Election
	}
	if ttls.Reference <= 0 {
		ttls.Reference = DefaultTTLs.Reference
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Reports{cache: cache, upstream: upstream, ttls: ttls, logger: logger}
}

// Cache exposes the underlying cache for invalidation and stats.
func (r *Reports) Cache() *CacheProxy { return r.cache }

// Report serves a scalar report kind.
func (r *Reports) Report(ctx context.Context, kind string, params []string) (string, error) {
	pol, params, err := r.resolve(kind, params, domain.ShapeScalar)
	if err != nil {
		return "", err
	}
	fetch := func(ctx context.Context) (string, error) {
		defer r.timer(pol.Kind)()
		s, err := r.upstream.FetchScalar(ctx, pol.Kind, params...)
		if err != nil {
			return "", upstreamError(pol.Kind, err)
		}
		if wire.IsError(s) {
			re, _ := wire.ParseError(s)
			return "", re
		}
		return s, nil
	}

	if pol.Class == domain.Uncached {
		v, err := callFetcher(ctx, Fetcher[string](fetch))
		r.countUncached(pol.Kind, err)
		return v, err
	}
	v, _, err := r.cache.Scalar(ctx, store.NewKey(string(pol.Kind), params...), r.ttl(pol.Class), fetch)
	return v, err
}

// ReportArray serves an array report kind.
func (r *Reports) ReportArray(ctx context.Context, kind string, params []string) ([]string, error) {
	pol, params, err := r.resolve(kind, params, domain.ShapeArray)
	if err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context) ([]string, error) {
		defer r.timer(pol.Kind)()
		items, err := r.upstream.FetchArray(ctx, pol.Kind, params...)
		if err != nil {
			return nil, upstreamError(pol.Kind, err)
		}
		if len(items) == 1 && wire.IsError(items[0]) {
			re, _ := wire.ParseError(items[0])
			return nil, re
		}
		return items, nil
	}

	if pol.Class == domain.Uncached {
		v, err := callFetcher(ctx, Fetcher[[]string](fetch))
		r.countUncached(pol.Kind, err)
		return v, err
	}
	v, _, err := r.cache.Array(ctx, store.NewKey(string(pol.Kind), params...), r.ttl(pol.Class), fetch)
	return v, err
}

// resolve validates kind, shape and parameters and normalises the location
// type of geographic summaries so equivalent spellings share a cache key.
func (r *Reports) resolve(kind string, params []string, want domain.Shape) (domain.ReportPolicy, []string, error) {
	pol, err := domain.PolicyFor(kind)
	if err != nil {
		return pol, nil, err
	}
	if pol.Shape != want {
		return pol, nil, domain.Errorf(domain.KindInvalidArgument, "%s is a %s report", kind, pol.Shape)
	}
	if len(params) < pol.MinParams {
		return pol, nil, domain.Errorf(domain.KindInvalidArgument, "%s needs %d parameters, got %d", kind, pol.MinParams, len(params))
	}
	if pol.Kind == domain.ReportGeoSummary {
		lt, err := domain.ParseLocationType(params[0])
		if err != nil {
			return pol, nil, err
		}
		params = append([]string{lt.String()}, params[1:]...)
	}
	return pol, params, nil
}

func (r *Reports) ttl(c domain.CacheClass) time.Duration {
	if c == domain.ReferenceData {
		return r.ttls.Reference
	}
	return r.ttls.Election
}

func (r *Reports) timer(kind domain.ReportKind) func() {
	start := time.Now()
	return func() {
		observability.UpstreamDurationSeconds.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}
}

func (r *Reports) countUncached(kind domain.ReportKind, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		r.logger.Warn("uncached report failed", "kind", kind, "error", err)
	}
	observability.UncachedRequestsTotal.WithLabelValues(string(kind), status).Inc()
}

func upstreamError(kind domain.ReportKind, err error) error {
	var de *domain.Error
	var re *wire.RemoteError
	if errors.As(err, &de) || errors.As(err, &re) {
		return err
	}
	return domain.Wrap(domain.KindUpstreamUnavailable, err, string(kind))
}
