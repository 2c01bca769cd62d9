package grpc

import (
	"context"
	"time"

	"electoral-service/internal/core/domain"
	"electoral-service/internal/core/ports"
	"electoral-service/internal/core/proxy"
	"electoral-service/internal/wire"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ReportBackend answers report queries. *proxy.Reports implements it.
type ReportBackend interface {
	Report(ctx context.Context, kind string, params []string) (string, error)
	ReportArray(ctx context.Context, kind string, params []string) ([]string, error)
}

var _ ReportBackend = (*proxy.Reports)(nil)

// ReportServer exposes a ReportBackend over gRPC. It is the only place where
// report errors become wire sentinels.
type ReportServer struct {
	backend ReportBackend
	logger  hclog.Logger
	now     func() time.Time
}

// NewReportServer creates a ReportServer.
func NewReportServer(backend ReportBackend, logger hclog.Logger) *ReportServer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &ReportServer{backend: backend, logger: logger, now: time.Now}
}

// GetReport serves a scalar report.
func (s *ReportServer) GetReport(ctx context.Context, req *structpb.ListValue) (*wrapperspb.StringValue, error) {
	kind, params, err := splitQuery(req)
	if err == nil {
		var v string
		if v, err = s.backend.Report(ctx, kind, params); err == nil {
			return wrapperspb.String(v), nil
		}
	}
	s.logger.Debug("report failed", "kind", kind, "params", params, "error", err)
	return wrapperspb.String(proxy.ErrorSentinel(err, s.now())), nil
}

// GetReportArray serves an array report. A failure is a one-element array
// holding the sentinel.
func (s *ReportServer) GetReportArray(ctx context.Context, req *structpb.ListValue) (*structpb.ListValue, error) {
	kind, params, err := splitQuery(req)
	if err == nil {
		var items []string
		if items, err = s.backend.ReportArray(ctx, kind, params); err == nil {
			return stringList(items), nil
		}
	}
	s.logger.Debug("report array failed", "kind", kind, "params", params, "error", err)
	return stringList([]string{proxy.ErrorSentinel(err, s.now())}), nil
}

func splitQuery(req *structpb.ListValue) (string, []string, error) {
	items := fromStringList(req)
	if len(items) == 0 || items[0] == "" {
		return "", nil, domain.Errorf(domain.KindInvalidArgument, "missing report kind")
	}
	return items[0], items[1:], nil
}

// ReportClient calls a ReportService. Pointed at the upstream report data
// service it is the proxy's ports.ReportService.
type ReportClient struct {
	conn    grpc.ClientConnInterface
	cc      *grpc.ClientConn
	timeout time.Duration
}

var _ ports.ReportService = (*ReportClient)(nil)

// NewReportClient wraps an existing connection.
func NewReportClient(conn grpc.ClientConnInterface) *ReportClient {
	return &ReportClient{conn: conn}
}

// DialReports creates a client for the ReportService at addr. The connection
// is established lazily.
func DialReports(addr string, opts ...grpc.DialOption) (*ReportClient, error) {
	cc, err := dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &ReportClient{conn: cc, cc: cc}, nil
}

// WithTimeout bounds every call made through c and returns c.
func (c *ReportClient) WithTimeout(d time.Duration) *ReportClient {
	c.timeout = d
	return c
}

func (c *ReportClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// FetchScalar implements ports.ReportService. Error sentinels in the response
// are returned as *wire.RemoteError.
func (c *ReportClient) FetchScalar(ctx context.Context, kind domain.ReportKind, params ...string) (string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, fullMethod(ReportServiceName, "GetReport"), query(kind, params), out); err != nil {
		return "", domain.Wrap(domain.KindUpstreamUnavailable, err, string(kind))
	}
	if wire.IsError(out.GetValue()) {
		re, _ := wire.ParseError(out.GetValue())
		return "", re
	}
	return out.GetValue(), nil
}

// FetchArray implements ports.ReportService.
func (c *ReportClient) FetchArray(ctx context.Context, kind domain.ReportKind, params ...string) ([]string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, fullMethod(ReportServiceName, "GetReportArray"), query(kind, params), out); err != nil {
		return nil, domain.Wrap(domain.KindUpstreamUnavailable, err, string(kind))
	}
	items := fromStringList(out)
	if len(items) == 1 && wire.IsError(items[0]) {
		re, _ := wire.ParseError(items[0])
		return nil, re
	}
	return items, nil
}

// Close releases the connection if the client dialled it.
func (c *ReportClient) Close() error {
	if c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func query(kind domain.ReportKind, params []string) *structpb.ListValue {
	return stringList(append([]string{string(kind)}, params...))
}
