package grpc

import (
	"context"

	"electoral-service/internal/core/domain"
	"electoral-service/internal/core/ports"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ObserverClient is the hub's handle on one remote listener. Each handle owns
// its connection; Close releases it.
type ObserverClient struct {
	addr string
	conn *grpc.ClientConn
}

var _ ports.Observer = (*ObserverClient)(nil)

// DialObserver creates a handle for the listener at addr.
func DialObserver(addr string, opts ...grpc.DialOption) (*ObserverClient, error) {
	cc, err := dial(addr, opts...)
	if err != nil {
		return nil, domain.Wrap(domain.KindObserverUnreachable, err, addr)
	}
	return &ObserverClient{addr: addr, conn: cc}, nil
}

// ID returns the address the handle was dialled with.
func (c *ObserverClient) ID() string { return c.addr }

func (c *ObserverClient) OnVoteReceived(ctx context.Context, event string) error {
	err := c.conn.Invoke(ctx, fullMethod(ObserverServiceName, "OnVoteReceived"), wrapperspb.String(event), new(emptypb.Empty))
	return domain.Wrap(domain.KindObserverUnreachable, err, c.addr)
}

func (c *ObserverClient) Ping(ctx context.Context) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.conn.Invoke(ctx, fullMethod(ObserverServiceName, "Ping"), new(emptypb.Empty), out); err != nil {
		return false, domain.Wrap(domain.KindObserverUnreachable, err, c.addr)
	}
	return out.GetValue(), nil
}

func (c *ObserverClient) Close() error {
	return c.conn.Close()
}

// Listener is the server side of ObserverService: it decodes each pushed
// vote event and hands it to a callback.
type Listener struct {
	onVote func(domain.VoteEvent)
	logger hclog.Logger
}

var _ ObserverHandler = (*Listener)(nil)

// NewListener creates a Listener calling onVote for every received event.
func NewListener(onVote func(domain.VoteEvent), logger hclog.Logger) *Listener {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Listener{onVote: onVote, logger: logger}
}

func (l *Listener) OnVoteReceived(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	ev, err := domain.ParseVoteEvent(req.GetValue())
	if err != nil {
		l.logger.Warn("malformed vote event", "event", req.GetValue(), "error", err)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	l.onVote(ev)
	return &emptypb.Empty{}, nil
}

func (l *Listener) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(true), nil
}
