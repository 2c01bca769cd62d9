package grpc

import (
	"context"
	"time"

	"electoral-service/internal/core/domain"
	"electoral-service/internal/core/hub"
	"electoral-service/internal/core/ports"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ObserverDialer turns a registered address into an observer handle.
type ObserverDialer func(addr string) (ports.Observer, error)

// DefaultObserverDialer dials listeners over plaintext gRPC.
func DefaultObserverDialer(opts ...grpc.DialOption) ObserverDialer {
	return func(addr string) (ports.Observer, error) {
		return DialObserver(addr, opts...)
	}
}

// NotificationServer exposes a hub.Hub over gRPC.
type NotificationServer struct {
	hub    *hub.Hub
	dial   ObserverDialer
	logger hclog.Logger
	now    func() time.Time
}

var _ NotificationHandler = (*NotificationServer)(nil)

// NewNotificationServer creates a NotificationServer. A nil dial uses
// DefaultObserverDialer.
func NewNotificationServer(h *hub.Hub, dial ObserverDialer, logger hclog.Logger) *NotificationServer {
	if dial == nil {
		dial = DefaultObserverDialer()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &NotificationServer{hub: h, dial: dial, logger: logger, now: time.Now}
}

func (s *NotificationServer) RegisterObserver(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	addr, e, err := registration(req)
	if err != nil {
		return nil, toStatus(err)
	}
	o, err := s.dial(addr)
	if err != nil {
		return nil, toStatus(err)
	}
	s.hub.Register(o, e)
	return &emptypb.Empty{}, nil
}

// UnregisterObserver removes the first registration of the address. An
// unknown address is not an error.
func (s *NotificationServer) UnregisterObserver(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	addr, e, err := registration(req)
	if err != nil {
		return nil, toStatus(err)
	}
	s.hub.Unregister(addr, e)
	return &emptypb.Empty{}, nil
}

// PublishVote broadcasts an encoded vote event and returns how many
// observers received it.
func (s *NotificationServer) PublishVote(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	ev, err := domain.ParseVoteEvent(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	res := s.hub.Broadcast(ctx, ev)
	return wrapperspb.Int64(int64(res.Delivered)), nil
}

func (s *NotificationServer) ObserverCount(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error) {
	return wrapperspb.Int64(int64(s.hub.ObserverCount(domain.ElectionID(req.GetValue())))), nil
}

func registration(req *structpb.Struct) (string, domain.ElectionID, error) {
	addr, ok := stringField(req, "address")
	if !ok || addr == "" {
		return "", 0, domain.Errorf(domain.KindInvalidArgument, "address is required")
	}
	e, err := electionField(req)
	if err != nil {
		return "", 0, err
	}
	return addr, e, nil
}

// NotificationClient calls a NotificationService.
type NotificationClient struct {
	conn grpc.ClientConnInterface
	cc   *grpc.ClientConn
}

func NewNotificationClient(conn grpc.ClientConnInterface) *NotificationClient {
	return &NotificationClient{conn: conn}
}

// DialNotifications creates a client for the NotificationService at addr.
func DialNotifications(addr string, opts ...grpc.DialOption) (*NotificationClient, error) {
	cc, err := dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &NotificationClient{conn: cc, cc: cc}, nil
}

// Register asks the hub to push events of the election to listenAddr.
func (c *NotificationClient) Register(ctx context.Context, listenAddr string, e domain.ElectionID) error {
	return c.conn.Invoke(ctx, fullMethod(NotificationServiceName, "RegisterObserver"), registrationStruct(listenAddr, e), new(emptypb.Empty))
}

func (c *NotificationClient) Unregister(ctx context.Context, listenAddr string, e domain.ElectionID) error {
	return c.conn.Invoke(ctx, fullMethod(NotificationServiceName, "UnregisterObserver"), registrationStruct(listenAddr, e), new(emptypb.Empty))
}

// Publish broadcasts ev and returns the number of observers reached.
func (c *NotificationClient) Publish(ctx context.Context, ev domain.VoteEvent) (int, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.conn.Invoke(ctx, fullMethod(NotificationServiceName, "PublishVote"), wrapperspb.String(ev.String()), out); err != nil {
		return 0, err
	}
	return int(out.GetValue()), nil
}

func (c *NotificationClient) ObserverCount(ctx context.Context, e domain.ElectionID) (int, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.conn.Invoke(ctx, fullMethod(NotificationServiceName, "ObserverCount"), wrapperspb.Int64(int64(e)), out); err != nil {
		return 0, err
	}
	return int(out.GetValue()), nil
}

func (c *NotificationClient) Close() error {
	if c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func registrationStruct(addr string, e domain.ElectionID) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"address":    structpb.NewStringValue(addr),
		"electionId": structpb.NewNumberValue(float64(e)),
	}}
}
