package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The services are described by hand over well-known protobuf types, so
// there is no generated code. Request and response shapes are documented on
// each handler interface.

const (
	ReportServiceName       = "electoral.v1.ReportService"
	NotificationServiceName = "electoral.v1.NotificationService"
	ObserverServiceName     = "electoral.v1.ObserverService"
	BatchServiceName        = "electoral.v1.BatchService"
)

// ReportHandler serves report queries.
//
// Requests are lists of strings: the report kind followed by its parameters.
// Failures are returned in-band as wire error sentinels, never as RPC errors.
type ReportHandler interface {
	GetReport(ctx context.Context, req *structpb.ListValue) (*wrapperspb.StringValue, error)
	GetReportArray(ctx context.Context, req *structpb.ListValue) (*structpb.ListValue, error)
}

// NotificationHandler manages observer registrations and vote fan-out.
//
// Register and unregister take a struct {address, electionId}. PublishVote
// takes an encoded vote event and returns how many observers received it.
type NotificationHandler interface {
	RegisterObserver(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	UnregisterObserver(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	PublishVote(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
	ObserverCount(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error)
}

// ObserverHandler is served by remote listeners and called by the hub.
type ObserverHandler interface {
	OnVoteReceived(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error)
	Ping(ctx context.Context, req *emptypb.Empty) (*wrapperspb.BoolValue, error)
}

// BatchHandler starts bulk generation jobs and reports their progress.
//
// SubmitBatch takes a struct {electionId, unitIds?, scope?, code?} and
// answers false when a job is already running.
type BatchHandler interface {
	SubmitBatch(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error)
	GetBatchStatus(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error)
}

var ReportServiceDesc = grpc.ServiceDesc{
	ServiceName: ReportServiceName,
	HandlerType: (*ReportHandler)(nil),
	Methods: []grpc.MethodDesc{
		unary(ReportServiceName, "GetReport", newListValue, func(srv any, ctx context.Context, in *structpb.ListValue) (proto.Message, error) {
			return srv.(ReportHandler).GetReport(ctx, in)
		}),
		unary(ReportServiceName, "GetReportArray", newListValue, func(srv any, ctx context.Context, in *structpb.ListValue) (proto.Message, error) {
			return srv.(ReportHandler).GetReportArray(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{},
}

var NotificationServiceDesc = grpc.ServiceDesc{
	ServiceName: NotificationServiceName,
	HandlerType: (*NotificationHandler)(nil),
	Methods: []grpc.MethodDesc{
		unary(NotificationServiceName, "RegisterObserver", newStruct, func(srv any, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return srv.(NotificationHandler).RegisterObserver(ctx, in)
		}),
		unary(NotificationServiceName, "UnregisterObserver", newStruct, func(srv any, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return srv.(NotificationHandler).UnregisterObserver(ctx, in)
		}),
		unary(NotificationServiceName, "PublishVote", newStringValue, func(srv any, ctx context.Context, in *wrapperspb.StringValue) (proto.Message, error) {
			return srv.(NotificationHandler).PublishVote(ctx, in)
		}),
		unary(NotificationServiceName, "ObserverCount", newInt64Value, func(srv any, ctx context.Context, in *wrapperspb.Int64Value) (proto.Message, error) {
			return srv.(NotificationHandler).ObserverCount(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{},
}

var ObserverServiceDesc = grpc.ServiceDesc{
	ServiceName: ObserverServiceName,
	HandlerType: (*ObserverHandler)(nil),
	Methods: []grpc.MethodDesc{
		unary(ObserverServiceName, "OnVoteReceived", newStringValue, func(srv any, ctx context.Context, in *wrapperspb.StringValue) (proto.Message, error) {
			return srv.(ObserverHandler).OnVoteReceived(ctx, in)
		}),
		unary(ObserverServiceName, "Ping", newEmpty, func(srv any, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return srv.(ObserverHandler).Ping(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{},
}

var BatchServiceDesc = grpc.ServiceDesc{
	ServiceName: BatchServiceName,
	HandlerType: (*BatchHandler)(nil),
	Methods: []grpc.MethodDesc{
		unary(BatchServiceName, "SubmitBatch", newStruct, func(srv any, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return srv.(BatchHandler).SubmitBatch(ctx, in)
		}),
		unary(BatchServiceName, "GetBatchStatus", newEmpty, func(srv any, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return srv.(BatchHandler).GetBatchStatus(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterReportServer registers h on s.
func RegisterReportServer(s grpc.ServiceRegistrar, h ReportHandler) {
	s.RegisterService(&ReportServiceDesc, h)
}

func RegisterNotificationServer(s grpc.ServiceRegistrar, h NotificationHandler) {
	s.RegisterService(&NotificationServiceDesc, h)
}

func RegisterObserverServer(s grpc.ServiceRegistrar, h ObserverHandler) {
	s.RegisterService(&ObserverServiceDesc, h)
}

func RegisterBatchServer(s grpc.ServiceRegistrar, h BatchHandler) {
	s.RegisterService(&BatchServiceDesc, h)
}

func fullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// unary builds the method descriptor of a unary call whose request type is
// Req. It mirrors what protoc-gen-go-grpc emits for each method.
func unary[Req proto.Message](service, method string, newReq func() Req, call func(srv any, ctx context.Context, in Req) (proto.Message, error)) grpc.MethodDesc {
	full := fullMethod(service, method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				out, err := call(srv, ctx, in)
				return out, err
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				out, err := call(srv, ctx, req.(Req))
				return out, err
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func newListValue() *structpb.ListValue       { return new(structpb.ListValue) }
func newStruct() *structpb.Struct             { return new(structpb.Struct) }
func newStringValue() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newInt64Value() *wrapperspb.Int64Value   { return new(wrapperspb.Int64Value) }
func newEmpty() *emptypb.Empty                { return new(emptypb.Empty) }
