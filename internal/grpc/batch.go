package grpc

import (
	"context"
	"errors"

	"electoral-service/internal/core/batch"
	"electoral-service/internal/core/domain"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// BatchServer exposes a batch.Orchestrator over gRPC.
type BatchServer struct {
	orch   *batch.Orchestrator
	logger hclog.Logger
}

var _ BatchHandler = (*BatchServer)(nil)

func NewBatchServer(o *batch.Orchestrator, logger hclog.Logger) *BatchServer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &BatchServer{orch: o, logger: logger}
}

// SubmitBatch starts a job. With unitIds it covers that list, with scope and
// code the units of one geographic node, otherwise every unit of the
// election. A running job yields false rather than an error.
func (s *BatchServer) SubmitBatch(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	e, err := electionField(req)
	if err != nil {
		return nil, toStatus(err)
	}

	var job *batch.Job
	ids, hasIDs, err := intListField(req, "unitIds")
	if err != nil {
		return nil, toStatus(err)
	}
	switch scope, hasScope := stringField(req, "scope"); {
	case hasIDs:
		job, err = s.orch.SubmitList(ctx, e, ids)
	case hasScope:
		lt, perr := domain.ParseLocationType(scope)
		if perr != nil {
			return nil, toStatus(perr)
		}
		code, _ := stringField(req, "code")
		job, err = s.orch.SubmitScope(ctx, e, domain.Scope{Type: lt, Code: code})
	default:
		job, err = s.orch.SubmitAll(ctx, e)
	}

	if errors.Is(err, domain.ErrAlreadyRunning) {
		return wrapperspb.Bool(false), nil
	}
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("batch accepted", "job", job.ID, "election", e, "units", job.Total)
	return wrapperspb.Bool(true), nil
}

// GetBatchStatus returns "completed/total (percent%)".
func (s *BatchServer) GetBatchStatus(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.orch.Status().String()), nil
}

// BatchClient calls a BatchService.
type BatchClient struct {
	conn grpc.ClientConnInterface
	cc   *grpc.ClientConn
}

func NewBatchClient(conn grpc.ClientConnInterface) *BatchClient {
	return &BatchClient{conn: conn}
}

// DialBatch creates a client for the BatchService at addr.
func DialBatch(addr string, opts ...grpc.DialOption) (*BatchClient, error) {
	cc, err := dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &BatchClient{conn: cc, cc: cc}, nil
}

func (c *BatchClient) Close() error {
	if c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// SubmitUnits submits an explicit unit list.
func (c *BatchClient) SubmitUnits(ctx context.Context, e domain.ElectionID, unitIDs []int) (bool, error) {
	values := make([]*structpb.Value, len(unitIDs))
	for i, id := range unitIDs {
		values[i] = structpb.NewNumberValue(float64(id))
	}
	return c.submit(ctx, map[string]*structpb.Value{
		"electionId": structpb.NewNumberValue(float64(e)),
		"unitIds":    structpb.NewListValue(&structpb.ListValue{Values: values}),
	})
}

// SubmitScope submits every unit under one geographic node.
func (c *BatchClient) SubmitScope(ctx context.Context, e domain.ElectionID, scope domain.Scope) (bool, error) {
	return c.submit(ctx, map[string]*structpb.Value{
		"electionId": structpb.NewNumberValue(float64(e)),
		"scope":      structpb.NewStringValue(scope.Type.String()),
		"code":       structpb.NewStringValue(scope.Code),
	})
}

// SubmitAll submits every unit of the election.
func (c *BatchClient) SubmitAll(ctx context.Context, e domain.ElectionID) (bool, error) {
	return c.submit(ctx, map[string]*structpb.Value{
		"electionId": structpb.NewNumberValue(float64(e)),
	})
}

func (c *BatchClient) Status(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, fullMethod(BatchServiceName, "GetBatchStatus"), new(emptypb.Empty), out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *BatchClient) submit(ctx context.Context, fields map[string]*structpb.Value) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.conn.Invoke(ctx, fullMethod(BatchServiceName, "SubmitBatch"), &structpb.Struct{Fields: fields}, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}
