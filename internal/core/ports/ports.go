package ports

import (
	"context"

	"electoral-service/internal/core/domain"
)

// ReportService is the upstream report data service.
type ReportService interface {
	FetchScalar(ctx context.Context, kind domain.ReportKind, params ...string) (string, error)
	FetchArray(ctx context.Context, kind domain.ReportKind, params ...string) ([]string, error)
}

// Observer is a remote listener registered with the notification hub.
type Observer interface {
	// ID identifies the remote end, usually its address.
	ID() string
	OnVoteReceived(ctx context.Context, event string) error
	Ping(ctx context.Context) (bool, error)
}

// ConfigurationGenerator builds the configuration artifact of one unit.
type ConfigurationGenerator interface {
	Generate(ctx context.Context, unitID int, electionID domain.ElectionID) (domain.Artifact, error)
}

// ArtifactSink stores generated artifacts.
type ArtifactSink interface {
	Persist(ctx context.Context, unitID int, artifact domain.Artifact) error
}

// UnitSource lists the voting units a bulk generation should cover.
type UnitSource interface {
	AllUnits(ctx context.Context, electionID domain.ElectionID) ([]int, error)
	UnitsInScope(ctx context.Context, electionID domain.ElectionID, scope domain.Scope) ([]int, error)
}
