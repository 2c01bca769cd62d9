// Package generator builds per-unit configuration artifacts and lists voting
// units, both from the report data service.
package generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"electoral-service/internal/core/domain"
	"electoral-service/internal/core/ports"
	"electoral-service/internal/wire"
)

// Generator implements ports.ConfigurationGenerator over the mesa-config
// report.
type Generator struct {
	reports ports.ReportService
	now     func() time.Time
}

var _ ports.ConfigurationGenerator = (*Generator)(nil)

func New(reports ports.ReportService) *Generator {
	return &Generator{reports: reports, now: time.Now}
}

// Generate fetches and decodes the configuration of one unit.
func (g *Generator) Generate(ctx context.Context, unitID int, electionID domain.ElectionID) (domain.Artifact, error) {
	raw, err := g.reports.FetchScalar(ctx, domain.ReportMesaConfig, strconv.Itoa(unitID), strconv.Itoa(int(electionID)))
	if err != nil {
		return domain.Artifact{}, err
	}
	sc, err := wire.DecodeScalar(raw)
	if err != nil {
		return domain.Artifact{}, domain.Wrap(domain.KindUnitGenerationFailed, err, fmt.Sprintf("decoding mesa %d", unitID))
	}
	if len(sc.Records) == 0 {
		return domain.Artifact{}, domain.Errorf(domain.KindNotFound, "mesa %d has no configuration for election %d", unitID, electionID)
	}
	return domain.Artifact{
		UnitID:          unitID,
		ElectionID:      electionID,
		Records:         sc.Records,
		PackageVersion:  sc.PackageVersion,
		SourceTimestamp: sc.Timestamp,
		GeneratedAt:     g.now().UTC(),
	}, nil
}

// Directory implements ports.UnitSource over the unit-ids report.
type Directory struct {
	reports ports.ReportService
}

var _ ports.UnitSource = (*Directory)(nil)

func NewDirectory(reports ports.ReportService) *Directory {
	return &Directory{reports: reports}
}

func (d *Directory) AllUnits(ctx context.Context, electionID domain.ElectionID) ([]int, error) {
	items, err := d.reports.FetchArray(ctx, domain.ReportUnitIDs, strconv.Itoa(int(electionID)))
	if err != nil {
		return nil, err
	}
	return parseUnitIDs(items)
}

func (d *Directory) UnitsInScope(ctx context.Context, electionID domain.ElectionID, scope domain.Scope) ([]int, error) {
	items, err := d.reports.FetchArray(ctx, domain.ReportUnitIDs, strconv.Itoa(int(electionID)), scope.Type.String(), scope.Code)
	if err != nil {
		return nil, err
	}
	return parseUnitIDs(items)
}

// parseUnitIDs reads the leading field of each element. Elements may carry
// more fields or a version trailer after it.
func parseUnitIDs(items []string) ([]int, error) {
	ids := make([]int, 0, len(items))
	for _, item := range items {
		records, err := wire.DecodeRecords(item)
		if err != nil {
			return nil, err
		}
		first := strings.TrimSpace(records[0][0])
		id, err := strconv.Atoi(first)
		if err != nil {
			return nil, domain.Errorf(domain.KindInvalidArgument, "bad unit id %q", first)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
