package domain

// ReportKind names an operation on the report data service.
type ReportKind string

const (
	ReportCitizen         ReportKind = "citizen"
	ReportSearch          ReportKind = "search"
	ReportElectionSummary ReportKind = "election-summary"
	ReportGeoSummary      ReportKind = "geo-summary"
	ReportElectionList    ReportKind = "election-list"
	ReportEligibility     ReportKind = "eligibility"
	ReportReportsReady    ReportKind = "reports-ready"
	ReportMesaConfig      ReportKind = "mesa-config"
	ReportUnitIDs         ReportKind = "unit-ids"
)

// Shape is the payload shape of a report kind.
type Shape int

const (
	ShapeScalar Shape = iota + 1
	ShapeArray
)

func (s Shape) String() string {
	if s == ShapeArray {
		return "array"
	}
	return "scalar"
}

// CacheClass selects the TTL applied to a report kind.
type CacheClass int

const (
	// Uncached kinds always reach the upstream.
	Uncached CacheClass = iota
	// ElectionData changes often and uses the short TTL.
	ElectionData
	// ReferenceData changes rarely and uses the long TTL.
	ReferenceData
)

// ReportPolicy describes how a kind is served.
type ReportPolicy struct {
	Kind  ReportKind
	Shape Shape
	Class CacheClass
	// MinParams is the number of parameters the kind requires.
	MinParams int
}

var reportPolicies = map[ReportKind]ReportPolicy{
	ReportCitizen:         {ReportCitizen, ShapeScalar, ElectionData, 1},
	ReportSearch:          {ReportSearch, ShapeArray, ElectionData, 1},
	ReportElectionSummary: {ReportElectionSummary, ShapeScalar, ElectionData, 1},
	ReportGeoSummary:      {ReportGeoSummary, ShapeScalar, ReferenceData, 3},
	ReportElectionList:    {ReportElectionList, ShapeArray, ReferenceData, 0},
	ReportEligibility:     {ReportEligibility, ShapeScalar, Uncached, 2},
	ReportReportsReady:    {ReportReportsReady, ShapeScalar, Uncached, 1},
	ReportMesaConfig:      {ReportMesaConfig, ShapeScalar, Uncached, 2},
	ReportUnitIDs:         {ReportUnitIDs, ShapeArray, Uncached, 1},
}

// PolicyFor resolves a kind name received on the wire.
func PolicyFor(name string) (ReportPolicy, error) {
	p, ok := reportPolicies[ReportKind(name)]
	if !ok {
		return ReportPolicy{}, Errorf(KindInvalidArgument, "unknown report kind %q", name)
	}
	return p, nil
}
