// Package domain holds the identifiers, enums and payload types shared by the
// proxy, hub and orchestrator.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"electoral-service/internal/wire"
)

// ElectionID identifies an election and partitions hub registries.
type ElectionID int

// LocationType is the closed set of geographic levels.
type LocationType int

const (
	Department LocationType = iota + 1
	Municipality
	Puesto
	Mesa
)

func (l LocationType) String() string {
	switch l {
	case Department:
		return "department"
	case Municipality:
		return "municipality"
	case Puesto:
		return "puesto"
	case Mesa:
		return "mesa"
	default:
		return "unknown"
	}
}

// ParseLocationType resolves a location type name at the boundary.
func ParseLocationType(s string) (LocationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "department", "departamento":
		return Department, nil
	case "municipality", "municipio":
		return Municipality, nil
	case "puesto":
		return Puesto, nil
	case "mesa":
		return Mesa, nil
	}
	return 0, Errorf(KindInvalidArgument, "unknown location type %q", s)
}

// Scope narrows a unit listing to one geographic node.
type Scope struct {
	Type LocationType
	Code string
}

func (s Scope) String() string {
	return s.Type.String() + ":" + s.Code
}

// VoteEvent is pushed to observers after a vote is registered.
type VoteEvent struct {
	CandidateLabel  string
	TimestampMillis int64
	ElectionID      ElectionID
}

// String renders the event as label-timestamp-electionId. Dashes in the
// label survive; ParseVoteEvent reads the numeric fields from the right.
func (e VoteEvent) String() string {
	return wire.EncodeLeading(e.CandidateLabel) + wire.FieldSep +
		strconv.FormatInt(e.TimestampMillis, 10) + wire.FieldSep +
		strconv.Itoa(int(e.ElectionID))
}

// NewVoteEvent stamps an event with the given time.
func NewVoteEvent(label string, electionID ElectionID, at time.Time) VoteEvent {
	return VoteEvent{CandidateLabel: label, TimestampMillis: wire.Millis(at), ElectionID: electionID}
}

// ParseVoteEvent decodes label-timestamp-electionId. The label may contain
// spaces and dashes; the two numeric fields are taken from the right.
func ParseVoteEvent(s string) (VoteEvent, error) {
	parts := strings.Split(s, wire.FieldSep)
	if len(parts) < 3 {
		return VoteEvent{}, Errorf(KindInvalidArgument, "malformed vote event %q", s)
	}
	n := len(parts)
	eid, err := strconv.Atoi(parts[n-1])
	if err != nil {
		return VoteEvent{}, Errorf(KindInvalidArgument, "bad election id in %q", s)
	}
	ts, err := strconv.ParseInt(parts[n-2], 10, 64)
	if err != nil {
		return VoteEvent{}, Errorf(KindInvalidArgument, "bad timestamp in %q", s)
	}
	label := strings.Join(parts[:n-2], wire.FieldSep)
	if label == "" {
		return VoteEvent{}, Errorf(KindInvalidArgument, "empty candidate label in %q", s)
	}
	return VoteEvent{CandidateLabel: label, TimestampMillis: ts, ElectionID: ElectionID(eid)}, nil
}

// Artifact is the configuration generated for one voting unit.
type Artifact struct {
	UnitID          int        `yaml:"unitId"`
	ElectionID      ElectionID `yaml:"electionId"`
	Records         [][]string `yaml:"records"`
	PackageVersion  string     `yaml:"packageVersion"`
	SourceTimestamp int64      `yaml:"sourceTimestamp"`
	GeneratedAt     time.Time  `yaml:"generatedAt"`
}

func (a Artifact) String() string {
	return fmt.Sprintf("mesa %d (election %d, %d records, %s)", a.UnitID, a.ElectionID, len(a.Records), a.PackageVersion)
}
