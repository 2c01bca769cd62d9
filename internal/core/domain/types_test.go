package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteEvent_RoundTrip(t *testing.T) {
	ev := NewVoteEvent("Candidate A", 5, time.UnixMilli(1700000000000))
	assert.Equal(t, "Candidate A-1700000000000-5", ev.String())

	got, err := ParseVoteEvent(ev.String())
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestVoteEvent_DashedLabelRoundTrip(t *testing.T) {
	ev := NewVoteEvent("Ana-Lopez", 7, time.UnixMilli(1700000000000))
	assert.Equal(t, "Ana-Lopez-1700000000000-7", ev.String())

	got, err := ParseVoteEvent(ev.String())
	require.NoError(t, err)
	assert.Equal(t, "Ana-Lopez", got.CandidateLabel)
	assert.Equal(t, ev, got)
}

func TestVoteEvent_BlanksRecordSeparators(t *testing.T) {
	ev := VoteEvent{CandidateLabel: "A#B|C", TimestampMillis: 1, ElectionID: 2}
	assert.Equal(t, "A B C-1-2", ev.String())
}

func TestParseVoteEvent_Malformed(t *testing.T) {
	for _, s := range []string{"", "a-1", "a-x-5", "a-1-x", "-1-5"} {
		_, err := ParseVoteEvent(s)
		assert.ErrorIs(t, err, ErrInvalidArgument, s)
	}
}

func TestParseLocationType(t *testing.T) {
	lt, err := ParseLocationType("Municipio")
	require.NoError(t, err)
	assert.Equal(t, Municipality, lt)

	_, err = ParseLocationType("galaxy")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestError_IsByKind(t *testing.T) {
	err := fmt.Errorf("lookup: %w", Errorf(KindNotFound, "election %d", 7))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindUpstreamUnavailable, KindOf(errors.New("boom")))
	assert.Nil(t, Wrap(KindNotFound, nil, "x"))
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor("eligibility")
	require.NoError(t, err)
	assert.Equal(t, Uncached, p.Class)

	p, err = PolicyFor("geo-summary")
	require.NoError(t, err)
	assert.Equal(t, ReferenceData, p.Class)

	_, err = PolicyFor("nope")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
