package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeScalar(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	got := EncodeScalar([][]string{{"42", "123", "Ana", "Lopez"}, {"1", "Dept"}}, "v3", ts)
	assert.Equal(t, "42-123-Ana-Lopez#1-Dept#v3-1700000000123", got)

	sc, err := DecodeScalar(got)
	require.NoError(t, err)
	assert.Equal(t, "v3", sc.PackageVersion)
	assert.Equal(t, int64(1700000000123), sc.Timestamp)
	assert.Equal(t, [][]string{{"42", "123", "Ana", "Lopez"}, {"1", "Dept"}}, sc.Records)
}

func TestEncodeRecord_BlanksSeparators(t *testing.T) {
	assert.Equal(t, "San Juan-a b c", EncodeRecord("San-Juan", "a#b|c"))
}

func TestEncodeLeading_KeepsDashes(t *testing.T) {
	assert.Equal(t, "San-Juan a b", EncodeLeading("San-Juan#a|b"))
}

func TestErrorSentinel(t *testing.T) {
	ts := time.UnixMilli(99)
	s := EncodeError("dial tcp 10.0.0.1:50050: connection-refused", ts)
	assert.True(t, IsError(s))
	assert.Equal(t, "ERROR-dial tcp 10.0.0.1:50050: connection-refused-99", s)

	re, err := ParseError(s)
	require.NoError(t, err)
	assert.Equal(t, "dial tcp 10.0.0.1:50050: connection-refused", re.Message)
	assert.Equal(t, int64(99), re.Timestamp)
}

func TestEncodeError_KeepsArraysIntact(t *testing.T) {
	s := EncodeError("a|b#c", time.UnixMilli(1))
	assert.Len(t, SplitArray(s), 1)
}

func TestDecode_ErrorCheckedFirst(t *testing.T) {
	_, err := DecodeScalar("ERROR-no such election-5")
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "no such election", re.Message)
}

func TestDecodeScalar_MissingTrailer(t *testing.T) {
	_, err := DecodeScalar("42-Ana#1-2-3")
	assert.ErrorIs(t, err, ErrNoTrailer)

	_, err = DecodeScalar("")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestArray(t *testing.T) {
	items := []string{"1-a#v-1", "2-b#v-1"}
	joined := JoinArray(items)
	assert.Equal(t, "1-a#v-1|2-b#v-1", joined)
	assert.Equal(t, items, SplitArray(joined))
	assert.Empty(t, SplitArray(""))
}
