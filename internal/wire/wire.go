// Package wire implements the delimited string protocol spoken on every
// report and configuration call.
//
// A scalar response is a list of records joined by '#'. Each record is a list
// of fields joined by '-'. The last record of a successful scalar is always
// "packageVersion-timestampMillis". An array response is a '|'-joined list of
// scalars. Errors are always "ERROR-<message>-<timestampMillis>" and must be
// recognised by their prefix before anything else is parsed.
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	FieldSep  = "-"
	RecordSep = "#"
	ArraySep  = "|"

	ErrorPrefix = "ERROR"
)

var (
	ErrEmpty     = errors.New("wire: empty payload")
	ErrNoTrailer = errors.New("wire: missing version trailer")
)

// RemoteError is an error sentinel received from a peer.
type RemoteError struct {
	Message   string
	Timestamp int64
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Scalar is a decoded successful scalar response.
type Scalar struct {
	Records        [][]string
	PackageVersion string
	Timestamp      int64
}

var fieldReplacer = strings.NewReplacer(FieldSep, " ", RecordSep, " ", ArraySep, " ")
var messageReplacer = strings.NewReplacer(RecordSep, " ", ArraySep, " ")

// Millis returns t in unix milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// IsError reports whether s is an error sentinel.
func IsError(s string) bool {
	return strings.HasPrefix(s, ErrorPrefix)
}

// EncodeError builds an error sentinel. Record and array separators inside
// msg are blanked so the sentinel survives being embedded in an array.
func EncodeError(msg string, ts time.Time) string {
	msg = messageReplacer.Replace(msg)
	if msg == "" {
		msg = "unknown error"
	}
	return ErrorPrefix + FieldSep + msg + FieldSep + strconv.FormatInt(Millis(ts), 10)
}

// ParseError decodes an error sentinel. The message may itself contain '-',
// the timestamp is taken from the last field.
func ParseError(s string) (*RemoteError, error) {
	if !IsError(s) {
		return nil, fmt.Errorf("wire: not an error sentinel")
	}
	body := strings.TrimPrefix(s, ErrorPrefix+FieldSep)
	idx := strings.LastIndex(body, FieldSep)
	if idx < 0 {
		return &RemoteError{Message: body}, nil
	}
	ts, err := strconv.ParseInt(body[idx+1:], 10, 64)
	if err != nil {
		return &RemoteError{Message: body}, nil
	}
	return &RemoteError{Message: body[:idx], Timestamp: ts}, nil
}

// EncodeLeading blanks the record and array separators in s but keeps '-'.
// It is for the first field of a record whose other fields are parsed from
// the right.
func EncodeLeading(s string) string {
	return messageReplacer.Replace(s)
}

// EncodeRecord joins fields into one record, blanking separator characters
// found inside field values.
func EncodeRecord(fields ...string) string {
	clean := make([]string, len(fields))
	for i, f := range fields {
		clean[i] = fieldReplacer.Replace(f)
	}
	return strings.Join(clean, FieldSep)
}

// EncodeScalar renders records followed by the version trailer.
func EncodeScalar(records [][]string, packageVersion string, ts time.Time) string {
	parts := make([]string, 0, len(records)+1)
	for _, r := range records {
		parts = append(parts, EncodeRecord(r...))
	}
	parts = append(parts, EncodeRecord(packageVersion, strconv.FormatInt(Millis(ts), 10)))
	return strings.Join(parts, RecordSep)
}

// DecodeRecords splits s into records and fields without interpreting a
// trailer. Error sentinels are returned as *RemoteError.
func DecodeRecords(s string) ([][]string, error) {
	if s == "" {
		return nil, ErrEmpty
	}
	if IsError(s) {
		re, err := ParseError(s)
		if err != nil {
			return nil, err
		}
		return nil, re
	}
	raw := strings.Split(s, RecordSep)
	out := make([][]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, strings.Split(r, FieldSep))
	}
	return out, nil
}

// DecodeScalar decodes a successful scalar response and its trailer.
func DecodeScalar(s string) (Scalar, error) {
	records, err := DecodeRecords(s)
	if err != nil {
		return Scalar{}, err
	}
	last := records[len(records)-1]
	if len(last) != 2 {
		return Scalar{}, ErrNoTrailer
	}
	ts, err := strconv.ParseInt(last[1], 10, 64)
	if err != nil {
		return Scalar{}, fmt.Errorf("%w: bad timestamp %q", ErrNoTrailer, last[1])
	}
	return Scalar{
		Records:        records[:len(records)-1],
		PackageVersion: last[0],
		Timestamp:      ts,
	}, nil
}

// JoinArray renders an array response.
func JoinArray(items []string) string {
	return strings.Join(items, ArraySep)
}

// SplitArray splits an array response. An empty string is an empty array.
func SplitArray(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ArraySep)
}
