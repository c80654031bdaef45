package types

import "time"

// RecordKind indicates the kind of record a sensor produces.
type RecordKind int

const (
	// KindTSD is a time-series sample (periodic measurement).
	KindTSD RecordKind = iota
	// KindEVT is a discrete event (state change, alarm, threshold crossing).
	KindEVT
)

// String returns a human-readable representation of the RecordKind.
func (k RecordKind) String() string {
	switch k {
	case KindTSD:
		return "tsd"
	case KindEVT:
		return "evt"
	default:
		return "unknown"
	}
}

// ParseRecordKind parses a record kind name as used in config files.
func ParseRecordKind(s string) (RecordKind, bool) {
	switch s {
	case "tsd":
		return KindTSD, true
	case "evt":
		return KindEVT, true
	default:
		return KindTSD, false
	}
}

// Record flags.
const (
	// FlagValid marks a record carrying a trustworthy value.
	FlagValid uint8 = 1 << 0
	// FlagEstimated marks a value interpolated by the producer.
	FlagEstimated uint8 = 1 << 1
)

// Record is a single buffered measurement or event.
// This is the unit flowing through the engine: producers append records,
// the upload layer reads them back in append order.
//
// Records have a fixed binary encoding (see the spool package) so sectors
// spill to disk as fixed-size frames.
type Record struct {
	// Kind selects which payload fields are meaningful.
	Kind RecordKind

	// TimestampMs is the producer timestamp, Unix milliseconds.
	TimestampMs int64

	// Value holds the sample value for KindTSD records.
	Value float64

	// Code holds the event code for KindEVT records.
	Code uint32

	// Flags holds validity bits (FlagValid, FlagEstimated).
	Flags uint8
}

// TimestampTime returns the timestamp as a time.Time.
func (r *Record) TimestampTime() time.Time {
	return time.UnixMilli(r.TimestampMs)
}

// Valid reports whether the record carries a trustworthy value.
func (r *Record) Valid() bool {
	return r.Flags&FlagValid != 0
}

// Sample builds a valid TSD record.
func Sample(timestampMs int64, value float64) Record {
	return Record{
		Kind:        KindTSD,
		TimestampMs: timestampMs,
		Value:       value,
		Flags:       FlagValid,
	}
}

// Event builds a valid EVT record.
func Event(timestampMs int64, code uint32) Record {
	return Record{
		Kind:        KindEVT,
		TimestampMs: timestampMs,
		Code:        code,
		Flags:       FlagValid,
	}
}
