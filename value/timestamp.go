package value

import (
	"time"

	"github.com/chazu/scriptbridge/errs"
)

// MaxOffsetMinutes bounds a Timestamp's UTC offset (exclusive of a full day).
const MaxOffsetMinutes = 24*60 - 1

// Timestamp is an instant with microsecond precision and an optional fixed
// UTC offset in minutes. A Timestamp without offset is naive: its wall clock
// is meaningful but its zone is unspecified.
type Timestamp struct {
	sec       int64 // unix seconds of the instant (naive: wall clock read as UTC)
	micros    uint32
	offset    int16 // minutes east of UTC
	hasOffset bool
}

// NewTimestamp converts t, keeping its zone offset. It is a RangeError if
// t carries sub-microsecond precision or an offset that is not a whole
// number of minutes.
func NewTimestamp(t time.Time) (Timestamp, error) {
	_, off := t.Zone()
	if off%60 != 0 {
		return Timestamp{}, errs.New(errs.RangeError, "", "utc offset %ds is not a whole minute", off)
	}
	ts, err := fromTime(t)
	if err != nil {
		return Timestamp{}, err
	}
	return TimestampAt(ts.sec, ts.micros, off/60, true)
}

// NaiveTimestamp converts the wall clock of t and drops its zone.
func NaiveTimestamp(t time.Time) (Timestamp, error) {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return fromTime(wall)
}

func fromTime(t time.Time) (Timestamp, error) {
	if t.Nanosecond()%1000 != 0 {
		return Timestamp{}, errs.New(errs.RangeError, "", "timestamp %s has sub-microsecond precision", t.Format(time.RFC3339Nano))
	}
	return Timestamp{sec: t.Unix(), micros: uint32(t.Nanosecond() / 1000)}, nil
}

// TimestampAt builds a Timestamp from its wire components.
func TimestampAt(sec int64, micros uint32, offsetMinutes int, hasOffset bool) (Timestamp, error) {
	if micros >= 1e6 {
		return Timestamp{}, errs.New(errs.RangeError, "", "microseconds %d out of range", micros)
	}
	if !hasOffset && offsetMinutes != 0 {
		return Timestamp{}, errs.New(errs.RangeError, "", "naive timestamp with offset %d", offsetMinutes)
	}
	if offsetMinutes > MaxOffsetMinutes || offsetMinutes < -MaxOffsetMinutes {
		return Timestamp{}, errs.New(errs.RangeError, "", "utc offset %d minutes out of range", offsetMinutes)
	}
	return Timestamp{sec: sec, micros: micros, offset: int16(offsetMinutes), hasOffset: hasOffset}, nil
}

// MustTimestamp is NewTimestamp for values known to be valid.
func MustTimestamp(t time.Time) Timestamp {
	ts, err := NewTimestamp(t)
	if err != nil {
		panic(err)
	}
	return ts
}

// Time returns the instant in a fixed zone for offset timestamps and in
// UTC for naive ones.
func (t Timestamp) Time() time.Time {
	u := time.Unix(t.sec, int64(t.micros)*1000).UTC()
	if !t.hasOffset {
		return u
	}
	return u.In(time.FixedZone("", int(t.offset)*60))
}

// Unix returns the seconds and microseconds components.
func (t Timestamp) Unix() (sec int64, micros uint32) { return t.sec, t.micros }

// Offset returns the UTC offset in minutes and whether one is set.
func (t Timestamp) Offset() (minutes int, ok bool) { return int(t.offset), t.hasOffset }

// Naive reports whether the timestamp has no offset.
func (t Timestamp) Naive() bool { return !t.hasOffset }

// Equal compares instant and offset; two timestamps naming the same instant
// in different zones are not equal.
func (t Timestamp) Equal(o Timestamp) bool { return t == o }

func (t Timestamp) String() string {
	if !t.hasOffset {
		return t.Time().Format("2006-01-02T15:04:05.000000")
	}
	return t.Time().Format("2006-01-02T15:04:05.000000-07:00")
}
