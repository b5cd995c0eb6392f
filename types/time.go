package types

import "time"

// Timestamp is a wall-clock instant as carried on the wire: seconds
// since the Unix epoch plus a nanosecond offset. Peers stamp reports
// with it so transit lag can be measured on arrival.
type Timestamp struct {
	Seconds int64 `cramberry:"1"`
	Nanos   int32 `cramberry:"2"`
}

// TimeToTimestamp converts a time.Time to a Timestamp.
func TimeToTimestamp(t time.Time) Timestamp {
	return Timestamp{
		Seconds: t.Unix(),
		Nanos:   int32(t.Nanosecond()),
	}
}

// ToTime converts a Timestamp to a time.Time (UTC).
func (ts Timestamp) ToTime() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// IsZero reports whether the timestamp was never set. Peers that do
// not stamp their reports send the zero value.
func (ts Timestamp) IsZero() bool {
	return ts == Timestamp{}
}

// Sub returns ts-earlier, or zero when either side is unset.
func (ts Timestamp) Sub(earlier Timestamp) time.Duration {
	if ts.IsZero() || earlier.IsZero() {
		return 0
	}
	return ts.ToTime().Sub(earlier.ToTime())
}

// Duration is an interval as carried on the wire, in nanoseconds.
type Duration struct {
	Nanos int64 `cramberry:"1"`
}

// DurationFromGo converts a time.Duration to a Duration.
func DurationFromGo(d time.Duration) Duration {
	return Duration{Nanos: d.Nanoseconds()}
}

// ToGo converts a Duration to a time.Duration.
func (d Duration) ToGo() time.Duration {
	return time.Duration(d.Nanos)
}
