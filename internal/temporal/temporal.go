// Package temporal provides the half-open interval arithmetic shared by the
// reconciliation engine: a microsecond-precision Timestamp type, the
// INFINITY sentinel, and Interval helpers.
package temporal

import "time"

// Timestamp is a microsecond-precision instant since the Unix epoch.
// Nanosecond-precision inputs are truncated toward zero at the boundary.
type Timestamp int64

// Infinity is the sentinel used uniformly in place of an unbounded upper
// time. It compares greater than every finite Timestamp and is absorbing
// under Max, neutral under Min.
const Infinity Timestamp = Timestamp(maxUsSince1970)

// maxUsSince1970 corresponds to 2260-12-31T23:59:59Z, the boundary's
// documented sentinel instant.
const maxUsSince1970 = int64(9183110399) * int64(time.Second/time.Microsecond)

// FromTime converts a time.Time to a Timestamp, dropping sub-microsecond
// precision by rounding toward the past (toward zero for instants after
// the epoch).
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// ToTime converts a Timestamp back to a time.Time in UTC.
func (t Timestamp) ToTime() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// IsInfinity reports whether t is the unbounded-above sentinel.
func (t Timestamp) IsInfinity() bool {
	return t >= Infinity
}

// Max returns the later of two timestamps; Infinity is absorbing.
func Max(a, b Timestamp) Timestamp {
	if a > b {
		return a
	}
	return b
}

// Min returns the earlier of two timestamps; Infinity is neutral.
func Min(a, b Timestamp) Timestamp {
	if a < b {
		return a
	}
	return b
}

// Interval is a half-open effective- or as-of-time range [From, To).
type Interval struct {
	From Timestamp
	To   Timestamp
}

// Valid reports whether the interval satisfies from < to, unless to is
// Infinity, in which case any from <= Infinity is accepted.
func (iv Interval) Valid() bool {
	if iv.To == Infinity {
		return iv.From <= iv.To
	}
	return iv.From < iv.To
}

// NewOpen builds an open-ended interval starting at from.
func NewOpen(from Timestamp) Interval {
	return Interval{From: from, To: Infinity}
}

// Contains reports whether the instant p falls within [From, To).
func (iv Interval) Contains(p Timestamp) bool {
	return iv.From <= p && p < iv.To
}

// Overlaps reports whether two half-open intervals share any instant.
func Overlaps(a, b Interval) bool {
	return a.From < b.To && a.To > b.From
}

// Touches reports whether b begins exactly where a ends (or vice versa),
// with no overlap.
func Touches(a, b Interval) bool {
	return a.To == b.From || b.To == a.From
}

// Superset reports whether iv fully covers other.
func (iv Interval) Superset(other Interval) bool {
	return iv.From <= other.From && iv.To >= other.To
}

// Intersect returns the overlapping portion of a and b. ok is false if they
// do not overlap.
func Intersect(a, b Interval) (Interval, bool) {
	if !Overlaps(a, b) {
		return Interval{}, false
	}
	return Interval{From: Max(a.From, b.From), To: Min(a.To, b.To)}, true
}
