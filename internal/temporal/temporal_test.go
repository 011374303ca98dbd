package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsInfinity(t *testing.T) {
	assert.True(t, Infinity.IsInfinity())
	assert.False(t, Timestamp(0).IsInfinity())
	assert.True(t, Timestamp(int64(Infinity)+1).IsInfinity())
}

func TestMaxIsAbsorbingAndMinIsNeutralUnderInfinity(t *testing.T) {
	assert.Equal(t, Infinity, Max(Infinity, 100))
	assert.Equal(t, Infinity, Max(100, Infinity))
	assert.Equal(t, Timestamp(100), Min(Infinity, 100))
	assert.Equal(t, Timestamp(100), Min(100, Infinity))
}

func TestIntervalValid(t *testing.T) {
	assert.True(t, Interval{From: 0, To: 100}.Valid())
	assert.False(t, Interval{From: 100, To: 100}.Valid())
	assert.False(t, Interval{From: 100, To: 0}.Valid())
	assert.True(t, NewOpen(100).Valid())
}

func TestOverlapsAndTouches(t *testing.T) {
	a := Interval{From: 0, To: 100}
	b := Interval{From: 50, To: 150}
	c := Interval{From: 100, To: 200}

	assert.True(t, Overlaps(a, b))
	assert.False(t, Overlaps(a, c))
	assert.True(t, Touches(a, c))
	assert.False(t, Touches(a, b))
}

func TestSupersetAndIntersect(t *testing.T) {
	outer := Interval{From: 0, To: 100}
	inner := Interval{From: 20, To: 80}
	assert.True(t, outer.Superset(inner))
	assert.False(t, inner.Superset(outer))

	got, ok := Intersect(outer, Interval{From: 50, To: 150})
	assert.True(t, ok)
	assert.Equal(t, Interval{From: 50, To: 100}, got)

	_, ok = Intersect(outer, Interval{From: 100, To: 200})
	assert.False(t, ok)
}

func TestFromTimeRoundTrip(t *testing.T) {
	tt := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	ts := FromTime(tt)
	assert.Equal(t, tt, ts.ToTime())
}
