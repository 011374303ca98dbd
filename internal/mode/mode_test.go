package mode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btx/internal/canon"
	"btx/internal/partition"
	"btx/internal/reconcile"
	"btx/internal/rowhash"
	"btx/internal/temporal"
)

func ts(s string) temporal.Timestamp {
	if s == "INF" {
		return temporal.Infinity
	}
	tt, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return temporal.FromTime(tt)
}

func row(id, value int64, from, to string, origIndex int) canon.Row {
	h, _ := rowhash.Resolve("xxhash")
	vals := []rowhash.Value{rowhash.IntValue(value)}
	var buf []byte
	buf = rowhash.Encode(buf, vals)
	return canon.Row{
		IDKey:         canon.BuildIDKey([]rowhash.Value{rowhash.IntValue(id)}),
		IDValues:      []rowhash.Value{rowhash.IntValue(id)},
		Values:        vals,
		Eff:           temporal.Interval{From: ts(from), To: ts(to)},
		AsOf:          temporal.Interval{From: ts("2024-01-01"), To: temporal.Infinity},
		ValueHash:     h.Sum(buf),
		OriginalIndex: origIndex,
	}
}

func TestDeltaLeavesAbsentIdsUntouched(t *testing.T) {
	p := partition.Partition{
		IDKey:   "1",
		Current: []canon.Row{row(1, 100, "2024-01-01", "INF", 0)},
	}
	res, changed := deltaPolicy{}.HandleAbsent(p, ts("2024-06-01"))
	assert.False(t, changed)
	assert.Empty(t, res.Expires)
}

func TestFullStateTombstonesAbsentLiveRecord(t *testing.T) {
	p := partition.Partition{
		IDKey:   "1",
		Current: []canon.Row{row(1, 100, "2024-01-01", "INF", 0)},
	}
	res, changed := fullStatePolicy{}.HandleAbsent(p, ts("2024-06-01"))
	require.True(t, changed)
	require.Len(t, res.Expires, 1)
	assert.Equal(t, 0, res.Expires[0].OriginalIndex)
	require.Len(t, res.Inserts, 1)
	ins := res.Inserts[0]
	assert.Equal(t, reconcile.Tombstone, ins.Kind)
	assert.Equal(t, ts("2024-01-01"), ins.Eff.From)
	assert.Equal(t, ts("2024-06-01"), ins.Eff.To)
	assert.Equal(t, temporal.Infinity, ins.AsOfTo)
}

func TestFullStateSkipsFutureDatedRecord(t *testing.T) {
	p := partition.Partition{
		IDKey:   "1",
		Current: []canon.Row{row(1, 100, "2024-12-01", "INF", 0)},
	}
	res, changed := fullStatePolicy{}.HandleAbsent(p, ts("2024-06-01"))
	assert.False(t, changed)
	assert.Empty(t, res.Expires)
	assert.Empty(t, res.Inserts)
}

func TestPolicyForSelectsImplementation(t *testing.T) {
	_, ok := PolicyFor(Delta).(deltaPolicy)
	assert.True(t, ok)
	_, ok = PolicyFor(FullState).(fullStatePolicy)
	assert.True(t, ok)
}
