package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btx/internal/canon"
	"btx/internal/partition"
	"btx/internal/rowhash"
	"btx/internal/temporal"
)

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func row(id int64, value int64, from, to string, origIndex int) canon.Row {
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

func ts(s string) temporal.Timestamp {
	if s == "INF" {
		return temporal.Infinity
	}
	tt, err := parseDate(s)
	if err != nil {
		panic(err)
	}
	return temporal.FromTime(tt)
}

func TestDeltaSlice(t *testing.T) {
	current := []canon.Row{row(1, 100, "2024-01-01", "INF", 0)}
	updates := []canon.Row{row(1, 150, "2024-06-01", "2024-08-31", 0)}

	p := partition.Build(current, updates)
	require.Len(t, p, 1)

	res := Reconcile(p[0], ts("2024-06-01"))
	require.Len(t, res.Expires, 1)
	assert.Equal(t, 0, res.Expires[0].OriginalIndex)
	require.Len(t, res.Inserts, 3)

	byFrom := map[temporal.Timestamp]rowhash.Value{}
	for _, ins := range res.Inserts {
		byFrom[ins.Eff.From] = ins.Values[0]
	}
	assert.Equal(t, int64(100), byFrom[ts("2024-01-01")].Int)
	assert.Equal(t, int64(150), byFrom[ts("2024-06-01")].Int)
	assert.Equal(t, int64(100), byFrom[ts("2024-08-31")].Int)
}

func TestExactMatchNoOp(t *testing.T) {
	current := []canon.Row{
		row(1, 100, "2024-01-01", "INF", 0),
		row(1, 100, "2024-01-02", "INF", 1),
	}
	updates := []canon.Row{row(1, 100, "2024-01-02", "INF", 0)}

	p := partition.Build(current, updates)
	res := Reconcile(p[0], ts("2024-01-02"))

	assert.Empty(t, res.Expires)
	assert.Empty(t, res.Inserts)
}

func TestAdjacentSameHashNotMergedDuringBackfill(t *testing.T) {
	current := []canon.Row{
		row(1, 100, "2024-01-01", "2024-01-02", 0),
		row(1, 200, "2024-01-02", "2024-01-03", 1),
		row(1, 300, "2024-01-03", "2024-01-04", 2),
	}
	updates := []canon.Row{row(1, 100, "2024-01-02", "2024-01-03", 0)}

	p := partition.Build(current, updates)
	res := Reconcile(p[0], ts("2024-01-02"))

	require.Len(t, res.Expires, 1)
	assert.Equal(t, 1, res.Expires[0].OriginalIndex)
	require.Len(t, res.Inserts, 1)
	assert.Equal(t, ts("2024-01-02"), res.Inserts[0].Eff.From)
	assert.Equal(t, ts("2024-01-03"), res.Inserts[0].Eff.To)
}

func TestBoundedToOpenPromotion(t *testing.T) {
	current := []canon.Row{row(1, 42, "2025-10-10", "2025-10-11", 0)}
	updates := []canon.Row{row(1, 42, "2025-10-10", "INF", 0)}

	p := partition.Build(current, updates)
	res := Reconcile(p[0], ts("2025-10-10"))

	require.Len(t, res.Expires, 1)
	require.Len(t, res.Inserts, 1)
	assert.Equal(t, temporal.Infinity, res.Inserts[0].Eff.To)
}

func TestExtendAdjacentWhenNoOverlap(t *testing.T) {
	current := []canon.Row{row(1, 100, "2020-01-01", "2021-01-01", 0)}
	updates := []canon.Row{row(1, 100, "2021-01-01", "2022-11-01", 0)}

	p := partition.Build(current, updates)
	res := Reconcile(p[0], ts("2021-01-01"))

	require.Len(t, res.Expires, 1)
	require.Len(t, res.Inserts, 1)
	assert.Equal(t, ts("2020-01-01"), res.Inserts[0].Eff.From)
	assert.Equal(t, ts("2022-11-01"), res.Inserts[0].Eff.To)
}

func TestNoOpOnSameValueBackfillInsideExisting(t *testing.T) {
	current := []canon.Row{row(1, 100, "2020-01-01", "INF", 0)}
	updates := []canon.Row{row(1, 100, "2020-02-01", "2020-04-01", 0)}

	p := partition.Build(current, updates)
	res := Reconcile(p[0], ts("2020-02-01"))

	assert.Empty(t, res.Expires)
	assert.Empty(t, res.Inserts)
}
