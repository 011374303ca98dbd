package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btx/internal/canon"
	"btx/internal/rowhash"
	"btx/internal/temporal"
)

func row(idKey string, from, to, asOfTo temporal.Timestamp) canon.Row {
	return canon.Row{
		IDKey:  idKey,
		Values: []rowhash.Value{rowhash.IntValue(1)},
		Eff:    temporal.Interval{From: from, To: to},
		AsOf:   temporal.Interval{From: 0, To: asOfTo},
	}
}

func TestBuildGroupsByIDKeyAndFiltersHistoricalCurrent(t *testing.T) {
	current := []canon.Row{
		row("1", 0, 100, temporal.Infinity),
		row("1", 0, 50, 50), // historical: as_of_to is finite, must be excluded
		row("2", 0, 100, temporal.Infinity),
	}
	updates := []canon.Row{row("1", 50, 150, temporal.Infinity)}

	parts := Build(current, updates)
	require.Len(t, parts, 2)
	assert.Equal(t, "1", parts[0].IDKey)
	assert.Equal(t, "2", parts[1].IDKey)
	assert.Len(t, parts[0].Current, 1)
	assert.Len(t, parts[0].Updates, 1)
	assert.Empty(t, parts[1].Updates)
}

func TestBuildSortsWithinPartitionByEffFrom(t *testing.T) {
	current := []canon.Row{
		row("1", 100, 200, temporal.Infinity),
		row("1", 0, 100, temporal.Infinity),
	}
	parts := Build(current, nil)
	require.Len(t, parts, 1)
	assert.Equal(t, temporal.Timestamp(0), parts[0].Current[0].Eff.From)
	assert.Equal(t, temporal.Timestamp(100), parts[0].Current[1].Eff.From)
}

func TestBuildReturnsDeterministicIDOrder(t *testing.T) {
	current := []canon.Row{
		row("zzz", 0, 100, temporal.Infinity),
		row("aaa", 0, 100, temporal.Infinity),
		row("mmm", 0, 100, temporal.Infinity),
	}
	parts := Build(current, nil)
	require.Len(t, parts, 3)
	assert.Equal(t, []string{"aaa", "mmm", "zzz"}, []string{parts[0].IDKey, parts[1].IDKey, parts[2].IDKey})
}
