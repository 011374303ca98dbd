package btx

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tsType = &arrow.TimestampType{Unit: arrow.Microsecond}

func micros(s string) arrow.Timestamp {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return arrow.Timestamp(t.UnixMicro())
}

func buildRecord(ids, values []int64, effFrom, effTo []string, asOfTo string) arrow.Record {
	mem := memory.DefaultAllocator
	idB := array.NewInt64Builder(mem)
	valB := array.NewInt64Builder(mem)
	effFromB := array.NewTimestampBuilder(mem, tsType)
	effToB := array.NewTimestampBuilder(mem, tsType)
	asOfFromB := array.NewTimestampBuilder(mem, tsType)
	asOfToB := array.NewTimestampBuilder(mem, tsType)

	for i := range ids {
		idB.Append(ids[i])
		valB.Append(values[i])
		effFromB.Append(micros(effFrom[i]))
		effToB.Append(micros(effTo[i]))
		asOfFromB.Append(micros("2024-01-01"))
		if asOfTo == "INF" {
			asOfToB.Append(arrow.Timestamp(9999999999999999))
		} else {
			asOfToB.Append(micros(asOfTo))
		}
	}

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "value", Type: arrow.PrimitiveTypes.Int64},
		{Name: "effective_from", Type: tsType},
		{Name: "effective_to", Type: tsType},
		{Name: "as_of_from", Type: tsType},
		{Name: "as_of_to", Type: tsType},
	}, nil)

	return array.NewRecord(schema, []arrow.Array{
		idB.NewArray(), valB.NewArray(), effFromB.NewArray(), effToB.NewArray(), asOfFromB.NewArray(), asOfToB.NewArray(),
	}, int64(len(ids)))
}

func TestComputeChangesDeltaSlice(t *testing.T) {
	current := buildRecord([]int64{1}, []int64{100}, []string{"2024-01-01"}, []string{"9999-12-31"}, "INF")
	updates := buildRecord([]int64{1}, []int64{150}, []string{"2024-06-01"}, []string{"2024-08-01"}, "INF")

	expire, inserts, err := ComputeChanges(
		context.Background(), current, updates,
		[]string{"id"}, []string{"value"},
		mustParse("2024-06-01"), Delta,
		WithExternalInfinity(9999999999999999),
	)
	require.NoError(t, err)
	assert.Len(t, expire.Indices(), 1)
	require.Len(t, inserts, 1)
	assert.EqualValues(t, 3, inserts[0].NumRows())
}

func TestComputeChangesFullStateTombstonesAbsentID(t *testing.T) {
	current := buildRecord([]int64{1, 2}, []int64{100, 200}, []string{"2024-01-01", "2024-01-01"}, []string{"9999-12-31", "9999-12-31"}, "INF")
	updates := buildRecord([]int64{1}, []int64{100}, []string{"2024-01-01"}, []string{"9999-12-31"}, "INF")

	expire, inserts, err := ComputeChanges(
		context.Background(), current, updates,
		[]string{"id"}, []string{"value"},
		mustParse("2024-06-01"), FullState,
		WithExternalInfinity(9999999999999999),
	)
	require.NoError(t, err)
	assert.Len(t, expire.Indices(), 1) // id 2's current row, absent from updates
	require.Len(t, inserts, 1)
	assert.EqualValues(t, 1, inserts[0].NumRows())
}

func TestAddHashKeyAppendsColumn(t *testing.T) {
	rec := buildRecord([]int64{1, 2}, []int64{100, 200}, []string{"2024-01-01", "2024-01-01"}, []string{"9999-12-31", "9999-12-31"}, "INF")
	out, err := AddHashKey(rec, []string{"value"}, "xxhash")
	require.NoError(t, err)
	assert.Equal(t, rec.NumCols()+1, out.NumCols())
	assert.Equal(t, "value_hash", out.Schema().Field(int(out.NumCols()-1)).Name)
}

func mustParse(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
