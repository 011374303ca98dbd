package canon

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"btx/internal/errs"
	"btx/internal/rowhash"
	"btx/internal/temporal"
)

// Required temporal columns, present on every batch after schema alignment.
const (
	ColEffFrom  = "effective_from"
	ColEffTo    = "effective_to"
	ColAsOfFrom = "as_of_from"
	ColAsOfTo   = "as_of_to"
)

// FromRecord canonicalizes a columnar batch into a dense Row slice.
// externalInfinity is the caller's own "unbounded" sentinel value (in
// microseconds since epoch); any timestamp at or beyond it is normalized
// to temporal.Infinity.
func FromRecord(rec arrow.Record, idCols, valueCols []string, hasher rowhash.Hasher, externalInfinity temporal.Timestamp) ([]Row, error) {
	index := fieldIndex(rec.Schema())

	idGetters, err := columnGetters(rec, index, idCols)
	if err != nil {
		return nil, err
	}
	valueGetters, err := columnGetters(rec, index, valueCols)
	if err != nil {
		return nil, err
	}

	effFrom, err := timestampGetter(rec, index, ColEffFrom, externalInfinity)
	if err != nil {
		return nil, err
	}
	effTo, err := timestampGetter(rec, index, ColEffTo, externalInfinity)
	if err != nil {
		return nil, err
	}
	asOfFrom, err := timestampGetter(rec, index, ColAsOfFrom, externalInfinity)
	if err != nil {
		return nil, err
	}
	asOfTo, err := timestampGetter(rec, index, ColAsOfTo, externalInfinity)
	if err != nil {
		return nil, err
	}

	n := int(rec.NumRows())
	rows := make([]Row, n)
	var buf []byte
	for i := 0; i < n; i++ {
		ids := make([]rowhash.Value, len(idGetters))
		for j, get := range idGetters {
			ids[j] = get(i)
		}
		vals := make([]rowhash.Value, len(valueGetters))
		for j, get := range valueGetters {
			vals[j] = get(i)
		}

		eff := temporal.Interval{From: effFrom(i), To: effTo(i)}
		if !eff.Valid() {
			return nil, &errs.InvalidIntervalError{RowIndex: i, Column: ColEffFrom, Message: "effective_from must be < effective_to unless effective_to is INFINITY"}
		}
		asOf := temporal.Interval{From: asOfFrom(i), To: asOfTo(i)}
		if asOf.From.IsInfinity() {
			return nil, &errs.InvalidIntervalError{RowIndex: i, Column: ColAsOfFrom, Message: "as_of_from must be finite"}
		}
		if !asOf.Valid() {
			return nil, &errs.InvalidIntervalError{RowIndex: i, Column: ColAsOfFrom, Message: "as_of_from must be < as_of_to unless as_of_to is INFINITY"}
		}

		buf = buf[:0]
		buf = rowhash.Encode(buf, vals)
		rows[i] = Row{
			IDKey:         BuildIDKey(ids),
			IDValues:      ids,
			Values:        vals,
			Eff:           eff,
			AsOf:          asOf,
			ValueHash:     hasher.Sum(buf),
			OriginalIndex: i,
		}
	}
	return rows, nil
}

// ExtractValues reads named columns off rec into a row-major slice of
// rowhash.Value tuples, independent of full Row canonicalization. Used by
// the boundary adapter's standalone hash-key helper.
func ExtractValues(rec arrow.Record, cols []string) ([][]rowhash.Value, error) {
	index := fieldIndex(rec.Schema())
	getters, err := columnGetters(rec, index, cols)
	if err != nil {
		return nil, err
	}
	n := int(rec.NumRows())
	out := make([][]rowhash.Value, n)
	for i := 0; i < n; i++ {
		row := make([]rowhash.Value, len(getters))
		for j, get := range getters {
			row[j] = get(i)
		}
		out[i] = row
	}
	return out, nil
}

func fieldIndex(schema *arrow.Schema) map[string]int {
	idx := make(map[string]int, len(schema.Fields()))
	for i, f := range schema.Fields() {
		idx[f.Name] = i
	}
	return idx
}

type valueGetter func(row int) rowhash.Value

func columnGetters(rec arrow.Record, index map[string]int, names []string) ([]valueGetter, error) {
	getters := make([]valueGetter, len(names))
	for i, name := range names {
		colIdx, ok := index[name]
		if !ok {
			return nil, &errs.MissingColumnError{Column: name}
		}
		get, err := valueGetterFor(rec.Column(colIdx), name)
		if err != nil {
			return nil, err
		}
		getters[i] = get
	}
	return getters, nil
}

func valueGetterFor(col arrow.Array, name string) (valueGetter, error) {
	switch a := col.(type) {
	case *array.Boolean:
		return func(i int) rowhash.Value {
			if a.IsNull(i) {
				return rowhash.Null()
			}
			return rowhash.BoolValue(a.Value(i))
		}, nil
	case *array.Int8:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.IntValue(int64(a.Value(i))) }) }, nil
	case *array.Int16:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.IntValue(int64(a.Value(i))) }) }, nil
	case *array.Int32:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.IntValue(int64(a.Value(i))) }) }, nil
	case *array.Int64:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.IntValue(a.Value(i)) }) }, nil
	case *array.Uint8:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.IntValue(int64(a.Value(i))) }) }, nil
	case *array.Uint16:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.IntValue(int64(a.Value(i))) }) }, nil
	case *array.Uint32:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.IntValue(int64(a.Value(i))) }) }, nil
	case *array.Uint64:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.IntValue(int64(a.Value(i))) }) }, nil
	case *array.Float32:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.FloatValue(float64(a.Value(i))) }) }, nil
	case *array.Float64:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.FloatValue(a.Value(i)) }) }, nil
	case *array.String:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.StringValue(a.Value(i)) }) }, nil
	case *array.LargeString:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.StringValue(a.Value(i)) }) }, nil
	case *array.Binary:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.StringValue(string(a.Value(i))) }) }, nil
	case *array.Date32:
		return func(i int) rowhash.Value { return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.DateValue(int32(a.Value(i))) }) }, nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return func(i int) rowhash.Value {
			return nullOr(a.IsNull(i), func() rowhash.Value { return rowhash.TimestampValue(toMicros(int64(a.Value(i)), unit)) })
		}, nil
	default:
		return nil, &errs.UnsupportedTypeError{Column: name, Type: fmt.Sprintf("%T", col)}
	}
}

func nullOr(isNull bool, build func() rowhash.Value) rowhash.Value {
	if isNull {
		return rowhash.Null()
	}
	return build()
}

func toMicros(v int64, unit arrow.TimeUnit) int64 {
	switch unit {
	case arrow.Second:
		return v * 1_000_000
	case arrow.Millisecond:
		return v * 1_000
	case arrow.Microsecond:
		return v
	case arrow.Nanosecond:
		return v / 1_000 // truncate toward zero at the boundary
	default:
		return v
	}
}

func timestampGetter(rec arrow.Record, index map[string]int, name string, externalInfinity temporal.Timestamp) (func(row int) temporal.Timestamp, error) {
	colIdx, ok := index[name]
	if !ok {
		return nil, &errs.MissingColumnError{Column: name}
	}
	col := rec.Column(colIdx)

	var raw func(i int) int64
	switch a := col.(type) {
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		raw = func(i int) int64 { return toMicros(int64(a.Value(i)), unit) }
	case *array.Int64:
		raw = func(i int) int64 { return a.Value(i) }
	case *array.Date32:
		raw = func(i int) int64 { return int64(a.Value(i)) * 86_400_000_000 }
	default:
		return nil, &errs.UnsupportedTypeError{Column: name, Type: fmt.Sprintf("%T", col)}
	}

	return func(i int) temporal.Timestamp {
		us := raw(i)
		if temporal.Timestamp(us) >= externalInfinity {
			return temporal.Infinity
		}
		return temporal.Timestamp(us)
	}, nil
}
