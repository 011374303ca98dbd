package materialize

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"btx/internal/rowhash"
)

// colBuilder accumulates rowhash.Values of a single column kind into an
// Arrow array, picking its DataType from the first non-null value seen.
type colBuilder struct {
	kind    rowhash.Kind
	known   bool
	boolB   *array.BooleanBuilder
	intB    *array.Int64Builder
	floatB  *array.Float64Builder
	dateB   *array.Date32Builder
	tsB     *array.TimestampBuilder
	strB    *array.StringBuilder
	pending int // null rows appended before the kind was learned
}

func newColBuilder() *colBuilder {
	return &colBuilder{}
}

func (b *colBuilder) learn(mem memory.Allocator, kind rowhash.Kind) {
	if b.known {
		return
	}
	b.known = true
	b.kind = kind
	switch kind {
	case rowhash.KindBool:
		b.boolB = array.NewBooleanBuilder(mem)
		b.boolB.AppendNulls(b.pending)
	case rowhash.KindInt:
		b.intB = array.NewInt64Builder(mem)
		b.intB.AppendNulls(b.pending)
	case rowhash.KindFloat, rowhash.KindNaN:
		b.floatB = array.NewFloat64Builder(mem)
		b.floatB.AppendNulls(b.pending)
	case rowhash.KindDate:
		b.dateB = array.NewDate32Builder(mem)
		b.dateB.AppendNulls(b.pending)
	case rowhash.KindTimestamp:
		b.tsB = array.NewTimestampBuilder(mem, &arrow.TimestampType{Unit: arrow.Microsecond})
		b.tsB.AppendNulls(b.pending)
	default:
		b.strB = array.NewStringBuilder(mem)
		b.strB.AppendNulls(b.pending)
	}
}

func (b *colBuilder) Append(mem memory.Allocator, v rowhash.Value) {
	if v.Kind == rowhash.KindNull {
		if !b.known {
			b.pending++
			return
		}
		b.appendNull()
		return
	}
	b.learn(mem, v.Kind)
	switch b.kind {
	case rowhash.KindBool:
		b.boolB.Append(v.Bool)
	case rowhash.KindInt:
		if v.Kind == rowhash.KindFloat || v.Kind == rowhash.KindNaN {
			b.intB.AppendNull()
			return
		}
		b.intB.Append(v.Int)
	case rowhash.KindFloat, rowhash.KindNaN:
		if v.Kind == rowhash.KindInt {
			b.floatB.Append(float64(v.Int))
			return
		}
		b.floatB.Append(v.Float)
	case rowhash.KindDate:
		b.dateB.Append(arrow.Date32(v.Days))
	case rowhash.KindTimestamp:
		b.tsB.Append(arrow.Timestamp(v.Micro))
	default:
		b.strB.Append(v.Str)
	}
}

func (b *colBuilder) appendNull() {
	switch b.kind {
	case rowhash.KindBool:
		b.boolB.AppendNull()
	case rowhash.KindInt:
		b.intB.AppendNull()
	case rowhash.KindFloat, rowhash.KindNaN:
		b.floatB.AppendNull()
	case rowhash.KindDate:
		b.dateB.AppendNull()
	case rowhash.KindTimestamp:
		b.tsB.AppendNull()
	default:
		b.strB.AppendNull()
	}
}

func (b *colBuilder) NewArray() arrow.Array {
	if !b.known {
		// Column was all-null; fall back to string so the schema still
		// carries a concrete, comparable type.
		b.learn(memory.DefaultAllocator, rowhash.KindString)
	}
	switch b.kind {
	case rowhash.KindBool:
		return b.boolB.NewArray()
	case rowhash.KindInt:
		return b.intB.NewArray()
	case rowhash.KindFloat, rowhash.KindNaN:
		return b.floatB.NewArray()
	case rowhash.KindDate:
		return b.dateB.NewArray()
	case rowhash.KindTimestamp:
		return b.tsB.NewArray()
	default:
		return b.strB.NewArray()
	}
}
