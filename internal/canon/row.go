// Package canon turns a columnar batch into the dense structure-of-arrays
// representation the reconciliation engine operates on: one Row per
// input row, carrying its id key, value tuple, temporal bounds, and
// content hash.
package canon

import (
	"strings"

	"btx/internal/rowhash"
	"btx/internal/temporal"
)

// Row is a canonical, comparable bitemporal segment: the unit the
// partitioner groups by id and the reconciler operates on.
type Row struct {
	IDKey         string            // composite key joining the id column values
	IDValues      []rowhash.Value   // the id tuple, preserved for materialization
	Values        []rowhash.Value   // the value tuple, in column order
	Eff           temporal.Interval // effective-time range
	AsOf          temporal.Interval // as-of-time range
	ValueHash     string
	OriginalIndex int // row position in the source batch
}

// IsCurrent reports whether a row represents a live (not historical,
// not yet expired) belief: as_of_to = INFINITY.
func (r Row) IsCurrent() bool {
	return r.AsOf.To.IsInfinity()
}

// BuildIDKey joins a row's id tuple into a single comparable string key.
// A unit-separator byte delimits fields so that no value content can
// forge a collision across different id tuples: string fields escape
// that byte, the escape byte itself, and the NUL byte used for NULL.
func BuildIDKey(ids []rowhash.Value) string {
	var sb strings.Builder
	for i, v := range ids {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		sb.WriteString(idFieldString(v))
	}
	return sb.String()
}

var idFieldEscaper = strings.NewReplacer("\x1b", "\x1b\x1b", "\x1f", "\x1b\x1f", "\x00", "\x1b\x00")

func idFieldString(v rowhash.Value) string {
	switch v.Kind {
	case rowhash.KindNull:
		return "\x00"
	case rowhash.KindBool:
		if v.Bool {
			return "1"
		}
		return "0"
	case rowhash.KindInt:
		return formatInt(v.Int)
	case rowhash.KindFloat:
		return formatFloat(v.Float)
	case rowhash.KindNaN:
		return "NaN"
	case rowhash.KindDate:
		return formatInt(int64(v.Days))
	case rowhash.KindTimestamp:
		return formatInt(v.Micro)
	case rowhash.KindString:
		return idFieldEscaper.Replace(v.Str)
	default:
		return ""
	}
}
