// Package schemaalign reconciles the current and updates batches onto a
// shared column order before canonicalization, rejecting any batch that
// is missing a required id, value, or temporal column.
package schemaalign

import (
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"btx/internal/errs"
)

// requiredTemporalColumns are mandatory on both batches regardless of id
// or value column configuration.
var requiredTemporalColumns = []string{"effective_from", "effective_to", "as_of_from", "as_of_to"}

// internalColumns are tolerated but never required, and are dropped from
// the aligned column order when only one side carries them.
var internalColumns = map[string]bool{"value_hash": true}

// Validate is a cheap pre-check that every id, value, and temporal column
// named is present on schema. It does not compare the two batches against
// each other; see Align for that.
func Validate(schema *arrow.Schema, idCols, valueCols []string) error {
	present := fieldSet(schema)
	for _, name := range idCols {
		if !present[name] {
			return &errs.MissingColumnError{Column: name}
		}
	}
	for _, name := range valueCols {
		if !present[name] {
			return &errs.MissingColumnError{Column: name}
		}
	}
	for _, name := range requiredTemporalColumns {
		if !present[name] {
			return &errs.MissingColumnError{Column: name}
		}
	}
	return nil
}

// Align finds the common column set between current and updates (ignoring
// value_hash when only one side carries it) and reorders the wider side to
// match the narrower side's order (current's order when both are equally
// wide). An empty current batch (zero fields)
// adopts the updates schema outright. Returns an error if either side is
// missing a required id/value/temporal column.
func Align(current, updates arrow.Record, idCols, valueCols []string) (arrow.Record, arrow.Record, error) {
	if current == nil || len(current.Schema().Fields()) == 0 {
		if err := Validate(updates.Schema(), idCols, valueCols); err != nil {
			return nil, nil, err
		}
		return current, updates, nil
	}

	if err := Validate(current.Schema(), idCols, valueCols); err != nil {
		return nil, nil, err
	}
	if err := Validate(updates.Schema(), idCols, valueCols); err != nil {
		return nil, nil, err
	}

	curSet := fieldSet(current.Schema())
	updSet := fieldSet(updates.Schema())

	var missing, extra []string
	for name := range curSet {
		if internalColumns[name] {
			continue
		}
		if !updSet[name] {
			missing = append(missing, name)
		}
	}
	for name := range updSet {
		if internalColumns[name] {
			continue
		}
		if !curSet[name] {
			extra = append(extra, name)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return nil, nil, &errs.SchemaMismatchError{Missing: missing, Extra: extra}
	}

	order := orderedNames(current.Schema())
	if len(updates.Schema().Fields()) < len(current.Schema().Fields()) {
		order = orderedNames(updates.Schema())
	}
	return reorder(current, order), reorder(updates, order), nil
}

func fieldSet(schema *arrow.Schema) map[string]bool {
	m := make(map[string]bool, len(schema.Fields()))
	for _, f := range schema.Fields() {
		m[f.Name] = true
	}
	return m
}

func orderedNames(schema *arrow.Schema) []string {
	names := make([]string, 0, len(schema.Fields()))
	for _, f := range schema.Fields() {
		names = append(names, f.Name)
	}
	return names
}

// reorder rebuilds rec with its columns in the given name order. Names not
// present on rec are skipped, and columns of rec not named in order are
// dropped.
func reorder(rec arrow.Record, order []string) arrow.Record {
	index := make(map[string]int, len(rec.Schema().Fields()))
	for i, f := range rec.Schema().Fields() {
		index[f.Name] = i
	}

	fields := make([]arrow.Field, 0, len(order))
	cols := make([]arrow.Array, 0, len(order))
	for _, name := range order {
		i, ok := index[name]
		if !ok {
			continue
		}
		fields = append(fields, rec.Schema().Field(i))
		cols = append(cols, rec.Column(i))
	}

	newSchema := arrow.NewSchema(fields, nil)
	return array.NewRecord(newSchema, cols, rec.NumRows())
}
