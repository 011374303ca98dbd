// Package partition groups canonicalized rows by id key into independent
// work units for the parallel per-id reconciler.
package partition

import (
	"sort"

	"btx/internal/canon"
)

// Partition is one id's current timeline and incoming updates.
type Partition struct {
	IDKey   string
	Current []canon.Row
	Updates []canon.Row
}

// Build groups current (filtered to live rows, as_of_to = INFINITY) and
// updates by id key. The returned slice is sorted ascending by IDKey so
// that downstream result assembly is deterministic regardless of
// execution order.
func Build(current, updates []canon.Row) []Partition {
	byID := make(map[string]*Partition)
	order := make([]string, 0)

	ensure := func(key string) *Partition {
		p, ok := byID[key]
		if !ok {
			p = &Partition{IDKey: key}
			byID[key] = p
			order = append(order, key)
		}
		return p
	}

	for _, r := range current {
		if !r.IsCurrent() {
			continue
		}
		p := ensure(r.IDKey)
		p.Current = append(p.Current, r)
	}
	for _, r := range updates {
		p := ensure(r.IDKey)
		p.Updates = append(p.Updates, r)
	}

	sort.Strings(order)
	out := make([]Partition, len(order))
	for i, key := range order {
		p := byID[key]
		sort.Slice(p.Current, func(a, b int) bool { return p.Current[a].Eff.From < p.Current[b].Eff.From })
		sort.Slice(p.Updates, func(a, b int) bool { return p.Updates[a].Eff.From < p.Updates[b].Eff.From })
		out[i] = *p
	}
	return out
}
