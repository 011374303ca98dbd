// Package conflate implements the optional update pre-pass: merging
// adjacent same-hash update segments into one before partitioning.
package conflate

import (
	"sort"

	"btx/internal/canon"
)

// Rows groups updates by (IDKey, ValueHash), sorts each group by
// EffFrom, and replaces runs where one segment's EffTo touches the
// next's EffFrom with a single segment spanning the run. Segments whose
// hash differs, or whose ranges are not touching, are left untouched.
// Non-update rows (current state) must never be passed to this function;
// self-conflation of the current timeline is out of scope.
func Rows(updates []canon.Row) []canon.Row {
	if len(updates) == 0 {
		return updates
	}

	groups := make(map[string][]canon.Row, len(updates))
	order := make([]string, 0, len(updates))
	for _, r := range updates {
		key := r.IDKey + "\x1e" + r.ValueHash
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	out := make([]canon.Row, 0, len(updates))
	for _, key := range order {
		out = append(out, conflateGroup(groups[key])...)
	}
	return out
}

func conflateGroup(rows []canon.Row) []canon.Row {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Eff.From < rows[j].Eff.From })

	merged := make([]canon.Row, 0, len(rows))
	current := rows[0]
	for _, next := range rows[1:] {
		if current.Eff.To == next.Eff.From {
			current.Eff.To = next.Eff.To
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)
	return merged
}
