// Package reconcile implements the per-id interval algebra: exact-match
// priority, timeline slicing against updates, adjacency extension,
// open-ended promotion, and post-merge conflation.
package reconcile

import (
	"sort"

	"btx/internal/canon"
	"btx/internal/partition"
	"btx/internal/rowhash"
	"btx/internal/temporal"
)

// EmitKind tags how an emitted insert segment came to exist.
type EmitKind uint8

const (
	// CarryForward is the untouched remainder of a sliced current record.
	CarryForward EmitKind = iota
	// Replace is the portion covered by an update.
	Replace
	// Extend is the fusion of an update with a single adjacent same-hash
	// current record.
	Extend
	// Tombstone closes out a record whose id is absent from the update
	// batch under full_state mode.
	Tombstone
)

// ExpireOp references a current row's original batch index plus the
// as_of_to value the materializer should stamp on it.
type ExpireOp struct {
	OriginalIndex int
	AsOfTo        temporal.Timestamp
}

// InsertRow is a freshly materialized bitemporal segment.
type InsertRow struct {
	IDValues  []rowhash.Value
	Values    []rowhash.Value
	Eff       temporal.Interval
	AsOfFrom  temporal.Timestamp
	AsOfTo    temporal.Timestamp
	ValueHash string
	Kind      EmitKind
}

// Result is one id's reconciliation outcome.
type Result struct {
	IDKey   string
	Expires []ExpireOp
	Inserts []InsertRow
}

// noOrigIndex marks a synthetic segment with no direct link back to a
// single current-batch row (a slice piece, a replace, or an extension).
const noOrigIndex = -1

type segment struct {
	eff       temporal.Interval
	idValues  []rowhash.Value
	values    []rowhash.Value
	hash      string
	origIndex int // >=0 only for an untouched, as-yet-unmodified current row
	touched   bool
	kind      EmitKind
}

type state struct {
	timeline []segment
	expired  map[int]bool
}

// Reconcile runs the per-id algebra for one partition against systemDate,
// which stamps as_of_from on inserts and as_of_to on expirations.
func Reconcile(p partition.Partition, systemDate temporal.Timestamp) Result {
	st := &state{
		timeline: make([]segment, len(p.Current)),
		expired:  make(map[int]bool),
	}
	for i, c := range p.Current {
		st.timeline[i] = segment{
			eff:       c.Eff,
			idValues:  c.IDValues,
			values:    c.Values,
			hash:      c.ValueHash,
			origIndex: c.OriginalIndex,
		}
	}

	satisfied := exactMatches(p.Current, p.Updates)

	for _, u := range p.Updates {
		if satisfied[u.OriginalIndex] {
			continue
		}
		st.applyUpdate(u)
	}

	st.timeline = conflateTouched(st.timeline)

	return assemble(p.IDKey, st, systemDate)
}

// exactMatches returns the set of update row indices whose (eff_from,
// eff_to, value_hash) exactly equals a current row's. Exact matches are
// no-ops: neither expired nor re-inserted.
func exactMatches(current, updates []canon.Row) map[int]bool {
	type key struct {
		from, to temporal.Timestamp
		hash     string
	}
	byKey := make(map[key]bool, len(current))
	for _, c := range current {
		byKey[key{c.Eff.From, c.Eff.To, c.ValueHash}] = true
	}

	satisfied := make(map[int]bool, len(updates))
	for _, u := range updates {
		if byKey[key{u.Eff.From, u.Eff.To, u.ValueHash}] {
			satisfied[u.OriginalIndex] = true
		}
	}
	return satisfied
}

func (st *state) applyUpdate(u canon.Row) {
	overlapping := overlappingIndices(st.timeline, u.Eff)

	if len(overlapping) == 0 {
		if idx, ok := uniqueTouchingSameHash(st.timeline, u); ok {
			st.extendSegment(idx, u)
			return
		}
		st.timeline = append(st.timeline, segment{
			eff:       u.Eff,
			idValues:  u.IDValues,
			values:    u.Values,
			hash:      u.ValueHash,
			origIndex: noOrigIndex,
			touched:   true,
			kind:      Replace,
		})
		return
	}

	for _, idx := range overlapping {
		c := st.timeline[idx]
		if c.hash == u.ValueHash && c.eff.Superset(u.Eff) {
			return // same-value backfill inside existing interval: no-op
		}
	}

	st.sliceAgainst(overlapping, u)
}

func overlappingIndices(timeline []segment, eff temporal.Interval) []int {
	var idxs []int
	for i, s := range timeline {
		if temporal.Overlaps(s.eff, eff) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// uniqueTouchingSameHash finds the single current segment touching u's
// interval with an identical hash, but only when that segment is the
// sole timeline entry carrying that hash — per the backfill-safety rule,
// extension is refused whenever more than one record shares the hash.
func uniqueTouchingSameHash(timeline []segment, u canon.Row) (int, bool) {
	sameHashCount := 0
	touchingIdx := -1
	for i, s := range timeline {
		if s.hash != u.ValueHash {
			continue
		}
		sameHashCount++
		if temporal.Touches(s.eff, u.Eff) {
			touchingIdx = i
		}
	}
	if sameHashCount == 1 && touchingIdx >= 0 {
		return touchingIdx, true
	}
	return -1, false
}

func (st *state) extendSegment(idx int, u canon.Row) {
	c := st.timeline[idx]
	if c.origIndex >= 0 {
		st.expired[c.origIndex] = true
	}
	union := temporal.Interval{
		From: temporal.Min(c.eff.From, u.Eff.From),
		To:   temporal.Max(c.eff.To, u.Eff.To),
	}
	merged := segment{
		eff:       union,
		idValues:  u.IDValues,
		values:    u.Values,
		hash:      u.ValueHash,
		origIndex: noOrigIndex,
		touched:   true,
		kind:      Extend,
	}

	out := make([]segment, 0, len(st.timeline))
	for i, s := range st.timeline {
		if i == idx {
			continue
		}
		out = append(out, s)
	}
	st.timeline = append(out, merged)
}

func (st *state) sliceAgainst(overlapping []int, u canon.Row) {
	overlapSet := make(map[int]bool, len(overlapping))
	for _, i := range overlapping {
		overlapSet[i] = true
	}

	out := make([]segment, 0, len(st.timeline)+2)
	for i, s := range st.timeline {
		if !overlapSet[i] {
			out = append(out, s)
			continue
		}
		if s.origIndex >= 0 {
			st.expired[s.origIndex] = true
		}
		if u.Eff.From > s.eff.From {
			out = append(out, segment{
				eff:       temporal.Interval{From: s.eff.From, To: u.Eff.From},
				idValues:  s.idValues,
				values:    s.values,
				hash:      s.hash,
				origIndex: noOrigIndex,
				touched:   true,
				kind:      CarryForward,
			})
		}
		if s.eff.To > u.Eff.To {
			out = append(out, segment{
				eff:       temporal.Interval{From: u.Eff.To, To: s.eff.To},
				idValues:  s.idValues,
				values:    s.values,
				hash:      s.hash,
				origIndex: noOrigIndex,
				touched:   true,
				kind:      CarryForward,
			})
		}
	}
	out = append(out, segment{
		eff:       u.Eff,
		idValues:  u.IDValues,
		values:    u.Values,
		hash:      u.ValueHash,
		origIndex: noOrigIndex,
		touched:   true,
		kind:      Replace,
	})
	st.timeline = out
}

// conflateTouched merges consecutive touched segments sharing a hash and
// an adjacent boundary. Untouched (unchanged) current segments are never
// folded into a neighbor, even when hashes match.
func conflateTouched(timeline []segment) []segment {
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].eff.From < timeline[j].eff.From })

	out := make([]segment, 0, len(timeline))
	for _, s := range timeline {
		if n := len(out); n > 0 {
			prev := out[n-1]
			if prev.touched && s.touched && prev.hash == s.hash && prev.eff.To == s.eff.From {
				prev.eff.To = s.eff.To
				out[n-1] = prev
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func assemble(idKey string, st *state, systemDate temporal.Timestamp) Result {
	res := Result{IDKey: idKey}

	for idx := range st.expired {
		res.Expires = append(res.Expires, ExpireOp{OriginalIndex: idx, AsOfTo: systemDate})
	}
	sort.Slice(res.Expires, func(i, j int) bool { return res.Expires[i].OriginalIndex < res.Expires[j].OriginalIndex })

	seen := make(map[string]bool, len(st.timeline))
	for _, s := range st.timeline {
		if !s.touched {
			continue // unchanged current row: nothing to emit
		}
		dedupKey := idKey + "\x1e" + s.eff.From.ToTime().String() + "\x1e" + s.eff.To.ToTime().String() + "\x1e" + s.hash
		if seen[dedupKey] {
			continue
		}
		seen[dedupKey] = true
		res.Inserts = append(res.Inserts, InsertRow{
			IDValues:  s.idValues,
			Values:    s.values,
			Eff:       s.eff,
			AsOfFrom:  systemDate,
			AsOfTo:    temporal.Infinity,
			ValueHash: s.hash,
			Kind:      s.kind,
		})
	}
	return res
}
