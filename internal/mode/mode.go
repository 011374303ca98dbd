// Package mode implements the delta/full_state semantics that decide
// what happens to an id that appears only on one side of a reconciliation.
package mode

import (
	"btx/internal/partition"
	"btx/internal/reconcile"
	"btx/internal/temporal"
)

// Mode selects which ids absent from the update batch are affected.
type Mode uint8

const (
	// Delta touches only ids present in the update batch.
	Delta Mode = iota
	// FullState additionally tombstones every current id absent from
	// updates, provided its open-ended record is not future-dated.
	FullState
)

// Policy decides the outcome for a partition whose update side is empty.
// HandleAbsent's second return value is false when the id should be left
// untouched entirely (delta mode, or a future-dated record under
// full_state's backfill guard).
type Policy interface {
	HandleAbsent(p partition.Partition, systemDate temporal.Timestamp) (reconcile.Result, bool)
}

// PolicyFor returns the Policy implementing m.
func PolicyFor(m Mode) Policy {
	if m == FullState {
		return fullStatePolicy{}
	}
	return deltaPolicy{}
}

type deltaPolicy struct{}

func (deltaPolicy) HandleAbsent(partition.Partition, temporal.Timestamp) (reconcile.Result, bool) {
	return reconcile.Result{}, false
}

type fullStatePolicy struct{}

// HandleAbsent tombstones every live open-ended current record not
// backfilled from the future: eff_from > systemDate records are left
// untouched, since bounding them at systemDate would produce an invalid
// (inverted) range. Records whose eff_to is already bounded are left as
// they are.
func (fullStatePolicy) HandleAbsent(p partition.Partition, systemDate temporal.Timestamp) (reconcile.Result, bool) {
	res := reconcile.Result{IDKey: p.IDKey}
	for _, c := range p.Current {
		if c.Eff.From > systemDate || !c.Eff.To.IsInfinity() {
			continue
		}
		res.Expires = append(res.Expires, reconcile.ExpireOp{OriginalIndex: c.OriginalIndex, AsOfTo: systemDate})
		res.Inserts = append(res.Inserts, reconcile.InsertRow{
			IDValues:  c.IDValues,
			Values:    c.Values,
			Eff:       temporal.Interval{From: c.Eff.From, To: systemDate},
			AsOfFrom:  systemDate,
			AsOfTo:    temporal.Infinity,
			ValueHash: c.ValueHash,
			Kind:      reconcile.Tombstone,
		})
	}
	if len(res.Expires) == 0 {
		return reconcile.Result{}, false
	}
	return res, true
}
