package calc

import (
	"cmp"
	"slices"
)

// values holds the resolved line items of one record, indexed by LineItem.
type values [len(lineItemNames)]float64

// Normalize validates records and returns a copy sorted by (Entity, Period)
// ascending with Securities defaulted to zero.
//
// A record missing any required line item, or a second record for an
// (Entity, Period) pair already seen, yields an *InputError. The input slice
// is not modified.
func Normalize(records []FinancialRecord) ([]FinancialRecord, error) {
	type indexed struct {
		pos int
		rec FinancialRecord
	}

	items := make([]indexed, 0, len(records))
	for i := range records {
		src := &records[i]
		for _, li := range LineItems {
			if _, ok := src.Get(li); !ok && li.Required() {
				return nil, &InputError{
					Index:  i,
					Entity: src.Entity,
					Period: src.Period,
					Field:  li.String(),
					Reason: reasonMissing,
				}
			}
		}
		items = append(items, indexed{pos: i, rec: cloneRecord(src)})
	}

	slices.SortStableFunc(items, func(a, b indexed) int {
		if c := cmp.Compare(a.rec.Entity, b.rec.Entity); c != 0 {
			return c
		}
		return cmp.Compare(a.rec.Period, b.rec.Period)
	})

	out := make([]FinancialRecord, len(items))
	for k, it := range items {
		if k > 0 {
			prev := items[k-1].rec
			if prev.Entity == it.rec.Entity && prev.Period == it.rec.Period {
				return nil, &InputError{
					Index:  it.pos,
					Entity: it.rec.Entity,
					Period: it.rec.Period,
					Field:  PeriodField,
					Reason: reasonDuplicate,
				}
			}
		}
		out[k] = it.rec
	}
	return out, nil
}

// cloneRecord copies every supplied value into fresh storage so callers'
// records are never aliased by the engine.
func cloneRecord(src *FinancialRecord) FinancialRecord {
	dst := FinancialRecord{Entity: src.Entity, Period: src.Period}
	for _, li := range LineItems {
		if v, ok := src.Get(li); ok {
			dst.Set(li, v)
		}
	}
	if dst.Securities == nil {
		dst.Securities = Float(0)
	}
	return dst
}

// =============================================================================
// PRIOR-PERIOD ALIGNMENT
// =============================================================================

// ledger is an arena of normalized rows plus a per-entity index into it.
// The prior period of a row is the previous row of the same group; the first
// row of every group has none.
type ledger struct {
	rows   []ledgerRow
	groups []ledgerGroup
}

type ledgerRow struct {
	entity string
	period int
	v      values
}

type ledgerGroup struct {
	entity string
	rows   []int // arena positions in ascending period order
}

// newLedger builds the arena from records already sorted by Normalize.
func newLedger(sorted []FinancialRecord) *ledger {
	l := &ledger{rows: make([]ledgerRow, len(sorted))}
	for i := range sorted {
		rec := &sorted[i]
		row := ledgerRow{entity: rec.Entity, period: rec.Period}
		for _, li := range LineItems {
			row.v[li], _ = rec.Get(li)
		}
		l.rows[i] = row

		if n := len(l.groups); n == 0 || l.groups[n-1].entity != rec.Entity {
			l.groups = append(l.groups, ledgerGroup{entity: rec.Entity})
		}
		g := &l.groups[len(l.groups)-1]
		g.rows = append(g.rows, i)
	}
	return l
}

// pairs calls fn for every row that has a prior period, in arena order.
func (l *ledger) pairs(fn func(cur, prev *ledgerRow)) {
	for _, g := range l.groups {
		for k := 1; k < len(g.rows); k++ {
			fn(&l.rows[g.rows[k]], &l.rows[g.rows[k-1]])
		}
	}
}
