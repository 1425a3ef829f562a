package calc

import (
	"fmt"
)

// InputError reports a malformed FinancialRecord. It aborts the whole
// computation; no partial results are returned alongside it.
type InputError struct {
	Index  int    // position of the record in the caller's slice
	Entity string // entity of the offending record, may be empty
	Period int
	Field  string // display name of the offending field, e.g. "Total Assets"
	Reason string
}

func (e *InputError) Error() string {
	where := fmt.Sprintf("record %d (year %d)", e.Index, e.Period)
	if e.Entity != "" {
		where = fmt.Sprintf("record %d (%s, year %d)", e.Index, e.Entity, e.Period)
	}
	return fmt.Sprintf("INPUT_ERROR: %s: field %q %s", where, e.Field, e.Reason)
}

const (
	reasonMissing   = "is missing"
	reasonDuplicate = "is duplicated for this entity"
)

// PeriodField is the field name reported when a period is duplicated.
const PeriodField = "Year"
