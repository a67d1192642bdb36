package entities

import "github.com/shopspring/decimal"

// LocalEdit holds operator-entered values for one shortage record that the
// backend has not confirmed yet. It lives only in process memory: created on
// operator input, deleted after a confirmed submission, and dropped when the
// record disappears from a fresh snapshot.
type LocalEdit struct {
	UpdatedStock *Quantity
	UpdatedPrice *decimal.Decimal
}

// IsEmpty reports whether the edit carries no pending value at all.
func (e LocalEdit) IsEmpty() bool {
	return e.UpdatedStock == nil && e.UpdatedPrice == nil
}

// ApplyTo overlays the pending values onto a copy of the baseline record.
func (e LocalEdit) ApplyTo(record ShortageRecord) ShortageRecord {
	if e.UpdatedStock != nil {
		v := *e.UpdatedStock
		record.UpdatedStock = &v
	}
	if e.UpdatedPrice != nil {
		p := *e.UpdatedPrice
		record.UpdatedPrice = &p
	}
	return record
}
