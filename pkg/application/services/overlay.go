package services

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/opsdash/shortage/pkg/domain/entities"
)

// EditOverlay holds operator input that the backend has not confirmed yet,
// keyed by record identity, plus the raw aggregate values entered on grouped
// rows. It is owned by the UI event loop and survives repository refreshes;
// entries leave only through Clear after a confirmed submission or Prune
// when the record vanishes from a fresh snapshot.
//
// The setters take the raw form text. Empty, non-numeric, negative and
// literal zero input all mean "no override": the malformed or cleared field
// falls back to the server baseline instead of failing.
type EditOverlay struct {
	edits       map[entities.RecordID]entities.LocalEdit
	groupInputs map[entities.GroupKey]groupInput
}

// groupInput is one direct aggregate entry plus the membership it was
// apportioned over. The membership decides whether the total is still
// meaningful after a refresh.
type groupInput struct {
	total   entities.Quantity
	members []entities.RecordID
}

// NewEditOverlay creates an empty overlay.
func NewEditOverlay() *EditOverlay {
	return &EditOverlay{
		edits:       make(map[entities.RecordID]entities.LocalEdit),
		groupInputs: make(map[entities.GroupKey]groupInput),
	}
}

// SetStock records the operator's additional-stock input for one
// non-grouped record.
func (o *EditOverlay) SetStock(recordID entities.RecordID, input string) {
	o.setStockValue(recordID, parseQuantityInput(input))
}

// SetPrice records the operator's corrected unit price for one record.
func (o *EditOverlay) SetPrice(recordID entities.RecordID, input string) {
	price := parsePriceInput(input)
	edit := o.edits[recordID]
	edit.UpdatedPrice = price
	o.store(recordID, edit)
}

// SetGroupPrice fans a corrected unit price out to every member of a
// grouped row, so the price reaches the item no matter which member the
// submitter later reads it from.
func (o *EditOverlay) SetGroupPrice(group *entities.GroupedShortage, input string) {
	for _, memberID := range group.MemberIDs {
		o.SetPrice(memberID, input)
	}
}

// SetGroupStock records an aggregate stock input against a grouped row and
// apportions it across the members by their shortage quantities, writing
// the per-member shares back into each member's overlay entry. Clearing the
// aggregate input clears the member shares as well.
func (o *EditOverlay) SetGroupStock(group *entities.GroupedShortage, input string) {
	key := group.GroupKey
	total := parseQuantityInput(input)
	if total == nil {
		delete(o.groupInputs, key)
		for _, memberID := range group.MemberIDs {
			o.setStockValue(memberID, nil)
		}
		return
	}
	o.groupInputs[key] = groupInput{
		total:   *total,
		members: append([]entities.RecordID(nil), group.MemberIDs...),
	}

	weights := make([]entities.Quantity, len(group.Members))
	for i := range group.Members {
		weights[i] = group.Members[i].ShortageQuantity
	}
	shares := Apportion(*total, weights)
	for i, memberID := range group.MemberIDs {
		share := shares[i]
		o.setStockValue(memberID, &share)
	}
}

// Get returns the pending edit for a record, if any.
func (o *EditOverlay) Get(recordID entities.RecordID) (entities.LocalEdit, bool) {
	edit, ok := o.edits[recordID]
	return edit, ok
}

// Edits returns a copy of the pending per-record edits for the grouping
// projection.
func (o *EditOverlay) Edits() map[entities.RecordID]entities.LocalEdit {
	out := make(map[entities.RecordID]entities.LocalEdit, len(o.edits))
	for id, edit := range o.edits {
		out[id] = edit
	}
	return out
}

// GroupInputs returns a copy of the direct aggregate inputs keyed by group.
func (o *EditOverlay) GroupInputs() map[entities.GroupKey]entities.Quantity {
	out := make(map[entities.GroupKey]entities.Quantity, len(o.groupInputs))
	for key, input := range o.groupInputs {
		out[key] = input.total
	}
	return out
}

// Len returns the number of records with pending edits.
func (o *EditOverlay) Len() int {
	return len(o.edits)
}

// ClearStocks drops the pending stock overrides for the given records,
// keeping any pending price corrections.
func (o *EditOverlay) ClearStocks(recordIDs []entities.RecordID) {
	for _, id := range recordIDs {
		if edit, ok := o.edits[id]; ok {
			edit.UpdatedStock = nil
			o.store(id, edit)
		}
	}
}

// ClearPrices drops the pending price corrections for the given records,
// keeping any pending stock overrides.
func (o *EditOverlay) ClearPrices(recordIDs []entities.RecordID) {
	for _, id := range recordIDs {
		if edit, ok := o.edits[id]; ok {
			edit.UpdatedPrice = nil
			o.store(id, edit)
		}
	}
}

// ClearGroupInput drops the direct aggregate input for a group.
func (o *EditOverlay) ClearGroupInput(key entities.GroupKey) {
	delete(o.groupInputs, key)
}

// Clear removes the whole overlay entry for each given record.
func (o *EditOverlay) Clear(recordIDs []entities.RecordID) {
	for _, id := range recordIDs {
		delete(o.edits, id)
	}
}

// Prune drops overlay entries whose records no longer exist in the fresh
// snapshot, and aggregate inputs whose group membership changed, since the
// stored total was apportioned over the old membership and no longer
// matches what a submit would credit. Entries for surviving records are
// kept so a background refetch never loses in-progress operator input.
func (o *EditOverlay) Prune(records []*entities.ShortageRecord) {
	liveRecords := make(map[entities.RecordID]bool, len(records))
	groupMembers := make(map[entities.GroupKey]map[entities.RecordID]bool, len(records))
	for _, record := range records {
		liveRecords[record.RecordID] = true
		key := record.GroupKey()
		if groupMembers[key] == nil {
			groupMembers[key] = make(map[entities.RecordID]bool)
		}
		groupMembers[key][record.RecordID] = true
	}
	for id := range o.edits {
		if !liveRecords[id] {
			delete(o.edits, id)
		}
	}
	for key, input := range o.groupInputs {
		if !sameMembership(input.members, groupMembers[key]) {
			delete(o.groupInputs, key)
		}
	}
}

// sameMembership reports whether the recorded member list matches a
// group's current membership exactly.
func sameMembership(recorded []entities.RecordID, current map[entities.RecordID]bool) bool {
	if len(recorded) != len(current) {
		return false
	}
	for _, id := range recorded {
		if !current[id] {
			return false
		}
	}
	return true
}

func (o *EditOverlay) setStockValue(recordID entities.RecordID, value *entities.Quantity) {
	edit := o.edits[recordID]
	edit.UpdatedStock = value
	o.store(recordID, edit)
}

func (o *EditOverlay) store(recordID entities.RecordID, edit entities.LocalEdit) {
	if edit.IsEmpty() {
		delete(o.edits, recordID)
		return
	}
	o.edits[recordID] = edit
}

// parseQuantityInput coerces raw form text to a stock override. Anything
// that is not a positive integer means "no override".
func parseQuantityInput(input string) *entities.Quantity {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || value <= 0 {
		return nil
	}
	qty := entities.Quantity(value)
	return &qty
}

// parsePriceInput coerces raw form text to a price correction. Anything
// that is not a positive number means "no override".
func parsePriceInput(input string) *decimal.Decimal {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	price, err := decimal.NewFromString(trimmed)
	if err != nil || !price.IsPositive() {
		return nil
	}
	return &price
}
