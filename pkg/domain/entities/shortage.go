package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RecordID uniquely identifies one shortage row for one (recipe, item) pair
type RecordID string

// ItemID identifies a physical raw material in the item master
type ItemID string

// GroupKey identifies the shared item identity a group of shortage
// records is merged under
type GroupKey string

// Quantity represents an integer quantity value for discrete material units
type Quantity int64

// ShortageRecord is one row produced by BOM explosion for one
// (recipe, item) pair. ShortageQuantity, CurrentStock and CurrentPrice
// are the server baseline and stay immutable until the next refresh;
// UpdatedStock and UpdatedPrice carry pending operator input.
type ShortageRecord struct {
	RecordID         RecordID
	ItemID           ItemID
	ItemName         string
	RecipeName       string
	ShortageQuantity Quantity
	CurrentStock     Quantity
	CurrentPrice     decimal.Decimal
	UpdatedStock     *Quantity        // additional stock entered by the operator, nil = no override
	UpdatedPrice     *decimal.Decimal // corrected unit price, nil = no override
	UpdatedAt        time.Time
}

// NewShortageRecord creates a validated ShortageRecord. An empty record ID
// is synthesized from the recipe and item names.
func NewShortageRecord(recordID RecordID, itemID ItemID, itemName, recipeName string, shortageQty, currentStock Quantity, currentPrice decimal.Decimal, updatedAt time.Time) (*ShortageRecord, error) {
	if itemName == "" {
		return nil, fmt.Errorf("item name cannot be empty")
	}
	if shortageQty < 0 {
		return nil, fmt.Errorf("shortage quantity cannot be negative, got %d", shortageQty)
	}
	if currentStock < 0 {
		return nil, fmt.Errorf("current stock cannot be negative, got %d", currentStock)
	}
	if recordID == "" {
		recordID = SynthesizeRecordID(recipeName, itemName)
	}

	return &ShortageRecord{
		RecordID:         recordID,
		ItemID:           itemID,
		ItemName:         itemName,
		RecipeName:       recipeName,
		ShortageQuantity: shortageQty,
		CurrentStock:     currentStock,
		CurrentPrice:     currentPrice,
		UpdatedAt:        updatedAt,
	}, nil
}

// SynthesizeRecordID builds a stable record identity for backends that
// omit one.
func SynthesizeRecordID(recipeName, itemName string) RecordID {
	return RecordID(recipeName + "-" + itemName)
}

// GroupKey returns the item identity this record groups under: the item ID
// when present, otherwise the lower-cased item name.
func (r *ShortageRecord) GroupKey() GroupKey {
	if r.ItemID != "" {
		return GroupKey(r.ItemID)
	}
	return GroupKey(strings.ToLower(r.ItemName))
}

// EffectiveUpdatedStock returns the pending stock override, or 0 when none
// is set.
func (r *ShortageRecord) EffectiveUpdatedStock() Quantity {
	if r.UpdatedStock == nil {
		return 0
	}
	return *r.UpdatedStock
}

// RemainingShortage is the shortage still uncovered after the pending
// stock override is applied. Never negative.
func (r *ShortageRecord) RemainingShortage() Quantity {
	remaining := r.ShortageQuantity - r.EffectiveUpdatedStock()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsFullyResolved reports whether nothing remains to reconcile on this record.
func (r *ShortageRecord) IsFullyResolved() bool {
	return r.RemainingShortage() == 0
}
