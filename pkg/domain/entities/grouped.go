package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GroupedShortage is the merged view of all shortage records that refer to
// the same physical item across recipes. It is derived on every render and
// never persisted.
type GroupedShortage struct {
	GroupKey         GroupKey
	ItemID           ItemID
	ItemName         string
	RecipeNames      []string
	ShortageQuantity Quantity // sum of member shortages
	CurrentStock     Quantity
	CurrentPrice     decimal.Decimal
	PriceUpdatedAt   time.Time
	UpdatedStock     *Quantity // direct aggregate input, or sum of member overrides
	UpdatedPrice     *decimal.Decimal
	MemberIDs        []RecordID
	Members          []ShortageRecord
}

// IsGrouped reports whether this row actually merges more than one
// underlying shortage record.
func (g *GroupedShortage) IsGrouped() bool {
	return len(g.MemberIDs) > 1
}

// EffectiveUpdatedStock returns the aggregate pending stock, or 0 when the
// operator has entered nothing.
func (g *GroupedShortage) EffectiveUpdatedStock() Quantity {
	if g.UpdatedStock == nil {
		return 0
	}
	return *g.UpdatedStock
}

// RemainingShortage is the group shortage still uncovered by the aggregate
// pending stock. Never negative.
func (g *GroupedShortage) RemainingShortage() Quantity {
	remaining := g.ShortageQuantity - g.EffectiveUpdatedStock()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsFullyResolved reports whether the pending stock covers the whole group
// shortage.
func (g *GroupedShortage) IsFullyResolved() bool {
	return g.RemainingShortage() == 0
}

// DisplayRecipes renders the contributing recipe names for the grouped row.
func (g *GroupedShortage) DisplayRecipes() string {
	return strings.Join(g.RecipeNames, ", ")
}
