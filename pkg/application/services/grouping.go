package services

import (
	"github.com/opsdash/shortage/pkg/domain/entities"
)

// Group merges shortage records that refer to the same physical item into
// grouped rows for the reconciliation view. The projection is pure: it is
// recomputed from the latest snapshot, the pending overlay and any direct
// aggregate inputs on every render, and identical inputs always produce an
// identical result.
//
// Records whose shortage is already fully resolved are dropped before
// grouping so resolved items never reappear in the working set. Members are
// merged in snapshot order; a direct aggregate input for a group overrides
// the sum of its members' individual overrides.
func Group(records []*entities.ShortageRecord, overlay map[entities.RecordID]entities.LocalEdit, directGroupInputs map[entities.GroupKey]entities.Quantity) []*entities.GroupedShortage {
	groupIndex := make(map[entities.GroupKey]*entities.GroupedShortage)
	var groups []*entities.GroupedShortage

	for _, baseline := range records {
		record := *baseline
		if edit, ok := overlay[record.RecordID]; ok {
			record = edit.ApplyTo(record)
		}

		// Fully resolved rows stay out of the working set.
		if record.ShortageQuantity == 0 && record.RemainingShortage() == 0 {
			continue
		}

		key := record.GroupKey()
		group, exists := groupIndex[key]
		if !exists {
			group = &entities.GroupedShortage{
				GroupKey:       key,
				ItemID:         record.ItemID,
				ItemName:       record.ItemName,
				CurrentStock:   record.CurrentStock,
				CurrentPrice:   record.CurrentPrice,
				PriceUpdatedAt: record.UpdatedAt,
			}
			groupIndex[key] = group
			groups = append(groups, group)
		}

		group.ShortageQuantity += record.ShortageQuantity
		group.MemberIDs = append(group.MemberIDs, record.RecordID)
		group.Members = append(group.Members, record)
		if record.RecipeName != "" {
			group.RecipeNames = append(group.RecipeNames, record.RecipeName)
		}

		// The freshest server row wins for baseline stock and price.
		if record.UpdatedAt.After(group.PriceUpdatedAt) {
			group.CurrentPrice = record.CurrentPrice
			group.CurrentStock = record.CurrentStock
			group.PriceUpdatedAt = record.UpdatedAt
		}

		if record.UpdatedStock != nil {
			sum := group.EffectiveUpdatedStock() + *record.UpdatedStock
			group.UpdatedStock = &sum
		}
		if record.UpdatedPrice != nil && group.UpdatedPrice == nil {
			price := *record.UpdatedPrice
			group.UpdatedPrice = &price
		}
	}

	// A direct aggregate input is authoritative over the member sum.
	for key, group := range groupIndex {
		if direct, ok := directGroupInputs[key]; ok {
			value := direct
			group.UpdatedStock = &value
		}
	}

	return groups
}
