package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opsdash/shortage/pkg/domain/entities"
	"github.com/opsdash/shortage/pkg/domain/repositories"
)

// BucketOutcome reports how one submission bucket fared.
type BucketOutcome struct {
	Attempted int
	Succeeded int
	Failed    int
	Errors    []error
}

// SubmissionResult is the per-bucket outcome of one reconciliation batch.
type SubmissionResult struct {
	BatchID         uuid.UUID
	Prices          BucketOutcome
	GroupedStock    BucketOutcome
	IndividualStock BucketOutcome
}

// Succeeded reports whether every issued backend call completed.
func (r *SubmissionResult) Succeeded() bool {
	return r.Prices.Failed == 0 && r.GroupedStock.Failed == 0 && r.IndividualStock.Failed == 0
}

// AnySucceeded reports whether at least one backend call completed, which
// is what makes a snapshot refresh worthwhile.
func (r *SubmissionResult) AnySucceeded() bool {
	return r.Prices.Succeeded > 0 || r.GroupedStock.Succeeded > 0 || r.IndividualStock.Succeeded > 0
}

// priceUpdate is one deduplicated price write and the records it covers.
type priceUpdate struct {
	itemID   entities.ItemID
	newPrice decimal.Decimal
	covers   []entities.RecordID
}

// groupedStockUpdate is one consolidated stock addition for a whole group.
type groupedStockUpdate struct {
	itemID   entities.ItemID
	groupKey entities.GroupKey
	delta    entities.Quantity
	covers   []entities.RecordID
}

// individualStockUpdate credits received units against one shortage record.
type individualStockUpdate struct {
	recordID entities.RecordID
	delta    entities.Quantity
}

// ReconciliationService diffs the pending overlay against the grouped view
// and issues the minimal set of backend writes: deduplicated price updates,
// one consolidated stock addition per multi-member group, and individual
// shortage credits for everything else. A record is never covered by more
// than one stock bucket, so the same physical units are never credited
// twice.
type ReconciliationService struct {
	backend repositories.ShortageBackend
}

// NewReconciliationService creates a submitter against the given backend.
func NewReconciliationService(backend repositories.ShortageBackend) *ReconciliationService {
	return &ReconciliationService{backend: backend}
}

// Submit issues all pending writes as one logical batch. Calls within the
// batch are independent and run concurrently, but the batch waits for every
// call before clearing anything. Buckets that fully succeed have their
// overlay entries cleared; a failed bucket keeps its entries so the
// operator can retry without re-entering data.
func (s *ReconciliationService) Submit(ctx context.Context, groups []*entities.GroupedShortage, overlay *EditOverlay) (*SubmissionResult, error) {
	prices, groupedStock, individualStock, noopPrices := s.partition(groups)

	// A pending price equal to the backend's current value needs no write;
	// drop it immediately so it stops showing as pending.
	overlay.ClearPrices(noopPrices)

	result := &SubmissionResult{
		BatchID: uuid.New(),
	}
	result.Prices.Attempted = len(prices)
	result.GroupedStock.Attempted = len(groupedStock)
	result.IndividualStock.Attempted = len(individualStock)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	record := func(bucket *BucketOutcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			bucket.Failed++
			bucket.Errors = append(bucket.Errors, err)
			return
		}
		bucket.Succeeded++
	}

	for _, update := range prices {
		wg.Add(1)
		go func(u priceUpdate) {
			defer wg.Done()
			err := s.backend.UpdateItemPrice(ctx, u.itemID, u.newPrice)
			if err != nil {
				err = fmt.Errorf("price update for item %s: %w", u.itemID, err)
			}
			record(&result.Prices, err)
		}(update)
	}

	for _, update := range groupedStock {
		wg.Add(1)
		go func(u groupedStockUpdate) {
			defer wg.Done()
			err := s.addItemStock(ctx, u.itemID, u.delta)
			if err != nil {
				err = fmt.Errorf("grouped stock update for item %s: %w", u.itemID, err)
			}
			record(&result.GroupedStock, err)
		}(update)
	}

	for _, update := range individualStock {
		wg.Add(1)
		go func(u individualStockUpdate) {
			defer wg.Done()
			err := s.backend.AddStockToShortage(ctx, u.recordID, u.delta)
			if err != nil {
				err = fmt.Errorf("stock update for record %s: %w", u.recordID, err)
			}
			record(&result.IndividualStock, err)
		}(update)
	}

	wg.Wait()

	if result.Prices.Failed == 0 {
		for _, update := range prices {
			overlay.ClearPrices(update.covers)
		}
	}
	if result.GroupedStock.Failed == 0 {
		for _, update := range groupedStock {
			overlay.ClearStocks(update.covers)
			overlay.ClearGroupInput(update.groupKey)
		}
	}
	if result.IndividualStock.Failed == 0 {
		for _, update := range individualStock {
			overlay.ClearStocks([]entities.RecordID{update.recordID})
		}
	}

	return result, nil
}

// partition sorts pending changes into the three submission buckets. The
// grouped bucket takes every multi-member group with a positive resolved
// aggregate and an addressable item; its members are excluded from the
// individual bucket. Price entries that match the backend's current value
// are returned separately as no-ops so the caller can retire them.
func (s *ReconciliationService) partition(groups []*entities.GroupedShortage) ([]priceUpdate, []groupedStockUpdate, []individualStockUpdate, []entities.RecordID) {
	var (
		prices          []priceUpdate
		groupedStock    []groupedStockUpdate
		individualStock []individualStockUpdate
		noopPrices      []entities.RecordID
	)
	pricedItems := make(map[entities.ItemID]bool)

	for _, group := range groups {
		for i := range group.Members {
			member := &group.Members[i]
			if member.UpdatedPrice == nil || member.ItemID == "" {
				continue
			}
			if member.UpdatedPrice.Equal(member.CurrentPrice) {
				noopPrices = append(noopPrices, member.RecordID)
				continue
			}
			if pricedItems[member.ItemID] {
				// A price entered on any member of a group is written once
				// per item. When members disagree the later row wins, and
				// the single write covers every member that carried one.
				for p := range prices {
					if prices[p].itemID == member.ItemID {
						prices[p].newPrice = *member.UpdatedPrice
						prices[p].covers = append(prices[p].covers, member.RecordID)
					}
				}
				continue
			}
			pricedItems[member.ItemID] = true
			prices = append(prices, priceUpdate{
				itemID:   member.ItemID,
				newPrice: *member.UpdatedPrice,
				covers:   []entities.RecordID{member.RecordID},
			})
		}

		if group.IsGrouped() && group.ItemID != "" && group.EffectiveUpdatedStock() > 0 {
			groupedStock = append(groupedStock, groupedStockUpdate{
				itemID:   group.ItemID,
				groupKey: group.GroupKey,
				delta:    group.EffectiveUpdatedStock(),
				covers:   append([]entities.RecordID(nil), group.MemberIDs...),
			})
			continue
		}

		for i := range group.Members {
			member := &group.Members[i]
			if member.EffectiveUpdatedStock() > 0 {
				individualStock = append(individualStock, individualStockUpdate{
					recordID: member.RecordID,
					delta:    member.EffectiveUpdatedStock(),
				})
			}
		}
	}

	return prices, groupedStock, individualStock, noopPrices
}

// addItemStock prefers the backend's atomic increment when it offers one,
// falling back to the read-modify-write pair otherwise. The fallback can
// lose a concurrent update between the read and the write; backends should
// implement StockAdder.
func (s *ReconciliationService) addItemStock(ctx context.Context, itemID entities.ItemID, delta entities.Quantity) error {
	if adder, ok := s.backend.(repositories.StockAdder); ok {
		return adder.AddItemStock(ctx, itemID, delta)
	}

	current, err := s.backend.GetItemStock(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to read current stock: %w", err)
	}
	return s.backend.SetItemStock(ctx, itemID, current+delta)
}
