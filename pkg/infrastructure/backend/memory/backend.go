package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/opsdash/shortage/pkg/domain/entities"
	"github.com/opsdash/shortage/pkg/domain/repositories"
)

// Backend is an in-memory ShortageBackend used by tests and demo mode. It
// emulates the ERP's behavior: crediting stock against a shortage shrinks
// that record, adding item stock retires shortage rows for the item in
// snapshot order, and fully resolved rows drop out of the next fetch.
type Backend struct {
	mutex     sync.Mutex
	shortages []*entities.ShortageRecord
	itemStock map[entities.ItemID]entities.Quantity
	itemPrice map[entities.ItemID]decimal.Decimal
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{
		itemStock: make(map[entities.ItemID]entities.Quantity),
		itemPrice: make(map[entities.ItemID]decimal.Decimal),
	}
}

// Verify interface compliance
var (
	_ repositories.ShortageBackend = (*Backend)(nil)
	_ repositories.StockAdder      = (*Backend)(nil)
)

// LoadShortages seeds the backend with shortage rows. Item stock and price
// baselines are taken from each record unless already seeded.
func (b *Backend) LoadShortages(records []*entities.ShortageRecord) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, record := range records {
		copied := *record
		b.shortages = append(b.shortages, &copied)
		if record.ItemID == "" {
			continue
		}
		if _, ok := b.itemStock[record.ItemID]; !ok {
			b.itemStock[record.ItemID] = record.CurrentStock
		}
		if _, ok := b.itemPrice[record.ItemID]; !ok {
			b.itemPrice[record.ItemID] = record.CurrentPrice
		}
	}
}

// FetchShortages returns copies of the unresolved shortage rows with the
// current item stock and price baselines applied.
func (b *Backend) FetchShortages(ctx context.Context) ([]*entities.ShortageRecord, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var out []*entities.ShortageRecord
	for _, record := range b.shortages {
		if record.ShortageQuantity == 0 {
			continue
		}
		copied := *record
		copied.UpdatedStock = nil
		copied.UpdatedPrice = nil
		if record.ItemID != "" {
			if stock, ok := b.itemStock[record.ItemID]; ok {
				copied.CurrentStock = stock
			}
			if price, ok := b.itemPrice[record.ItemID]; ok {
				copied.CurrentPrice = price
			}
		}
		out = append(out, &copied)
	}
	return out, nil
}

// UpdateItemPrice writes a corrected unit price for an item.
func (b *Backend) UpdateItemPrice(ctx context.Context, itemID entities.ItemID, newPrice decimal.Decimal) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.itemPrice[itemID]; !ok {
		return fmt.Errorf("item not found: %s", itemID)
	}
	b.itemPrice[itemID] = newPrice
	return nil
}

// GetItemStock returns the item's current absolute stock.
func (b *Backend) GetItemStock(ctx context.Context, itemID entities.ItemID) (entities.Quantity, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	stock, ok := b.itemStock[itemID]
	if !ok {
		return 0, fmt.Errorf("item not found: %s", itemID)
	}
	return stock, nil
}

// SetItemStock writes an absolute stock level for an item.
func (b *Backend) SetItemStock(ctx context.Context, itemID entities.ItemID, newStock entities.Quantity) error {
	if newStock < 0 {
		return fmt.Errorf("stock cannot be negative, got %d", newStock)
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.itemStock[itemID]; !ok {
		return fmt.Errorf("item not found: %s", itemID)
	}
	previous := b.itemStock[itemID]
	b.itemStock[itemID] = newStock
	if newStock > previous {
		b.consumeShortages(itemID, newStock-previous)
	}
	return nil
}

// AddItemStock atomically increments an item's stock, retiring shortage
// rows for the item in snapshot order the way a re-explosion would.
func (b *Backend) AddItemStock(ctx context.Context, itemID entities.ItemID, delta entities.Quantity) error {
	if delta < 0 {
		return fmt.Errorf("stock delta cannot be negative, got %d", delta)
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.itemStock[itemID]; !ok {
		return fmt.Errorf("item not found: %s", itemID)
	}
	b.itemStock[itemID] += delta
	b.consumeShortages(itemID, delta)
	return nil
}

// AddStockToShortage credits received units against one shortage record.
func (b *Backend) AddStockToShortage(ctx context.Context, recordID entities.RecordID, stockToAdd entities.Quantity) error {
	if stockToAdd < 0 {
		return fmt.Errorf("stock cannot be negative, got %d", stockToAdd)
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, record := range b.shortages {
		if record.RecordID != recordID {
			continue
		}
		applied := stockToAdd
		if applied > record.ShortageQuantity {
			applied = record.ShortageQuantity
		}
		record.ShortageQuantity -= applied
		if record.ItemID != "" {
			b.itemStock[record.ItemID] += stockToAdd - applied
		}
		return nil
	}
	return fmt.Errorf("shortage record not found: %s", recordID)
}

// consumeShortages retires shortage rows for an item in snapshot order.
// Caller holds the mutex.
func (b *Backend) consumeShortages(itemID entities.ItemID, available entities.Quantity) {
	for _, record := range b.shortages {
		if available == 0 {
			return
		}
		if record.ItemID != itemID || record.ShortageQuantity == 0 {
			continue
		}
		applied := available
		if applied > record.ShortageQuantity {
			applied = record.ShortageQuantity
		}
		record.ShortageQuantity -= applied
		available -= applied
	}
}
