package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/opsdash/shortage/pkg/domain/entities"
)

// ShortageBackend provides access to the ERP backend that owns durable
// shortage, stock and price state. The engine never persists anything
// itself; every mutation goes through this interface.
type ShortageBackend interface {
	// FetchShortages returns the current BOM-shortage snapshot.
	FetchShortages(ctx context.Context) ([]*entities.ShortageRecord, error)

	// UpdateItemPrice writes a corrected unit price for an item.
	UpdateItemPrice(ctx context.Context, itemID entities.ItemID, newPrice decimal.Decimal) error

	// GetItemStock returns the item's current absolute stock level.
	GetItemStock(ctx context.Context, itemID entities.ItemID) (entities.Quantity, error)

	// SetItemStock writes an absolute stock level for an item. Paired with
	// GetItemStock this is a non-atomic read-modify-write; prefer StockAdder
	// when the backend offers it.
	SetItemStock(ctx context.Context, itemID entities.ItemID, newStock entities.Quantity) error

	// AddStockToShortage credits received units against one specific
	// shortage record. The backend decides whether the shortage becomes
	// fully or partially resolved.
	AddStockToShortage(ctx context.Context, recordID entities.RecordID, stockToAdd entities.Quantity) error
}

// StockAdder is an optional capability of a ShortageBackend: an atomic
// "add N units" stock increment. Backends implementing it are immune to the
// lost-update window of the GetItemStock/SetItemStock pair when two
// operators reconcile the same item concurrently.
type StockAdder interface {
	AddItemStock(ctx context.Context, itemID entities.ItemID, delta entities.Quantity) error
}
