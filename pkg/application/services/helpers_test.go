package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opsdash/shortage/pkg/domain/entities"
)

// makeRecord builds a shortage record for tests, failing the test on
// invalid input.
func makeRecord(t *testing.T, recordID, itemID, itemName, recipeName string, shortage entities.Quantity, price string, updatedAt time.Time) *entities.ShortageRecord {
	t.Helper()

	record, err := entities.NewShortageRecord(
		entities.RecordID(recordID),
		entities.ItemID(itemID),
		itemName,
		recipeName,
		shortage,
		entities.Quantity(10),
		decimal.RequireFromString(price),
		updatedAt,
	)
	if err != nil {
		t.Fatalf("Failed to build shortage record: %v", err)
	}
	return record
}

func quantityPtr(v entities.Quantity) *entities.Quantity {
	return &v
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
