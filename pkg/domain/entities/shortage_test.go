package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNewShortageRecord_Validation(t *testing.T) {
	tests := []struct {
		name        string
		itemName    string
		shortage    Quantity
		stock       Quantity
		expectError bool
	}{
		{name: "valid", itemName: "Flour", shortage: 6, stock: 10, expectError: false},
		{name: "zero_shortage_valid", itemName: "Flour", shortage: 0, stock: 10, expectError: false},
		{name: "empty_item_name", itemName: "", shortage: 6, stock: 10, expectError: true},
		{name: "negative_shortage", itemName: "Flour", shortage: -1, stock: 10, expectError: true},
		{name: "negative_stock", itemName: "Flour", shortage: 6, stock: -5, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewShortageRecord("R1", "ITM-1", tt.itemName, "Baguette", tt.shortage, tt.stock, decimal.RequireFromString("0.80"), testTime)
			if tt.expectError && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected success, got %v", err)
			}
		})
	}
}

func TestNewShortageRecord_SynthesizesMissingID(t *testing.T) {
	record, err := NewShortageRecord("", "ITM-1", "Flour", "Baguette", 6, 10, decimal.RequireFromString("0.80"), testTime)
	if err != nil {
		t.Fatalf("Failed to create record: %v", err)
	}
	if record.RecordID != "Baguette-Flour" {
		t.Errorf("Expected synthesized ID Baguette-Flour, got %s", record.RecordID)
	}
}

func TestShortageRecord_GroupKey(t *testing.T) {
	tests := []struct {
		name     string
		itemID   ItemID
		itemName string
		expected GroupKey
	}{
		{name: "item_id_preferred", itemID: "ITM-1", itemName: "Flour", expected: "ITM-1"},
		{name: "name_fallback_lower_cased", itemID: "", itemName: "Sea Salt", expected: "sea salt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := ShortageRecord{ItemID: tt.itemID, ItemName: tt.itemName}
			if got := record.GroupKey(); got != tt.expected {
				t.Errorf("Expected group key %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestShortageRecord_RemainingShortage(t *testing.T) {
	five := Quantity(5)
	twelve := Quantity(12)

	tests := []struct {
		name              string
		shortage          Quantity
		updatedStock      *Quantity
		expectedRemaining Quantity
		expectedResolved  bool
	}{
		{name: "no_override", shortage: 10, updatedStock: nil, expectedRemaining: 10, expectedResolved: false},
		{name: "partial_cover", shortage: 10, updatedStock: &five, expectedRemaining: 5, expectedResolved: false},
		{name: "over_cover_clamps_to_zero", shortage: 10, updatedStock: &twelve, expectedRemaining: 0, expectedResolved: true},
		{name: "zero_shortage", shortage: 0, updatedStock: nil, expectedRemaining: 0, expectedResolved: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := ShortageRecord{ShortageQuantity: tt.shortage, UpdatedStock: tt.updatedStock}
			if got := record.RemainingShortage(); got != tt.expectedRemaining {
				t.Errorf("Expected remaining %d, got %d", tt.expectedRemaining, got)
			}
			if got := record.IsFullyResolved(); got != tt.expectedResolved {
				t.Errorf("Expected resolved=%v, got %v", tt.expectedResolved, got)
			}
		})
	}
}

func TestLocalEdit_ApplyTo(t *testing.T) {
	stock := Quantity(4)
	price := decimal.RequireFromString("0.95")
	edit := LocalEdit{UpdatedStock: &stock, UpdatedPrice: &price}

	baseline := ShortageRecord{RecordID: "R1", ShortageQuantity: 10}
	merged := edit.ApplyTo(baseline)

	if merged.UpdatedStock == nil || *merged.UpdatedStock != 4 {
		t.Error("Expected merged record to carry the pending stock")
	}
	if merged.UpdatedPrice == nil || !merged.UpdatedPrice.Equal(price) {
		t.Error("Expected merged record to carry the pending price")
	}
	if baseline.UpdatedStock != nil {
		t.Error("Expected the baseline record to stay untouched")
	}
}

func TestLocalEdit_IsEmpty(t *testing.T) {
	if !(LocalEdit{}).IsEmpty() {
		t.Error("Expected zero-value edit to be empty")
	}
	stock := Quantity(1)
	if (LocalEdit{UpdatedStock: &stock}).IsEmpty() {
		t.Error("Expected edit with pending stock not to be empty")
	}
}
