package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/opsdash/shortage/pkg/domain/entities"
)

func TestClient_FetchShortages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bom/shortages" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Expected bearer token header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"record_id": "R1", "item_id": "ITM-1", "item_name": "Flour", "bom_name": "Baguette",
			 "shortage_quantity": 6, "current_stock": 14, "current_price": "0.82",
			 "updated_at": "2025-06-01T12:00:00Z"},
			{"record_id": "", "item_id": "", "item_name": "Sea Salt", "bom_name": "Focaccia",
			 "shortage_quantity": 2, "current_stock": 5, "current_price": "0.30",
			 "updated_at": "2025-06-01T12:00:00Z"}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-123")
	records, err := client.FetchShortages(context.Background())
	if err != nil {
		t.Fatalf("Failed to fetch shortages: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].RecordID != "R1" || records[0].ShortageQuantity != 6 {
		t.Errorf("Unexpected first record: %+v", records[0])
	}
	if !records[0].CurrentPrice.Equal(decimal.RequireFromString("0.82")) {
		t.Errorf("Expected price 0.82, got %s", records[0].CurrentPrice)
	}
	// The backend omitted the second record's ID; the client synthesizes it.
	if records[1].RecordID != "Focaccia-Sea Salt" {
		t.Errorf("Expected synthesized record ID, got %s", records[1].RecordID)
	}
}

func TestClient_StockAndPriceWrites(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]interface{}
	}
	var calls []call

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		calls = append(calls, call{method: r.Method, path: r.URL.Path, body: body})

		if r.URL.Path == "/api/items/ITM-1/stock" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"stock": 42}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	ctx := context.Background()

	if err := client.UpdateItemPrice(ctx, "ITM-1", decimal.RequireFromString("0.95")); err != nil {
		t.Fatalf("Failed to update price: %v", err)
	}
	stock, err := client.GetItemStock(ctx, "ITM-1")
	if err != nil {
		t.Fatalf("Failed to get stock: %v", err)
	}
	if stock != 42 {
		t.Errorf("Expected stock 42, got %d", stock)
	}
	if err := client.AddItemStock(ctx, "ITM-1", 10); err != nil {
		t.Fatalf("Failed to add stock: %v", err)
	}
	if err := client.AddStockToShortage(ctx, "R1", entities.Quantity(4)); err != nil {
		t.Fatalf("Failed to credit shortage: %v", err)
	}

	expected := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/api/items/ITM-1/price"},
		{http.MethodGet, "/api/items/ITM-1/stock"},
		{http.MethodPost, "/api/items/ITM-1/stock/add"},
		{http.MethodPost, "/api/bom/shortages/R1/stock"},
	}
	if len(calls) != len(expected) {
		t.Fatalf("Expected %d calls, got %d", len(expected), len(calls))
	}
	for i, want := range expected {
		if calls[i].method != want.method || calls[i].path != want.path {
			t.Errorf("Call %d: expected %s %s, got %s %s", i, want.method, want.path, calls[i].method, calls[i].path)
		}
	}
	if delta, ok := calls[2].body["delta"].(float64); !ok || delta != 10 {
		t.Errorf("Expected stock-add delta 10, got %v", calls[2].body)
	}
}

func TestClient_ErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "item locked by another session", http.StatusConflict)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	err := client.UpdateItemPrice(context.Background(), "ITM-1", decimal.RequireFromString("0.95"))
	if err == nil {
		t.Fatal("Expected an error for a 409 response")
	}
}
