package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/opsdash/shortage/pkg/application/services"
	"github.com/opsdash/shortage/pkg/domain/entities"
	"github.com/opsdash/shortage/pkg/infrastructure/backend/memory"
	"github.com/opsdash/shortage/pkg/infrastructure/events"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := memory.NewBackend()
	var records []*entities.ShortageRecord
	for _, seed := range []struct {
		recordID, itemID, itemName, recipeName string
		shortage                               entities.Quantity
	}{
		{"R1", "ITM-1", "Flour", "Baguette", 6},
		{"R2", "ITM-1", "Flour", "Croissant", 4},
		{"R3", "ITM-2", "Butter", "Croissant", 9},
	} {
		record, err := entities.NewShortageRecord(
			entities.RecordID(seed.recordID),
			entities.ItemID(seed.itemID),
			seed.itemName,
			seed.recipeName,
			seed.shortage,
			entities.Quantity(10),
			decimal.RequireFromString("1.00"),
			testTime,
		)
		if err != nil {
			t.Fatalf("Failed to build seed record: %v", err)
		}
		records = append(records, record)
	}
	backend.LoadShortages(records)

	auditLog := events.NewInMemoryEventStore()
	board := services.NewShortageBoard(backend, auditLog)
	if err := board.Refresh(context.Background()); err != nil {
		t.Fatalf("Failed to refresh board: %v", err)
	}
	return NewRouter(NewHandler(board, auditLog))
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

type shortagesResponse struct {
	Shortages []struct {
		GroupKey          string `json:"group_key"`
		ItemName          string `json:"item_name"`
		ShortageQuantity  int64  `json:"shortage_quantity"`
		UpdatedStock      *int64 `json:"updated_stock"`
		RemainingShortage int64  `json:"remaining_shortage"`
		IsFullyResolved   bool   `json:"is_fully_resolved"`
		IsGrouped         bool   `json:"is_grouped"`
	} `json:"shortages"`
}

func TestServer_GetShortagesReturnsGroupedView(t *testing.T) {
	router := testRouter(t)

	recorder := doJSON(t, router, http.MethodGet, "/api/shortages", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body)
	}

	var response shortagesResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response.Shortages) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(response.Shortages))
	}

	flour := response.Shortages[0]
	if flour.GroupKey != "ITM-1" || flour.ShortageQuantity != 10 || !flour.IsGrouped {
		t.Errorf("Unexpected flour group: %+v", flour)
	}
}

func TestServer_EditReconcileRoundTrip(t *testing.T) {
	router := testRouter(t)

	// Aggregate stock entry on the grouped flour row.
	recorder := doJSON(t, router, http.MethodPut, "/api/groups/ITM-1/stock", gin.H{"value": "10"})
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", recorder.Code, recorder.Body)
	}

	// The view now shows the pending aggregate as resolved.
	recorder = doJSON(t, router, http.MethodGet, "/api/shortages", nil)
	var pending shortagesResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &pending); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if pending.Shortages[0].UpdatedStock == nil || *pending.Shortages[0].UpdatedStock != 10 {
		t.Fatalf("Expected pending aggregate stock 10, got %+v", pending.Shortages[0])
	}
	if !pending.Shortages[0].IsFullyResolved {
		t.Error("Expected flour group to show as fully resolved before submission")
	}

	recorder = doJSON(t, router, http.MethodPost, "/api/reconcile", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body)
	}

	var result struct {
		FullySucceeded bool `json:"fully_succeeded"`
		GroupedStock   struct {
			Succeeded int `json:"succeeded"`
		} `json:"grouped_stock"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !result.FullySucceeded || result.GroupedStock.Succeeded != 1 {
		t.Fatalf("Unexpected submission result: %s", recorder.Body)
	}

	// The refreshed working set no longer contains the resolved group.
	recorder = doJSON(t, router, http.MethodGet, "/api/shortages", nil)
	var after shortagesResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &after); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	for _, group := range after.Shortages {
		if group.GroupKey == "ITM-1" {
			t.Errorf("Expected flour group to leave the working set, still present: %+v", group)
		}
	}
}

func TestServer_UnknownGroupReturns404(t *testing.T) {
	router := testRouter(t)

	recorder := doJSON(t, router, http.MethodPut, "/api/groups/NO-SUCH/stock", gin.H{"value": "5"})
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", recorder.Code)
	}
}

func TestServer_MalformedBodyReturns400(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/api/shortages/R1/stock", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", recorder.Code)
	}
}

func TestServer_AuditTrailExposesEvents(t *testing.T) {
	router := testRouter(t)

	doJSON(t, router, http.MethodPut, "/api/shortages/R3/stock", gin.H{"value": "4"})
	doJSON(t, router, http.MethodPost, "/api/reconcile", nil)

	recorder := doJSON(t, router, http.MethodGet, "/api/audit", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", recorder.Code)
	}

	var response struct {
		Events []struct {
			Type string `json:"type"`
		} `json:"events"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	var sawSubmission bool
	for _, event := range response.Events {
		if event.Type == events.ReconciliationSubmittedEvent {
			sawSubmission = true
		}
	}
	if !sawSubmission {
		t.Error("Expected the audit trail to contain a submission event")
	}
}
