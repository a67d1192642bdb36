package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opsdash/shortage/pkg/domain/entities"
	"github.com/opsdash/shortage/pkg/domain/repositories"
)

// Client implements ShortageBackend against the ERP's REST API. It also
// implements StockAdder through the backend's atomic stock-add endpoint,
// which the submitter prefers over the read-modify-write pair.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a REST backend client. An empty auth token sends no
// Authorization header.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Verify interface compliance
var (
	_ repositories.ShortageBackend = (*Client)(nil)
	_ repositories.StockAdder      = (*Client)(nil)
)

// shortageRow is the wire shape of one BOM shortage row.
type shortageRow struct {
	RecordID         string          `json:"record_id"`
	ItemID           string          `json:"item_id"`
	ItemName         string          `json:"item_name"`
	BOMName          string          `json:"bom_name"`
	ShortageQuantity int64           `json:"shortage_quantity"`
	CurrentStock     int64           `json:"current_stock"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// FetchShortages returns the current BOM-shortage snapshot.
func (c *Client) FetchShortages(ctx context.Context) ([]*entities.ShortageRecord, error) {
	var rows []shortageRow
	if err := c.do(ctx, http.MethodGet, "/api/bom/shortages", nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch shortages: %w", err)
	}

	records := make([]*entities.ShortageRecord, 0, len(rows))
	for _, row := range rows {
		record, err := entities.NewShortageRecord(
			entities.RecordID(row.RecordID),
			entities.ItemID(row.ItemID),
			row.ItemName,
			row.BOMName,
			entities.Quantity(row.ShortageQuantity),
			entities.Quantity(row.CurrentStock),
			row.CurrentPrice,
			row.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("invalid shortage row for item %q: %w", row.ItemName, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// UpdateItemPrice writes a corrected unit price for an item.
func (c *Client) UpdateItemPrice(ctx context.Context, itemID entities.ItemID, newPrice decimal.Decimal) error {
	body := map[string]decimal.Decimal{"price": newPrice}
	path := fmt.Sprintf("/api/items/%s/price", url.PathEscape(string(itemID)))
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// GetItemStock returns the item's current absolute stock level.
func (c *Client) GetItemStock(ctx context.Context, itemID entities.ItemID) (entities.Quantity, error) {
	var response struct {
		Stock int64 `json:"stock"`
	}
	path := fmt.Sprintf("/api/items/%s/stock", url.PathEscape(string(itemID)))
	if err := c.do(ctx, http.MethodGet, path, nil, &response); err != nil {
		return 0, err
	}
	return entities.Quantity(response.Stock), nil
}

// SetItemStock writes an absolute stock level for an item.
func (c *Client) SetItemStock(ctx context.Context, itemID entities.ItemID, newStock entities.Quantity) error {
	body := map[string]int64{"stock": int64(newStock)}
	path := fmt.Sprintf("/api/items/%s/stock", url.PathEscape(string(itemID)))
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// AddItemStock increments an item's stock through the backend's atomic
// stock-add endpoint.
func (c *Client) AddItemStock(ctx context.Context, itemID entities.ItemID, delta entities.Quantity) error {
	body := map[string]int64{"delta": int64(delta)}
	path := fmt.Sprintf("/api/items/%s/stock/add", url.PathEscape(string(itemID)))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// AddStockToShortage credits received units against one shortage record.
func (c *Client) AddStockToShortage(ctx context.Context, recordID entities.RecordID, stockToAdd entities.Quantity) error {
	body := map[string]int64{"stock_to_add": int64(stockToAdd)}
	path := fmt.Sprintf("/api/bom/shortages/%s/stock", url.PathEscape(string(recordID)))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
