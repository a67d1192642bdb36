package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/opsdash/shortage/pkg/application/services"
	"github.com/opsdash/shortage/pkg/domain/entities"
	"github.com/opsdash/shortage/pkg/infrastructure/events"
)

// Handler exposes the shortage board to the dashboard frontend. The board
// itself is built for a single-threaded event loop, so every handler takes
// the mutex before touching it.
type Handler struct {
	mutex    sync.Mutex
	board    *services.ShortageBoard
	auditLog events.EventStore
}

// NewHandler creates a handler around a board. The audit log is optional.
func NewHandler(board *services.ShortageBoard, auditLog events.EventStore) *Handler {
	return &Handler{
		board:    board,
		auditLog: auditLog,
	}
}

// NewRouter wires the reconciliation routes onto a gin engine.
func NewRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", handler.Health)

	api := router.Group("/api")
	{
		api.GET("/shortages", handler.GetShortages)
		api.POST("/refresh", handler.RefreshShortages)
		api.PUT("/shortages/:recordID/stock", handler.SetRecordStock)
		api.PUT("/shortages/:recordID/price", handler.SetRecordPrice)
		api.PUT("/groups/:groupKey/stock", handler.SetGroupStock)
		api.PUT("/groups/:groupKey/price", handler.SetGroupPrice)
		api.POST("/reconcile", handler.Reconcile)
		api.GET("/audit", handler.GetAuditTrail)
	}

	return router
}

// editRequest carries the raw operator form text. Malformed or empty text
// clears the override instead of failing, matching form behavior.
type editRequest struct {
	Value string `json:"value"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type memberResponse struct {
	RecordID          entities.RecordID `json:"record_id"`
	RecipeName        string            `json:"recipe_name"`
	ShortageQuantity  int64             `json:"shortage_quantity"`
	UpdatedStock      *int64            `json:"updated_stock,omitempty"`
	RemainingShortage int64             `json:"remaining_shortage"`
}

type groupResponse struct {
	GroupKey          entities.GroupKey `json:"group_key"`
	ItemID            entities.ItemID   `json:"item_id,omitempty"`
	ItemName          string            `json:"item_name"`
	Recipes           string            `json:"recipes"`
	ShortageQuantity  int64             `json:"shortage_quantity"`
	CurrentStock      int64             `json:"current_stock"`
	CurrentPrice      decimal.Decimal   `json:"current_price"`
	UpdatedStock      *int64            `json:"updated_stock,omitempty"`
	UpdatedPrice      *decimal.Decimal  `json:"updated_price,omitempty"`
	RemainingShortage int64             `json:"remaining_shortage"`
	IsFullyResolved   bool              `json:"is_fully_resolved"`
	IsGrouped         bool              `json:"is_grouped"`
	Members           []memberResponse  `json:"members"`
}

// Health reports service liveness.
func (h *Handler) Health(c *gin.Context) {
	h.mutex.Lock()
	lastRefreshed := h.board.LastRefreshed()
	h.mutex.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "shortaged",
		"last_refreshed": lastRefreshed,
		"timestamp":      time.Now().UTC(),
	})
}

// GetShortages returns the current grouped reconciliation view.
func (h *Handler) GetShortages(c *gin.Context) {
	h.mutex.Lock()
	groups := h.board.Groups()
	h.mutex.Unlock()

	response := make([]groupResponse, 0, len(groups))
	for _, group := range groups {
		response = append(response, toGroupResponse(group))
	}
	c.JSON(http.StatusOK, gin.H{"shortages": response})
}

// RefreshShortages refetches the snapshot from the backend. Pending
// operator edits survive the refresh.
func (h *Handler) RefreshShortages(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	h.mutex.Lock()
	err := h.board.Refresh(ctx)
	h.mutex.Unlock()
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResponse{
			Error:   "refresh failed",
			Message: err.Error(),
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// SetRecordStock records operator stock input for one record.
func (h *Handler) SetRecordStock(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	h.mutex.Lock()
	h.board.SetStock(entities.RecordID(c.Param("recordID")), req.Value)
	h.mutex.Unlock()
	c.Status(http.StatusNoContent)
}

// SetRecordPrice records operator price input for one record.
func (h *Handler) SetRecordPrice(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	h.mutex.Lock()
	h.board.SetPrice(entities.RecordID(c.Param("recordID")), req.Value)
	h.mutex.Unlock()
	c.Status(http.StatusNoContent)
}

// SetGroupStock records an aggregate stock input on a grouped row and
// apportions it across the members.
func (h *Handler) SetGroupStock(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	h.mutex.Lock()
	err := h.board.SetGroupStock(entities.GroupKey(c.Param("groupKey")), req.Value)
	h.mutex.Unlock()
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown group", Message: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// SetGroupPrice records a corrected price on a grouped row.
func (h *Handler) SetGroupPrice(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	h.mutex.Lock()
	err := h.board.SetGroupPrice(entities.GroupKey(c.Param("groupKey")), req.Value)
	h.mutex.Unlock()
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown group", Message: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Reconcile submits all pending edits as one batch and reports the
// per-bucket outcome. 207 signals a partial failure: the failed bucket's
// edits are retained for retry.
func (h *Handler) Reconcile(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	h.mutex.Lock()
	result, err := h.board.Submit(ctx)
	h.mutex.Unlock()
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResponse{
			Error:   "submission failed",
			Message: err.Error(),
		})
		return
	}

	status := http.StatusOK
	if !result.Succeeded() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"batch_id":         result.BatchID.String(),
		"prices":           toBucketResponse(result.Prices),
		"grouped_stock":    toBucketResponse(result.GroupedStock),
		"individual_stock": toBucketResponse(result.IndividualStock),
		"fully_succeeded":  result.Succeeded(),
	})
}

// GetAuditTrail returns the session's reconciliation audit events.
func (h *Handler) GetAuditTrail(c *gin.Context) {
	if h.auditLog == nil {
		c.JSON(http.StatusOK, gin.H{"events": []gin.H{}})
		return
	}

	auditEvents, err := h.auditLog.ReadAllEvents(0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "audit trail unavailable",
			Message: err.Error(),
		})
		return
	}

	response := make([]gin.H, 0, len(auditEvents))
	for _, event := range auditEvents {
		response = append(response, gin.H{
			"type":      event.Type(),
			"timestamp": event.Timestamp(),
			"data":      event.Data(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": response})
}

func toGroupResponse(group *entities.GroupedShortage) groupResponse {
	response := groupResponse{
		GroupKey:          group.GroupKey,
		ItemID:            group.ItemID,
		ItemName:          group.ItemName,
		Recipes:           group.DisplayRecipes(),
		ShortageQuantity:  int64(group.ShortageQuantity),
		CurrentStock:      int64(group.CurrentStock),
		CurrentPrice:      group.CurrentPrice,
		UpdatedPrice:      group.UpdatedPrice,
		RemainingShortage: int64(group.RemainingShortage()),
		IsFullyResolved:   group.IsFullyResolved(),
		IsGrouped:         group.IsGrouped(),
	}
	if group.UpdatedStock != nil {
		v := int64(*group.UpdatedStock)
		response.UpdatedStock = &v
	}
	for i := range group.Members {
		member := &group.Members[i]
		m := memberResponse{
			RecordID:          member.RecordID,
			RecipeName:        member.RecipeName,
			ShortageQuantity:  int64(member.ShortageQuantity),
			RemainingShortage: int64(member.RemainingShortage()),
		}
		if member.UpdatedStock != nil {
			v := int64(*member.UpdatedStock)
			m.UpdatedStock = &v
		}
		response.Members = append(response.Members, m)
	}
	return response
}

func toBucketResponse(outcome services.BucketOutcome) gin.H {
	messages := make([]string, 0, len(outcome.Errors))
	for _, err := range outcome.Errors {
		messages = append(messages, err.Error())
	}
	return gin.H{
		"attempted": outcome.Attempted,
		"succeeded": outcome.Succeeded,
		"failed":    outcome.Failed,
		"errors":    messages,
	}
}
