package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"stock-reservation-engine/internal/models"
	"stock-reservation-engine/internal/services"
)

// OrderHandler exposes order listing and the transition operations the
// order detail view submits.
type OrderHandler struct {
	engine *services.Engine
}

func NewOrderHandler(engine *services.Engine) *OrderHandler {
	return &OrderHandler{engine: engine}
}

// orderView decorates an order with its derived status label.
type orderView struct {
	models.Order
	OrderStatus models.ItemStatus `json:"orderStatus"`
}

// ListOrders handles GET /v1/orders with offset-based pagination.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	orders, err := h.engine.ListOrders(r.Context())
	if err != nil {
		slog.Error("Failed to list orders", "error", err)
		writeEngineError(w, err)
		return
	}

	totalCount := len(orders)
	var page []models.Order
	if offset < totalCount {
		end := offset + limit
		if end > totalCount {
			end = totalCount
		}
		page = orders[offset:end]
	}

	views := make([]orderView, 0, len(page))
	for _, o := range page {
		views = append(views, orderView{Order: o, OrderStatus: o.DerivedStatus()})
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"orders": views,
		"pagination": map[string]interface{}{
			"offset":      offset,
			"limit":       limit,
			"total_count": totalCount,
			"has_more":    offset+limit < totalCount,
		},
	})
}

// GetOrder handles GET /v1/orders/{orderId}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	order, err := h.engine.GetOrder(r.Context(), orderID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderView{Order: order, OrderStatus: order.DerivedStatus()})
}

// CreateOrderRequest is the checkout ingestion body.
type CreateOrderRequest struct {
	FullName      string             `json:"fullName"`
	Phone         string             `json:"phone"`
	Address       string             `json:"address"`
	PaymentStatus string             `json:"paymentStatus"`
	PaymentMethod string             `json:"paymentMethod"`
	Items         []models.OrderItem `json:"items"`
}

// CreateOrder handles POST /v1/orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in create order request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	if len(req.Items) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Order must contain at least one item", []models.ErrorDetail{
			{Field: "items", Issue: "cannot be empty"},
		})
		return
	}

	order, err := h.engine.CreateOrder(r.Context(), models.Order{
		FullName:      req.FullName,
		Phone:         req.Phone,
		Address:       req.Address,
		PaymentStatus: req.PaymentStatus,
		PaymentMethod: req.PaymentMethod,
		Items:         req.Items,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderView{Order: order, OrderStatus: order.DerivedStatus()})
}

// TransitionRequest is the body of the single item status update.
type TransitionRequest struct {
	Status models.ItemStatus `json:"status"`
}

// TransitionItem handles PUT /v1/orders/{orderId}/items/{itemId}/status.
func (h *OrderHandler) TransitionItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderItemID := vars["itemId"]

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in transition request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	if err := h.engine.TransitionItem(r.Context(), orderItemID, req.Status); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"orderItemId": orderItemID,
		"status":      req.Status,
		"applied":     true,
	})
}

// BatchTransitionRequest is the body of the order detail view's submit:
// every changed item shipped together.
type BatchTransitionRequest struct {
	Transitions []models.TransitionPair `json:"transitions"`
}

// TransitionBatch handles PUT /v1/orders/{orderId}/items/status. Always
// 200: individual failures are reported per pair, never as a whole-batch
// rollback.
func (h *OrderHandler) TransitionBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in batch transition request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	if len(req.Transitions) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "No transitions submitted", []models.ErrorDetail{
			{Field: "transitions", Issue: "cannot be empty"},
		})
		return
	}

	outcomes := h.engine.TransitionBatch(r.Context(), req.Transitions)

	succeeded := 0
	for _, o := range outcomes {
		if o.Applied {
			succeeded++
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"results": outcomes,
		"summary": models.BatchSummary{
			Total:     len(outcomes),
			Succeeded: succeeded,
			Failed:    len(outcomes) - succeeded,
		},
	})
}
