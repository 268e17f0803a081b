package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"stock-reservation-engine/internal/models"
	"stock-reservation-engine/internal/services"
)

// StockHandler exposes the ledger and availability operations.
type StockHandler struct {
	engine *services.Engine
}

func NewStockHandler(engine *services.Engine) *StockHandler {
	return &StockHandler{engine: engine}
}

// writeJSONResponse is a helper function to write JSON responses.
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse is a helper function to write error responses.
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// writeEngineError maps engine failures to the HTTP error envelope.
func writeEngineError(w http.ResponseWriter, err error) {
	errType := services.ErrorTypeOf(err)

	status := http.StatusInternalServerError
	switch errType {
	case services.ErrTypeInvalidQuantity:
		status = http.StatusBadRequest
	case services.ErrTypeIllegalTransition, services.ErrTypeInsufficientStock, services.ErrTypeDuplicateRequest:
		status = http.StatusConflict
	case services.ErrTypeNotFound:
		status = http.StatusNotFound
	}

	writeErrorResponse(w, status, errType, err.Error(), nil)
}

// AddStockRequest is the body of POST /v1/stock/additions.
type AddStockRequest struct {
	ItemID         string `json:"itemId"`
	Quantity       int    `json:"quantity"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// AddStockResponse returns the appended event with the item's fresh
// availability so dashboards refresh in one round trip.
type AddStockResponse struct {
	Event        models.StockEvent         `json:"event"`
	Availability models.AvailabilityReport `json:"availability"`
}

// AddStock handles POST /v1/stock/additions.
func (h *StockHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	var req AddStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in add stock request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	if req.ItemID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Item ID is required", []models.ErrorDetail{
			{Field: "itemId", Issue: "cannot be empty"},
		})
		return
	}

	event, err := h.engine.AddStock(r.Context(), req.ItemID, req.Quantity, req.IdempotencyKey)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	report, err := h.engine.GetAvailability(r.Context(), req.ItemID)
	if err != nil {
		slog.Error("Failed to read availability after stock addition",
			"item_id", req.ItemID, "error", err)
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, AddStockResponse{
		Event:        event,
		Availability: report,
	})
}

// GetAvailability handles GET /v1/stock/{itemId}.
func (h *StockHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["itemId"]
	if itemID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Item ID is required", []models.ErrorDetail{
			{Field: "itemId", Issue: "cannot be empty"},
		})
		return
	}

	report, err := h.engine.GetAvailability(r.Context(), itemID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, report)
}

// ListAvailability handles GET /v1/stock. An optional comma separated
// ?ids= parameter restricts the listing.
func (h *StockHandler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	var itemIDs []string
	if idsParam := r.URL.Query().Get("ids"); idsParam != "" {
		for _, id := range strings.Split(idsParam, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				itemIDs = append(itemIDs, trimmed)
			}
		}
	}

	reports, err := h.engine.ListAvailability(r.Context(), itemIDs)
	if err != nil {
		slog.Error("Failed to list availability", "error", err)
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"items": reports,
		"count": len(reports),
	})
}

// ListItemReservations handles GET /v1/stock/{itemId}/reservations:
// the order line items referencing the catalog item, for the stock
// detail view.
func (h *StockHandler) ListItemReservations(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["itemId"]

	items, err := h.engine.ReservationsForItem(r.Context(), itemID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if items == nil {
		items = []models.OrderItem{}
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"itemId":       itemID,
		"reservations": items,
		"count":        len(items),
	})
}

// ListStockEvents handles GET /v1/stock/{itemId}/events - ledger audit.
func (h *StockHandler) ListStockEvents(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["itemId"]

	events, err := h.engine.StockEvents(r.Context(), itemID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if events == nil {
		events = []models.StockEvent{}
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"itemId": itemID,
		"events": events,
		"count":  len(events),
	})
}
