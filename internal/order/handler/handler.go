// Package handler exposes order endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tiptap/internal/order/models"
	"tiptap/internal/platform/middleware"
	dErrors "tiptap/pkg/domain-errors"
	"tiptap/pkg/platform/httputil"
)

// Service defines the order operations the handler needs.
type Service interface {
	Create(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, limit int) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, id string, status string) (*models.Order, error)
}

// Handler handles order endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates an order Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the order routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/orders", h.HandleCreate)
	r.Get("/api/orders", h.HandleList)
	r.Get("/api/order/{id}", h.HandleGet)
	r.Put("/api/order/{id}/status", h.HandleUpdateStatus)
}

// Routes lists the registered routes for the not-found response.
func (h *Handler) Routes() []string {
	return []string{
		"POST /api/orders",
		"GET /api/orders",
		"GET /api/order/:id",
		"PUT /api/order/:id/status",
	}
}

// CreateResponse is the body returned by POST /api/orders.
type CreateResponse struct {
	Message string `json:"message"`
	OrderID string `json:"orderId"`
}

// StatusResponse is the body returned by PUT /api/order/{id}/status.
type StatusResponse struct {
	Message string        `json:"message"`
	Status  models.Status `json:"status"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateOrderRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	o, err := h.service.Create(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create order",
			"request_id", requestID,
			"order_id", req.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, CreateResponse{Message: "Order created successfully", OrderID: o.ID})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

// HandleList returns orders newest first. An optional limit query parameter
// caps the result.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	orders, err := h.service.List(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list orders",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	o, err := h.service.UpdateStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Message: "Order status updated successfully", Status: o.Status})
}
