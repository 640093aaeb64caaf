// Package handler exposes product catalog endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tiptap/internal/catalog/models"
	"tiptap/internal/platform/middleware"
	"tiptap/pkg/platform/httputil"
)

// Service defines the catalog operations the handler needs.
type Service interface {
	List(ctx context.Context, filter models.Filter) ([]*models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error)
	UpdateStock(ctx context.Context, id string, stock int) (*models.Product, error)
	Delete(ctx context.Context, id string) error
	Seed(ctx context.Context) ([]*models.Product, error)
}

// Handler handles product endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a product Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the product routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/products", h.HandleList)
	r.Post("/api/products", h.HandleCreate)
	r.Get("/api/product/{id}", h.HandleGet)
	r.Put("/api/product/{id}/stock", h.HandleUpdateStock)
	r.Delete("/api/product/{id}", h.HandleDelete)
	r.Post("/api/seed", h.HandleSeed)
}

// Routes lists the registered routes for the not-found response.
func (h *Handler) Routes() []string {
	return []string{
		"GET /api/products",
		"POST /api/products",
		"GET /api/product/:id",
		"PUT /api/product/:id/stock",
		"DELETE /api/product/:id",
		"POST /api/seed",
	}
}

type createResponse struct {
	Message string          `json:"message"`
	Product *models.Product `json:"product"`
}

type stockResponse struct {
	Message string `json:"message"`
	Stock   *int   `json:"stock"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type seededProduct struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

type seedResponse struct {
	Message  string          `json:"message"`
	Count    int             `json:"count"`
	Products []seededProduct `json:"products"`
}

// HandleList returns the catalog keyed by product ID. Optional category and
// q query parameters narrow the result.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := models.Filter{
		Category: r.URL.Query().Get("category"),
		Query:    r.URL.Query().Get("q"),
	}
	products, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list products",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	byID := make(map[string]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	httputil.WriteJSON(w, http.StatusOK, byID)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateProductRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.Create(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to add product",
			"request_id", requestID,
			"product_id", req.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, createResponse{Message: "Product added successfully", Product: p})
}

func (h *Handler) HandleUpdateStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UpdateStockRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.UpdateStock(ctx, chi.URLParam(r, "id"), *req.Stock)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stockResponse{Message: "Stock updated successfully", Stock: p.Stock})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Product deleted successfully"})
}

// HandleSeed replaces the catalog with the sample products.
func (h *Handler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	products, err := h.service.Seed(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to seed catalog",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := seedResponse{
		Message:  "Database seeded successfully",
		Count:    len(products),
		Products: make([]seededProduct, 0, len(products)),
	}
	for _, p := range products {
		resp.Products = append(resp.Products, seededProduct{ID: p.ID, Name: p.Name, Image: p.Image})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
