// Package service implements product catalog administration for the HTTP API.
package service

import (
	"context"
	"errors"
	"log/slog"

	"tiptap/internal/catalog/metrics"
	"tiptap/internal/catalog/models"
	"tiptap/internal/tag"
	dErrors "tiptap/pkg/domain-errors"
	"tiptap/pkg/platform/sentinel"
)

type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Product, error)
	UpdateStock(ctx context.Context, id string, stock int) (*models.Product, error)
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, products []*models.Product) error
	Count(ctx context.Context) (int, error)
}

// Service orchestrates product lookups and catalog administration.
type Service struct {
	products ProductStore
	grammar  *tag.Grammar
	seed     func() []*models.Product
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSeed replaces the sample catalog loaded by Seed.
func WithSeed(seed func() []*models.Product) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// New constructs a Service. New product IDs must match grammar.
func New(products ProductStore, grammar *tag.Grammar, opts ...Option) *Service {
	s := &Service{
		products: products,
		grammar:  grammar,
		seed:     models.SeedProducts,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns products matching filter, ordered by ID.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.Product, error) {
	products, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fetch products")
	}
	return products, nil
}

// Get fetches one product by identifier.
func (s *Service) Get(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Product not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fetch product")
	}
	return p, nil
}

// Create adds a product. The ID must match the identifier grammar so that
// tags encoding it can be scanned.
func (s *Service) Create(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	if _, ok := s.grammar.Match(req.ID); !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "id must be a category code followed by three digits")
	}
	p := req.Product()
	if err := s.products.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "Product with this ID already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add product")
	}
	s.logger.InfoContext(ctx, "product added", "product_id", p.ID)
	s.metrics.IncProductsCreated()
	return p, nil
}

// UpdateStock sets the tracked stock level of a product.
func (s *Service) UpdateStock(ctx context.Context, id string, stock int) (*models.Product, error) {
	if stock < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "stock must not be negative")
	}
	p, err := s.products.UpdateStock(ctx, id, stock)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Product not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update stock")
	}
	s.metrics.IncStockUpdates()
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "Product not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete product")
	}
	s.logger.InfoContext(ctx, "product deleted", "product_id", id)
	s.metrics.IncProductsDeleted()
	return nil
}

// Seed replaces the whole catalog with the sample products.
func (s *Service) Seed(ctx context.Context) ([]*models.Product, error) {
	products := s.seed()
	if err := s.products.ReplaceAll(ctx, products); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed database")
	}
	s.logger.InfoContext(ctx, "catalog seeded", "count", len(products))
	s.metrics.IncSeeded()
	return products, nil
}

// SeedIfEmpty loads the sample catalog when the store has no products.
func (s *Service) SeedIfEmpty(ctx context.Context) (bool, error) {
	n, err := s.products.Count(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count products")
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.Seed(ctx); err != nil {
		return false, err
	}
	return true, nil
}
