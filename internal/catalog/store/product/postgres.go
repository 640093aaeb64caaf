package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tiptap/internal/catalog/models"
	"tiptap/internal/platform/database"
	"tiptap/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const productColumns = `id, name, price, category, description, image, stock`

// PostgresStore persists products in PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgres constructs a PostgreSQL-backed product store.
func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, name, price, category, description, image, stock)
		VALUES (:id, :name, :price, :category, :description, :image, :stock)
	`
	row := *p
	row.ID = normalizeID(p.ID)
	_, err := sqlx.NamedExecContext(ctx, database.ExecerFrom(ctx, s.db), query, &row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := database.ExecerFrom(ctx, s.db).GetContext(ctx, &p,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, normalizeID(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR lower(category) = lower($1))
		  AND ($2 = '' OR id ILIKE '%' || $2 || '%' OR name ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
		ORDER BY id
	`
	var products []*models.Product
	if err := database.ExecerFrom(ctx, s.db).SelectContext(ctx, &products, query, filter.Category, filter.Query); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) UpdateStock(ctx context.Context, id string, stock int) (*models.Product, error) {
	var p models.Product
	err := database.ExecerFrom(ctx, s.db).GetContext(ctx, &p, `
		UPDATE products SET stock = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns, normalizeID(id), stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update stock: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := database.ExecerFrom(ctx, s.db).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, normalizeID(id))
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ReplaceAll swaps the table contents in one transaction using a single
// unnest insert.
func (s *PostgresStore) ReplaceAll(ctx context.Context, products []*models.Product) error {
	ids := make([]string, len(products))
	names := make([]string, len(products))
	prices := make([]string, len(products))
	categories := make([]string, len(products))
	descriptions := make([]string, len(products))
	images := make([]string, len(products))
	stocks := make([]sql.NullInt64, len(products))
	for i, p := range products {
		ids[i] = normalizeID(p.ID)
		names[i] = p.Name
		prices[i] = p.Price.String()
		categories[i] = p.Category
		descriptions[i] = p.Description
		images[i] = p.Image
		if p.Stock != nil {
			stocks[i] = sql.NullInt64{Int64: int64(*p.Stock), Valid: true}
		}
	}

	return database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		exec := database.ExecerFrom(ctx, s.db)
		if _, err := exec.ExecContext(ctx, `DELETE FROM products`); err != nil {
			return fmt.Errorf("clear products: %w", err)
		}
		if len(products) == 0 {
			return nil
		}
		_, err := exec.ExecContext(ctx, `
			INSERT INTO products (id, name, price, category, description, image, stock)
			SELECT * FROM unnest($1::text[], $2::text[], $3::numeric[], $4::text[], $5::text[], $6::text[], $7::int[])
		`, pq.Array(ids), pq.Array(names), pq.Array(prices), pq.Array(categories),
			pq.Array(descriptions), pq.Array(images), pq.Array(stocks))
		if err != nil {
			return fmt.Errorf("insert seed products: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := database.ExecerFrom(ctx, s.db).GetContext(ctx, &n, `SELECT count(*) FROM products`); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}
