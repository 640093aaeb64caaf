package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"tiptap/internal/order/models"
	"tiptap/internal/platform/database"
	"tiptap/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists orders and their lines in PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type orderRow struct {
	ID            string          `db:"id"`
	Subtotal      decimal.Decimal `db:"subtotal"`
	Tax           decimal.Decimal `db:"tax"`
	Total         decimal.Decimal `db:"total"`
	PaymentMethod string          `db:"payment_method"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
}

type lineRow struct {
	OrderID   string          `db:"order_id"`
	Position  int             `db:"position"`
	ProductID string          `db:"product_id"`
	Name      string          `db:"name"`
	Price     decimal.Decimal `db:"price"`
	Quantity  int             `db:"quantity"`
}

func (r orderRow) toModel(lines []models.Line) *models.Order {
	return &models.Order{
		ID:            r.ID,
		Lines:         lines,
		Subtotal:      r.Subtotal,
		Tax:           r.Tax,
		Total:         r.Total,
		PaymentMethod: r.PaymentMethod,
		Status:        models.Status(r.Status),
		CreatedAt:     r.CreatedAt,
	}
}

const orderColumns = `id, subtotal, tax, total, payment_method, status, created_at`

// Create inserts the order and its lines in one transaction.
func (s *PostgresStore) Create(ctx context.Context, o *models.Order) error {
	id := normalizeID(o.ID)
	productIDs := make([]string, len(o.Lines))
	names := make([]string, len(o.Lines))
	prices := make([]string, len(o.Lines))
	quantities := make([]int64, len(o.Lines))
	for i, l := range o.Lines {
		productIDs[i] = l.ProductID
		names[i] = l.Name
		prices[i] = l.Price.String()
		quantities[i] = int64(l.Quantity)
	}

	return database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		exec := database.ExecerFrom(ctx, s.db)
		_, err := exec.ExecContext(ctx, `
			INSERT INTO orders (id, subtotal, tax, total, payment_method, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id, o.Subtotal, o.Tax, o.Total, o.PaymentMethod, string(o.Status), o.CreatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return sentinel.ErrAlreadyUsed
			}
			return fmt.Errorf("insert order: %w", err)
		}
		if len(o.Lines) == 0 {
			return nil
		}
		_, err = exec.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, name, price, quantity)
			SELECT $1, t.ord, t.product_id, t.name, t.price, t.quantity
			FROM unnest($2::text[], $3::text[], $4::numeric[], $5::int[])
				WITH ORDINALITY AS t(product_id, name, price, quantity, ord)
		`, id, pq.Array(productIDs), pq.Array(names), pq.Array(prices), pq.Array(quantities))
		if err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Order, error) {
	exec := database.ExecerFrom(ctx, s.db)
	var row orderRow
	err := exec.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, normalizeID(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	lines, err := s.linesFor(ctx, exec, []string{row.ID})
	if err != nil {
		return nil, err
	}
	return row.toModel(lines[row.ID]), nil
}

// List returns up to limit orders, newest first. limit <= 0 returns all.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]*models.Order, error) {
	exec := database.ExecerFrom(ctx, s.db)
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	var rows []orderRow
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(rows) == 0 {
		return []*models.Order{}, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	lines, err := s.linesFor(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Order, len(rows))
	for i, r := range rows {
		out[i] = r.toModel(lines[r.ID])
	}
	return out, nil
}

func (s *PostgresStore) linesFor(ctx context.Context, exec database.Execer, ids []string) (map[string][]models.Line, error) {
	var rows []lineRow
	err := exec.SelectContext(ctx, &rows, `
		SELECT order_id, position, product_id, name, price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	out := make(map[string][]models.Line, len(ids))
	for _, r := range rows {
		out[r.OrderID] = append(out[r.OrderID], models.Line{
			ProductID: r.ProductID,
			Name:      r.Name,
			Price:     r.Price,
			Quantity:  r.Quantity,
		})
	}
	return out, nil
}

// UpdateStatus applies the transition with a conditional update so
// concurrent settlements cannot both win.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, next models.Status) (*models.Order, error) {
	var updated *models.Order
	err := database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		exec := database.ExecerFrom(ctx, s.db)
		var row orderRow
		err := exec.GetContext(ctx, &row, `
			UPDATE orders SET status = $2
			WHERE id = $1 AND (status = $3 OR status = $2)
			RETURNING `+orderColumns, normalizeID(id), string(next), string(models.StatusPending))
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := exec.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, normalizeID(id)); err != nil {
				return fmt.Errorf("check order: %w", err)
			}
			if !exists {
				return sentinel.ErrNotFound
			}
			return sentinel.ErrInvalidState
		}
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		lines, err := s.linesFor(ctx, exec, []string{row.ID})
		if err != nil {
			return err
		}
		updated = row.toModel(lines[row.ID])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
