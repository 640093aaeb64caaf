//go:build integration

package order_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"tiptap/internal/order/models"
	"tiptap/internal/order/store/order"
	"tiptap/pkg/platform/sentinel"
	"tiptap/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *order.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = order.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "order_items", "orders"))
}

func newOrder(id string, createdAt time.Time, status models.Status) *models.Order {
	lines := []models.Line{
		{ProductID: "FOOD001", Name: "Vada Pav", Price: decimal.NewFromInt(25), Quantity: 2},
		{ProductID: "FOOD002", Name: "Pav Bhaji", Price: decimal.NewFromInt(65), Quantity: 1},
	}
	subtotal := models.SumLines(lines)
	tax := models.ComputeTax(subtotal, decimal.RequireFromString("0.18"))
	return &models.Order{
		ID:            id,
		Lines:         lines,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         subtotal.Add(tax),
		PaymentMethod: "upi",
		Status:        status,
		CreatedAt:     createdAt.UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestRoundTripKeepsLineOrderAndTotals() {
	ctx := context.Background()
	o := newOrder("ORD1700000000000", time.Now(), models.StatusCompleted)
	s.Require().NoError(s.store.Create(ctx, o))

	found, err := s.store.FindByID(ctx, "ord1700000000000")
	s.Require().NoError(err)
	s.Require().Len(found.Lines, 2)
	s.Equal("FOOD001", found.Lines[0].ProductID)
	s.Equal("FOOD002", found.Lines[1].ProductID)
	s.True(decimal.NewFromInt(115).Equal(found.Subtotal))
	s.True(decimal.NewFromInt(21).Equal(found.Tax))
	s.True(decimal.NewFromInt(136).Equal(found.Total))
	s.WithinDuration(o.CreatedAt, found.CreatedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestDuplicateID() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newOrder("ORD1", time.Now(), models.StatusCompleted)))
	s.ErrorIs(s.store.Create(ctx, newOrder("ORD1", time.Now(), models.StatusCompleted)), sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestListNewestFirst() {
	ctx := context.Background()
	base := time.Now()
	s.Require().NoError(s.store.Create(ctx, newOrder("ORD-A", base.Add(-time.Hour), models.StatusCompleted)))
	s.Require().NoError(s.store.Create(ctx, newOrder("ORD-B", base, models.StatusCompleted)))

	all, err := s.store.List(ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("ORD-B", all[0].ID)
	s.Len(all[0].Lines, 2)

	limited, err := s.store.List(ctx, 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}

// TestConcurrentSettlement verifies a pending order settles exactly once.
func (s *PostgresStoreSuite) TestConcurrentSettlement() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newOrder("ORD-P", time.Now(), models.StatusPending)))

	var wg sync.WaitGroup
	var completed, failed, rejected atomic.Int32
	for i := 0; i < 10; i++ {
		next := models.StatusCompleted
		if i%2 == 1 {
			next = models.StatusFailed
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := s.store.UpdateStatus(ctx, "ORD-P", next)
			switch {
			case err == nil && o.Status == models.StatusCompleted:
				completed.Add(1)
			case err == nil:
				failed.Add(1)
			default:
				s.ErrorIs(err, sentinel.ErrInvalidState)
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	// Whichever status won, only callers asking for that status succeed.
	winners := completed.Load() + failed.Load()
	s.Equal(int32(10), winners+rejected.Load())
	s.True(completed.Load() == 0 || failed.Load() == 0)

	_, err := s.store.UpdateStatus(ctx, "ORD-404", models.StatusFailed)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
