package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ProductStore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tiptap/internal/catalog/metrics"
	"tiptap/internal/catalog/models"
	"tiptap/internal/catalog/service/mocks"
	"tiptap/internal/catalog/store/product"
	"tiptap/internal/tag"
	dErrors "tiptap/pkg/domain-errors"
	"tiptap/pkg/platform/sentinel"
)

var grammar = tag.MustGrammar([]string{"FOOD", "ELEC"})

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ServiceSuite exercises the service against the real in-memory store.
type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	metrics *metrics.Metrics
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.service = New(product.NewInMemory(), grammar, WithLogger(discardLogger()), WithMetrics(s.metrics))
}

func newRequest(id string) *models.CreateProductRequest {
	return &models.CreateProductRequest{ID: id, Name: "Vada Pav", Price: decimal.NewFromInt(25), Category: "Street Food"}
}

func (s *ServiceSuite) TestCreate() {
	s.Run("adds product and counts it", func() {
		p, err := s.service.Create(s.ctx, newRequest("FOOD001"))
		s.Require().NoError(err)
		s.Equal("FOOD001", p.ID)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.ProductsCreated))
	})

	s.Run("duplicate ID is a conflict", func() {
		_, err := s.service.Create(s.ctx, newRequest("FOOD001"))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("Product with this ID already exists", dErrors.MessageOf(err))
	})

	s.Run("ID outside the grammar is rejected", func() {
		_, err := s.service.Create(s.ctx, newRequest("BOOK001"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.Create(s.ctx, newRequest("FOOD01"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestGetUpdateDelete() {
	_, err := s.service.Create(s.ctx, newRequest("ELEC001"))
	s.Require().NoError(err)

	p, err := s.service.Get(s.ctx, "elec001")
	s.Require().NoError(err)
	s.Equal("ELEC001", p.ID)

	updated, err := s.service.UpdateStock(s.ctx, "ELEC001", 5)
	s.Require().NoError(err)
	s.Equal(5, *updated.Stock)

	_, err = s.service.UpdateStock(s.ctx, "ELEC001", -1)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Require().NoError(s.service.Delete(s.ctx, "ELEC001"))

	_, err = s.service.Get(s.ctx, "ELEC001")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.True(dErrors.HasCode(s.service.Delete(s.ctx, "ELEC001"), dErrors.CodeNotFound))
	_, err = s.service.UpdateStock(s.ctx, "ELEC001", 1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestSeed() {
	seeded, err := s.service.SeedIfEmpty(s.ctx)
	s.Require().NoError(err)
	s.True(seeded)

	seeded, err = s.service.SeedIfEmpty(s.ctx)
	s.Require().NoError(err)
	s.False(seeded)

	all, err := s.service.List(s.ctx, models.Filter{})
	s.Require().NoError(err)
	s.Len(all, len(models.SeedProducts()))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CatalogSeeded))
}

// StoreFailureSuite uses a mock store to drive failure paths the in-memory
// store cannot produce.
type StoreFailureSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockProductStore
	service *Service
}

func TestStoreFailureSuite(t *testing.T) {
	suite.Run(t, new(StoreFailureSuite))
}

func (s *StoreFailureSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockProductStore(s.ctrl)
	s.service = New(s.store, grammar, WithLogger(discardLogger()))
}

func (s *StoreFailureSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *StoreFailureSuite) TestStoreErrorsAreInternal() {
	boom := errors.New("connection reset")

	s.Run("list", func() {
		s.store.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, boom)
		_, err := s.service.List(context.Background(), models.Filter{})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.ErrorIs(err, boom)
	})

	s.Run("create", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(boom)
		_, err := s.service.Create(context.Background(), newRequest("FOOD002"))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("seed", func() {
		s.store.EXPECT().ReplaceAll(gomock.Any(), gomock.Len(len(models.SeedProducts()))).Return(boom)
		_, err := s.service.Seed(context.Background())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("seed if empty count failure", func() {
		s.store.EXPECT().Count(gomock.Any()).Return(0, boom)
		_, err := s.service.SeedIfEmpty(context.Background())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *StoreFailureSuite) TestGetMapsSentinel() {
	s.store.EXPECT().FindByID(gomock.Any(), "FOOD404").Return(nil, sentinel.ErrNotFound)
	_, err := s.service.Get(context.Background(), "FOOD404")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
