package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	POST(path string, body any) error
	PUT(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Remember(key, value string)
	Recall(key string) string
}

// RegisterSteps registers catalog lookup and order lifecycle steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &orderSteps{tc: tc}

	ctx.Step(`^the catalog is seeded$`, steps.catalogIsSeeded)
	ctx.Step(`^product "([^"]*)" costs "([^"]*)"$`, steps.productCosts)
	ctx.Step(`^I add (\d+) of "([^"]*)" to the basket$`, steps.addToBasket)
	ctx.Step(`^I place the order paying with "([^"]*)"$`, steps.placeOrder)
	ctx.Step(`^I place a pending order paying with "([^"]*)"$`, steps.placePendingOrder)
	ctx.Step(`^I place the order claiming a total of "([^"]*)"$`, steps.placeOrderClaimingTotal)
	ctx.Step(`^the order should be stored with total "([^"]*)"$`, steps.orderStoredWithTotal)
	ctx.Step(`^I mark the order as "([^"]*)"$`, steps.markOrder)
	ctx.Step(`^the order status should be "([^"]*)"$`, steps.orderStatusShouldBe)
}

type line struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

type product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type order struct {
	ID     string `json:"id"`
	Total  string `json:"total"`
	Status string `json:"status"`
}

type orderSteps struct {
	tc     TestContext
	basket []line
}

func (s *orderSteps) catalogIsSeeded(ctx context.Context) error {
	if err := s.tc.POST("/api/seed", map[string]any{}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return fmt.Errorf("seed returned %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *orderSteps) lookup(id string) (*product, error) {
	if err := s.tc.GET("/api/product/" + id); err != nil {
		return nil, err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return nil, fmt.Errorf("product %s returned %d", id, s.tc.GetLastResponseStatus())
	}
	var p product
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &p); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	return &p, nil
}

func (s *orderSteps) productCosts(ctx context.Context, id, price string) error {
	p, err := s.lookup(id)
	if err != nil {
		return err
	}
	if p.Price != price {
		return fmt.Errorf("expected %s to cost %s, got %s", id, price, p.Price)
	}
	return nil
}

func (s *orderSteps) addToBasket(ctx context.Context, qty int, id string) error {
	p, err := s.lookup(id)
	if err != nil {
		return err
	}
	s.basket = append(s.basket, line{ID: p.ID, Name: p.Name, Price: p.Price, Quantity: qty})
	return nil
}

func (s *orderSteps) placeOrder(ctx context.Context, method string) error {
	return s.submit(map[string]any{"items": s.basket, "paymentMethod": method})
}

func (s *orderSteps) placePendingOrder(ctx context.Context, method string) error {
	return s.submit(map[string]any{"items": s.basket, "paymentMethod": method, "status": "pending"})
}

func (s *orderSteps) placeOrderClaimingTotal(ctx context.Context, total string) error {
	return s.submit(map[string]any{"items": s.basket, "paymentMethod": "upi", "total": total})
}

func (s *orderSteps) submit(body map[string]any) error {
	if err := s.tc.POST("/api/orders", body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return nil
	}
	id, err := s.tc.GetResponseField("orderId")
	if err != nil {
		return err
	}
	s.tc.Remember("order_id", fmt.Sprint(id))
	return nil
}

func (s *orderSteps) fetchOrder() (*order, error) {
	id := s.tc.Recall("order_id")
	if id == "" {
		return nil, fmt.Errorf("no order placed in this scenario")
	}
	if err := s.tc.GET("/api/order/" + id); err != nil {
		return nil, err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return nil, fmt.Errorf("order %s returned %d", id, s.tc.GetLastResponseStatus())
	}
	var o order
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &o, nil
}

func (s *orderSteps) orderStoredWithTotal(ctx context.Context, total string) error {
	o, err := s.fetchOrder()
	if err != nil {
		return err
	}
	if o.Total != total {
		return fmt.Errorf("expected total %s, got %s", total, o.Total)
	}
	return nil
}

func (s *orderSteps) markOrder(ctx context.Context, status string) error {
	return s.tc.PUT("/api/order/"+s.tc.Recall("order_id")+"/status", map[string]string{"status": status})
}

func (s *orderSteps) orderStatusShouldBe(ctx context.Context, status string) error {
	o, err := s.fetchOrder()
	if err != nil {
		return err
	}
	if o.Status != status {
		return fmt.Errorf("expected status %s, got %s", status, o.Status)
	}
	return nil
}
