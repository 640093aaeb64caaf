package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tiptap/internal/order/models"
)

// ErrOrderExists is returned by OrdersClient.Create when the API already
// holds an order with the same ID.
var ErrOrderExists = errors.New("order already recorded")

// ErrOrderNotFound is returned by OrdersClient.Get for an unknown order ID.
var ErrOrderNotFound = errors.New("order not found")

// OrdersClient records orders through the HTTP API.
type OrdersClient struct {
	baseURL string
	http    *http.Client
}

// NewOrdersClient targets the API rooted at baseURL (e.g. http://host:5000/api).
func NewOrdersClient(baseURL string, timeout time.Duration) *OrdersClient {
	return &OrdersClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Create posts o with its totals. The server recomputes and checks them.
func (c *OrdersClient) Create(ctx context.Context, o *models.Order) error {
	req := models.CreateOrderRequest{
		ID:            o.ID,
		Items:         make([]models.LineRequest, len(o.Lines)),
		Subtotal:      &o.Subtotal,
		Tax:           &o.Tax,
		Total:         &o.Total,
		PaymentMethod: o.PaymentMethod,
		Status:        string(o.Status),
	}
	for i, l := range o.Lines {
		req.Items[i] = models.LineRequest{ID: l.ProductID, Name: l.Name, Price: l.Price, Quantity: l.Quantity}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post order: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case http.StatusConflict:
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrOrderExists
	default:
		var apiErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("post order: status %d: %s %s", resp.StatusCode, apiErr.Error, apiErr.ErrorDescription)
	}
}

// Get fetches a recorded order. A missing order is ErrOrderNotFound.
func (c *OrdersClient) Get(ctx context.Context, id string) (*models.Order, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/order/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var o models.Order
		if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		return &o, nil
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrOrderNotFound
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("get order: status %d", resp.StatusCode)
	}
}
