package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

var errUnexpectedStatus = errors.New("unexpected inventory response")

// InventoryClient implements ports.Inventory against the room API served by NewHandler.
type InventoryClient struct {
	baseURL string
	client  *http.Client
}

// ClientOption configures the InventoryClient.
type ClientOption func(*InventoryClient)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(ic *InventoryClient) {
		ic.client = c
	}
}

// NewInventoryClient creates a client for the API rooted at baseURL.
func NewInventoryClient(baseURL string, opts ...ClientOption) *InventoryClient {
	ic := &InventoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(ic)
	}
	return ic
}

// ListAvailable calls GET /api/rooms/available.
func (ic *InventoryClient) ListAvailable(ctx context.Context) ([]domain.Item, error) {
	var items []domain.Item
	if err := ic.do(ctx, http.MethodGet, "/api/rooms/available", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Reserve calls POST /api/rooms/{id}/reserve.
func (ic *InventoryClient) Reserve(ctx context.Context, id string) (domain.Reservation, error) {
	var res domain.Reservation
	if err := ic.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(id)+"/reserve", &res); err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func (ic *InventoryClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, ic.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ic.client.Do(req)
	if err != nil {
		return fmt.Errorf("inventory request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrItemNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: %s", errUnexpectedStatus, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode inventory response: %w", err)
	}
	return nil
}
