package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stocklane/allocation-service/internal/domain"
	"github.com/stocklane/allocation-service/pkg/resilience"
)

// WarehouseDTO is the catalog service's warehouse representation
type WarehouseDTO struct {
	WarehouseID string  `json:"warehouseId"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	IsActive    bool    `json:"isActive"`
}

// StockedWarehousesResponse lists warehouses that carry a product
type StockedWarehousesResponse struct {
	ProductID    string   `json:"productId"`
	WarehouseIDs []string `json:"warehouseIds"`
}

// Client fetches warehouse master data from the catalog service.
// Calls run through a circuit breaker so a slow catalog degrades the planner
// instead of taking it down. Implements domain.WarehouseCatalog.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

// NewClient creates a catalog client for the given base URL
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: resilience.NewCircuitBreaker(
			resilience.DefaultCircuitBreakerConfig("warehouse-catalog"),
			logger,
		),
	}
}

// GetWarehouse fetches one warehouse by ID
func (c *Client) GetWarehouse(ctx context.Context, warehouseID string) (*domain.Warehouse, error) {
	url := fmt.Sprintf("%s/api/v1/warehouses/%s", c.baseURL, warehouseID)

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		var dto WarehouseDTO
		if err := c.getJSON(ctx, url, &dto); err != nil {
			return nil, err
		}
		return &dto, nil
	})
	if err != nil {
		return nil, err
	}

	dto := result.(*WarehouseDTO)
	return &domain.Warehouse{
		ID: dto.WarehouseID,
		Location: domain.Coordinate{
			Latitude:  dto.Latitude,
			Longitude: dto.Longitude,
		},
		IsActive: dto.IsActive,
	}, nil
}

// ListWarehousesForProduct returns the IDs of warehouses stocking the product
func (c *Client) ListWarehousesForProduct(ctx context.Context, productID string) ([]string, error) {
	url := fmt.Sprintf("%s/api/v1/products/%s/warehouses", c.baseURL, productID)

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		var response StockedWarehousesResponse
		if err := c.getJSON(ctx, url, &response); err != nil {
			return nil, err
		}
		return response.WarehouseIDs, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]string), nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("catalog resource not found: %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}
