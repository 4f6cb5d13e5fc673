package catalog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/pharmacore/pharmacore-backend/pkg/config"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// Medicine is the catalog service's medicine record
type Medicine struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	GenericName  string  `json:"generic_name,omitempty"`
	Manufacturer string  `json:"manufacturer,omitempty"`
	Category     string  `json:"category,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	DefaultPrice float64 `json:"default_price,omitempty"`
}

// Client calls the medicine catalog service
type Client struct {
	http   *resty.Client
	logger *logger.Logger
}

// NewClient creates a new catalog client
func NewClient(cfg config.CatalogConfig, log *logger.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		logger: log,
	}
}

type medicineResponse struct {
	Success bool     `json:"success"`
	Data    Medicine `json:"data"`
}

type medicineListResponse struct {
	Success bool       `json:"success"`
	Data    []Medicine `json:"data"`
}

// GetMedicine fetches a medicine by ID
func (c *Client) GetMedicine(ctx context.Context, medicineID string) (*Medicine, error) {
	var response medicineResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&response).
		Get("/api/v1/medicines/" + medicineID)
	if err != nil {
		c.logger.Error().Err(err).Str("medicine_id", medicineID).Msg("failed to call catalog service")
		return nil, fmt.Errorf("failed to call catalog service: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, errors.NotFound("medicine")
	}
	if resp.IsError() {
		return nil, fmt.Errorf("catalog lookup failed with status %d", resp.StatusCode())
	}

	return &response.Data, nil
}

// SearchMedicines searches the catalog by name
func (c *Client) SearchMedicines(ctx context.Context, term string, limit int) ([]Medicine, error) {
	var response medicineListResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", term).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetResult(&response).
		Get("/api/v1/medicines")
	if err != nil {
		return nil, fmt.Errorf("failed to call catalog service: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("catalog search failed with status %d", resp.StatusCode())
	}

	return response.Data, nil
}
