// Package einvoice provides the HTTP client for the e-invoicing network's
// event API. It implements the domain einvoice.Provider interface.
package einvoice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"facturio/internal/core/apperror"
	domain "facturio/internal/domain/einvoice"
)

// Compile-time check that Client implements the domain interface.
var _ domain.Provider = (*Client)(nil)

// Config holds provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	// PageLimit is the page size requested from the provider (default 100).
	PageLimit int
	// Timeout bounds a single page fetch (default 15s).
	Timeout time.Duration
}

// Client fetches invoice status events over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	pageLimit  int
	httpClient *http.Client
}

// NewClient constructs a new provider client.
func NewClient(cfg Config) *Client {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		pageLimit: cfg.PageLimit,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// eventPayload is the provider's wire representation of one event.
type eventPayload struct {
	ID        int64  `json:"id"`
	SubjectID string `json:"subject_id"`
	Status    string `json:"status"`
}

type pagePayload struct {
	Events  []eventPayload `json:"events"`
	HasMore bool           `json:"has_more"`
}

// FetchEvents returns events with id > startingAfterID, oldest first.
func (c *Client) FetchEvents(ctx context.Context, startingAfterID int64) (domain.Page, error) {
	url := fmt.Sprintf("%s/v1/invoice-events?starting_after=%d&limit=%d",
		c.baseURL, startingAfterID, c.pageLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Page{}, apperror.NewUpstream("einvoice", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return domain.Page{}, apperror.NewUpstream("einvoice",
			fmt.Errorf("provider returned status %d", resp.StatusCode))
	}

	var payload pagePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Page{}, apperror.NewUpstream("einvoice", fmt.Errorf("decode page: %w", err))
	}

	page := domain.Page{
		Events:  make([]domain.Event, 0, len(payload.Events)),
		HasMore: payload.HasMore,
	}
	for _, e := range payload.Events {
		page.Events = append(page.Events, domain.Event{
			ID:        e.ID,
			SubjectID: e.SubjectID,
			Status:    e.Status,
		})
	}

	return page, nil
}
