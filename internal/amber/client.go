package amber

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/tariffsync/tariff-service/config"
	httpclient "github.com/tariffsync/tariff-service/internal/http"
	"github.com/tariffsync/tariff-service/internal/http/ratelimit"
)

// DefaultBaseURL is the public price API
const DefaultBaseURL = "https://api.amber.com.au/v1"

// Client talks to the spot-price API
type Client struct {
	http    *httpclient.Client
	baseURL string
	siteID  string
	logger  zerolog.Logger
}

// NewClient creates a price API client
func NewClient(cfg config.AmberConfig, rl ratelimit.Config, logger zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpclient.NewClient(rl).WithTimeout(cfg.Timeout).WithBearerToken(cfg.APIToken),
		baseURL: baseURL,
		siteID:  cfg.SiteID,
		logger:  logger.With().Str("component", "amber").Logger(),
	}
}

// Sites lists the account's sites
func (c *Client) Sites(ctx context.Context) ([]Site, error) {
	var sites []Site
	if err := c.http.GetJSON(ctx, c.baseURL+"/sites", &sites); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	c.logger.Debug().Int("count", len(sites)).Msg("Fetched sites")
	return sites, nil
}

// ResolveSite returns siteID, the configured site, or the account's first
// active site, in that order
func (c *Client) ResolveSite(ctx context.Context, siteID string) (string, error) {
	if siteID != "" {
		return siteID, nil
	}
	if c.siteID != "" {
		return c.siteID, nil
	}
	sites, err := c.Sites(ctx)
	if err != nil {
		return "", err
	}
	for _, s := range sites {
		if s.Status == "" || s.Status == "active" {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("no active sites on account")
}

// Prices fetches 5-minute prices for the local calendar days from..to inclusive
func (c *Client) Prices(ctx context.Context, siteID string, from, to time.Time) ([]Price, error) {
	siteID, err := c.ResolveSite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("startDate", from.Format(time.DateOnly))
	q.Set("endDate", to.Format(time.DateOnly))
	q.Set("resolution", "5")
	endpoint := fmt.Sprintf("%s/sites/%s/prices?%s", c.baseURL, url.PathEscape(siteID), q.Encode())

	var prices []Price
	if err := c.http.GetJSON(ctx, endpoint, &prices); err != nil {
		return nil, fmt.Errorf("failed to fetch prices for site %s: %w", siteID, err)
	}
	c.logger.Debug().
		Str("site_id", siteID).
		Int("count", len(prices)).
		Msg("Fetched prices")
	return prices, nil
}
