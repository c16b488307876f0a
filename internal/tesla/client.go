package tesla

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/tariffsync/tariff-service/config"
	httpclient "github.com/tariffsync/tariff-service/internal/http"
	"github.com/tariffsync/tariff-service/internal/http/ratelimit"
	"github.com/tariffsync/tariff-service/internal/tariff"
)

// DefaultBaseURL is the Teslemetry proxy for the Fleet API
const DefaultBaseURL = "https://api.teslemetry.com"

// ErrUnavailable is returned while the breaker is open
var ErrUnavailable = errors.New("tariff upload temporarily disabled after repeated failures")

// EnergySite is an energy product as listed by /api/1/products
type EnergySite struct {
	EnergySiteID int64  `json:"energy_site_id"`
	SiteName     string `json:"site_name"`
	ResourceType string `json:"resource_type"`
}

type touSettings struct {
	TariffContentV2 *tariff.TariffDocument `json:"tariff_content_v2"`
}

type touRequest struct {
	TOUSettings touSettings `json:"tou_settings"`
}

type envelope[T any] struct {
	Response T      `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Client uploads tariffs to the battery controller
type Client struct {
	http    *httpclient.Client
	baseURL string
	siteID  string
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewClient creates a controller client guarded by a circuit breaker
func NewClient(cfg config.TeslaConfig, rl ratelimit.Config, logger zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger = logger.With().Str("component", "tesla").Logger()

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tesla-tou-upload",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		http:    httpclient.NewClient(rl).WithTimeout(cfg.Timeout).WithBearerToken(cfg.APIToken),
		baseURL: baseURL,
		siteID:  cfg.SiteID,
		breaker: cb,
		logger:  logger,
	}
}

// State reports the breaker state
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// EnergySites lists the account's energy sites
func (c *Client) EnergySites(ctx context.Context) ([]EnergySite, error) {
	var out envelope[[]EnergySite]
	if err := c.http.GetJSON(ctx, c.baseURL+"/api/1/products", &out); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	sites := make([]EnergySite, 0, len(out.Response))
	for _, s := range out.Response {
		if s.EnergySiteID != 0 {
			sites = append(sites, s)
		}
	}
	return sites, nil
}

// Publish uploads doc as the site's time-of-use tariff
func (c *Client) Publish(ctx context.Context, siteID string, doc *tariff.TariffDocument) error {
	if doc == nil {
		return tariff.ErrNilDocument
	}
	if siteID == "" {
		siteID = c.siteID
	}
	if siteID == "" {
		return errors.New("no energy site configured")
	}
	endpoint := fmt.Sprintf("%s/api/1/energy_sites/%s/time_of_use_settings", c.baseURL, url.PathEscape(siteID))
	body := touRequest{TOUSettings: touSettings{TariffContentV2: doc}}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		var out envelope[map[string]any]
		if err := c.http.PostJSON(ctx, endpoint, body, &out); err != nil {
			return nil, err
		}
		if out.Error != "" {
			return nil, fmt.Errorf("controller rejected tariff: %s", out.Error)
		}
		return out.Response, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn().Str("site_id", siteID).Msg("Circuit breaker open, upload skipped")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("failed to publish tariff to site %s: %w", siteID, err)
	}

	c.logger.Info().
		Str("site_id", siteID).
		Str("code", doc.Code).
		Msg("Published tariff")
	return nil
}
