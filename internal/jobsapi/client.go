// Package jobsapi reads pages of the remote jobs collection over HTTP.
package jobsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"jobfeed/internal/domain"
)

const (
	DefaultBaseURL = "https://testapi.getlokalapp.com/common/jobs"
	defaultTimeout = 15 * time.Second
)

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration

	// RequestsPerSecond paces outgoing page requests. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// Client fetches pages from the jobs endpoint.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logrus.FieldLogger
}

// NewClient instantiates a jobs API client.
func NewClient(cfg Config, logger logrus.FieldLogger) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("jobsapi: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("jobsapi: base url %q must be absolute", raw)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		limiter:    limiter,
		log:        logger.WithField("component", "jobsapi"),
	}, nil
}

// PageURL returns the request URL for page, keeping any query parameters of
// the base URL.
func (c *Client) PageURL(page int) string {
	u := *c.baseURL
	values := u.Query()
	values.Set("page", strconv.Itoa(page))
	u.RawQuery = values.Encode()
	return u.String()
}

// FetchPage retrieves one page of job records.
func (c *Client) FetchPage(ctx context.Context, page int) ([]domain.JobRecord, error) {
	if page < 1 {
		return nil, fmt.Errorf("jobsapi: invalid page %d", page)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("jobsapi: rate limit wait: %w", err)
		}
	}

	u := c.PageURL(page)
	log := c.log.WithField("page", page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("jobsapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("Jobs request failed")
		return nil, fmt.Errorf("jobsapi: request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.WithField("status", resp.StatusCode).Warn("Jobs endpoint returned an error status")
		return nil, fmt.Errorf("jobsapi: API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	records, err := DecodePage(resp.Body)
	if err != nil {
		log.WithError(err).Warn("Failed to decode jobs page")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"count":    len(records),
		"duration": time.Since(start).String(),
	}).Debug("Jobs page fetched")
	return records, nil
}
