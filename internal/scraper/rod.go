// Package scraper loads job pages through a headless browser for endpoints
// that only answer to a real browser session.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"

	"jobfeed/internal/domain"
	"jobfeed/internal/jobsapi"
)

const defaultPageTimeout = 30 * time.Second

// RodFetcher implements feed.PageFetcher with go-rod. Every fetch launches a
// fresh browser, navigates to the page URL and decodes the rendered body.
type RodFetcher struct {
	pageURL func(page int) string
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewRodFetcher returns a fetcher that loads the URLs produced by pageURL.
func NewRodFetcher(pageURL func(page int) string, timeout time.Duration, logger logrus.FieldLogger) *RodFetcher {
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}
	return &RodFetcher{
		pageURL: pageURL,
		timeout: timeout,
		log:     logger.WithField("component", "scraper"),
	}
}

// FetchPage renders the page in the browser and parses its text as a jobs
// payload.
func (s *RodFetcher) FetchPage(ctx context.Context, page int) (records []domain.JobRecord, err error) {
	url := s.pageURL(page)
	log := s.log.WithFields(logrus.Fields{"url": url, "page": page})
	log.Info("Loading jobs page in browser")

	// --- Browser Setup ---
	path, exists := launcher.LookPath()
	if !exists {
		log.Error("Cannot find browser executable for rod")
		return nil, errors.New("rod browser dependency not found")
	}
	l := launcher.New().Bin(path).Headless(true)
	controlURL, err := l.Launch()
	if err != nil {
		log.WithError(err).Error("Failed to launch browser")
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err = browser.Connect(); err != nil {
		l.Kill()
		log.WithError(err).Error("Failed to connect to rod browser")
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			log.WithError(closeErr).Error("Error closing rod browser instance")
		}
	}()

	// --- Page Navigation ---
	p, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		log.WithError(err).Error("Failed to create rod page")
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			log.WithError(closeErr).Debug("Error closing rod page")
		}
	}()

	pageCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p = p.Context(pageCtx)

	if err = p.WaitLoad(); err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			log.WithError(pageCtx.Err()).Warn("Page load timed out")
			return nil, fmt.Errorf("page load timed out for %s: %w", url, pageCtx.Err())
		}
		log.WithError(err).Error("Failed to wait for page load")
		return nil, fmt.Errorf("failed waiting for page load: %w", err)
	}

	// --- Extract Payload ---
	body, err := p.Element("body")
	if err != nil {
		log.WithError(err).Error("Could not find body element")
		return nil, fmt.Errorf("failed to find page body: %w", err)
	}
	text, err := body.Text()
	if err != nil {
		log.WithError(err).Error("Failed to get text from body element")
		return nil, fmt.Errorf("failed to read page body: %w", err)
	}

	records, err = jobsapi.DecodePage(strings.NewReader(text))
	if err != nil {
		log.WithError(err).Warn("Rendered page is not a jobs payload")
		return nil, err
	}

	log.WithField("count", len(records)).Info("Jobs page loaded through browser")
	return records, nil
}
