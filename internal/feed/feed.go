// Package feed accumulates a server-paginated job collection into one
// growing list.
package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"jobfeed/internal/domain"
)

// FetchFailedMessage is shown to users when a page cannot be loaded.
const FetchFailedMessage = "Failed to load jobs. Please try again."

var (
	// ErrInFlight is returned when LoadNextPage is called while a fetch for
	// the same feed is still running. The call changes nothing.
	ErrInFlight = errors.New("feed: page load already in progress")

	// ErrExhausted is returned once the server has signalled the end of the
	// collection.
	ErrExhausted = errors.New("feed: no more pages")
)

// PageFetcher retrieves one page of the remote collection. Pages are
// numbered from 1.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) ([]domain.JobRecord, error)
}

// State is a consistent snapshot of a Feed.
type State struct {
	Items     []domain.JobRecord
	NextPage  int
	Loading   bool
	LastError error
	Exhausted bool
}

// Feed loads pages one at a time and keeps every record it has received in
// server order. Duplicate ids across pages are kept as they arrive.
//
// A Feed is safe for concurrent use. At most one fetch runs at any time.
type Feed struct {
	fetcher  PageFetcher
	pageSize int
	log      logrus.FieldLogger

	mu        sync.Mutex
	items     []domain.JobRecord
	nextPage  int
	loading   bool
	lastErr   error
	exhausted bool
}

// New returns a feed positioned at page 1. pageSize is the number of
// records a full page holds; zero means unknown, in which case only an empty
// page ends the collection.
func New(fetcher PageFetcher, pageSize int, logger logrus.FieldLogger) *Feed {
	return &Feed{
		fetcher:  fetcher,
		pageSize: pageSize,
		log:      logger.WithField("component", "feed"),
		nextPage: 1,
	}
}

// Page is the outcome of one successful load: the records it appended and
// the feed totals right after the append.
type Page struct {
	Records   []domain.JobRecord
	Total     int
	Exhausted bool
}

// LoadNextPage fetches the page at the current token and appends its
// records. It returns the number of records appended.
//
// On failure the token is not advanced, so the next call asks for the same
// page again. The error is also kept as LastError until the next attempt.
func (f *Feed) LoadNextPage(ctx context.Context) (int, error) {
	p, err := f.Next(ctx)
	return len(p.Records), err
}

// Next behaves like LoadNextPage but returns the appended records together
// with the totals observed under the same lock, so a concurrent load cannot
// shift what the caller sees.
func (f *Feed) Next(ctx context.Context) (Page, error) {
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		return Page{}, ErrInFlight
	}
	if f.exhausted {
		f.mu.Unlock()
		return Page{}, ErrExhausted
	}
	page := f.nextPage
	f.loading = true
	f.lastErr = nil
	f.mu.Unlock()

	log := f.log.WithField("page", page)
	log.Debug("Fetching page")

	records, err := f.fetcher.FetchPage(ctx, page)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false

	if err != nil {
		f.lastErr = &domain.Error{
			Kind: domain.FetchFailed,
			Op:   "load page",
			Msg:  FetchFailedMessage,
			Err:  err,
		}
		log.WithError(err).Warn("Failed to fetch page")
		return Page{}, f.lastErr
	}

	f.items = append(f.items, records...)
	f.nextPage++
	if len(records) == 0 || (f.pageSize > 0 && len(records) < f.pageSize) {
		f.exhausted = true
	}

	log.WithFields(logrus.Fields{
		"appended":  len(records),
		"total":     len(f.items),
		"exhausted": f.exhausted,
	}).Info("Page loaded")
	return Page{
		Records:   append([]domain.JobRecord(nil), records...),
		Total:     len(f.items),
		Exhausted: f.exhausted,
	}, nil
}

// Retry re-issues the request for the page that last failed. It is the
// same operation as LoadNextPage.
func (f *Feed) Retry(ctx context.Context) (int, error) {
	return f.LoadNextPage(ctx)
}

// Items returns a copy of the accumulated records.
func (f *Feed) Items() []domain.JobRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.JobRecord(nil), f.items...)
}

// Find returns the first accumulated record with the given id.
func (f *Feed) Find(id string) (domain.JobRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.items {
		if rec.ID == id {
			return rec, true
		}
	}
	return domain.JobRecord{}, false
}

// Len reports how many records have been accumulated.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// NextPage returns the page number the next load will request.
func (f *Feed) NextPage() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextPage
}

// Loading reports whether a fetch is in flight.
func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// LastError returns the error of the most recent failed load, or nil once a
// new attempt has started.
func (f *Feed) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Exhausted reports whether the server has signalled the end of the
// collection.
func (f *Feed) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exhausted
}

// Snapshot returns all feed state read under one lock.
func (f *Feed) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		Items:     append([]domain.JobRecord(nil), f.items...),
		NextPage:  f.nextPage,
		Loading:   f.loading,
		LastError: f.lastErr,
		Exhausted: f.exhausted,
	}
}
