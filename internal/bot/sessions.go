package bot

import (
	"sync"

	"jobfeed/internal/feed"
)

// Sessions hands out one feed per chat. Feeds live for the lifetime of the
// process.
type Sessions struct {
	newFeed func() *feed.Feed

	mu    sync.Mutex
	feeds map[int64]*feed.Feed
}

func NewSessions(newFeed func() *feed.Feed) *Sessions {
	return &Sessions{
		newFeed: newFeed,
		feeds:   make(map[int64]*feed.Feed),
	}
}

// Feed returns the chat's feed, creating it on first use.
func (s *Sessions) Feed(chatID int64) *feed.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[chatID]
	if !ok {
		f = s.newFeed()
		s.feeds[chatID] = f
	}
	return f
}

// Lookup returns the chat's feed without creating one.
func (s *Sessions) Lookup(chatID int64) (*feed.Feed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[chatID]
	return f, ok
}

// Len reports the number of open chat sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feeds)
}
