package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobfeed/internal/bookmark"
	"jobfeed/internal/domain"
	"jobfeed/internal/feed"
	"jobfeed/internal/storage"
)

// scriptedFetcher returns size records per page up to last, and fails the
// pages listed in fail once.
type scriptedFetcher struct {
	mu   sync.Mutex
	size int
	last int
	fail map[int]bool
}

func (s *scriptedFetcher) FetchPage(_ context.Context, page int) ([]domain.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[page] {
		delete(s.fail, page)
		return nil, errors.New("timeout")
	}
	if page > s.last {
		return nil, nil
	}
	out := make([]domain.JobRecord, s.size)
	for i := range out {
		out[i] = domain.JobRecord{ID: fmt.Sprintf("%d-%d", page, i), Title: fmt.Sprintf("Job %d-%d", page, i)}
	}
	return out, nil
}

func setupHandler(t *testing.T, fetcher feed.PageFetcher) (*Handler, *bookmark.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := bookmark.New(storage.NewMemory(), "", logger)
	sessions := NewSessions(func() *feed.Feed { return feed.New(fetcher, 0, logger) })
	return newHandler(sessions, store, logger), store
}

func TestHandler_MoreJobsReturnsNewCardsOnly(t *testing.T) {
	h, _ := setupHandler(t, &scriptedFetcher{size: 2, last: 2})
	ctx := context.Background()

	r := h.dispatch(ctx, 1, "/jobs", "")
	require.Len(t, r.cards, 2)
	assert.Equal(t, "1-0", r.cards[0].ID)
	assert.Equal(t, cbBookmark, r.cardKind)
	assert.True(t, r.more)

	r = h.dispatch(ctx, 1, "/more", "")
	require.Len(t, r.cards, 2)
	assert.Equal(t, "2-0", r.cards[0].ID)
	assert.Contains(t, r.text, "4 loaded so far")

	r = h.dispatch(ctx, 1, "/jobs", "")
	assert.Empty(t, r.cards)
	assert.Equal(t, "No more jobs.", r.text)

	r = h.dispatch(ctx, 1, "/jobs", "")
	assert.Equal(t, "No more jobs.", r.text)
}

func TestHandler_EmptyFeed(t *testing.T) {
	h, _ := setupHandler(t, &scriptedFetcher{size: 2, last: 0})

	r := h.dispatch(context.Background(), 1, "/jobs", "")
	assert.Equal(t, "No jobs found", r.text)
}

func TestHandler_FailureOffersRetry(t *testing.T) {
	h, _ := setupHandler(t, &scriptedFetcher{size: 1, last: 3, fail: map[int]bool{1: true}})
	ctx := context.Background()

	r := h.dispatch(ctx, 5, "/jobs", "")
	assert.True(t, r.retry)
	assert.Equal(t, feed.FetchFailedMessage, r.text)

	r = h.dispatch(ctx, 5, "/retry", "")
	require.Len(t, r.cards, 1)
	assert.Equal(t, "1-0", r.cards[0].ID, "retry must request the failed page again")
}

func TestHandler_ChatsHaveSeparateFeeds(t *testing.T) {
	h, _ := setupHandler(t, &scriptedFetcher{size: 1, last: 5})
	ctx := context.Background()

	h.dispatch(ctx, 1, "/jobs", "")
	h.dispatch(ctx, 1, "/jobs", "")
	r := h.dispatch(ctx, 2, "/jobs", "")

	require.Len(t, r.cards, 1)
	assert.Equal(t, "1-0", r.cards[0].ID, "a new chat starts at page 1")
	assert.Equal(t, 2, h.sessions.Len())
}

func TestHandler_BookmarkFlow(t *testing.T) {
	h, store := setupHandler(t, &scriptedFetcher{size: 2, last: 1})
	ctx := context.Background()

	assert.Equal(t, "Load some jobs first with /jobs.", h.bookmark(ctx, 9, "1-0"))

	h.dispatch(ctx, 9, "/jobs", "")
	assert.Equal(t, "Bookmarked", h.bookmark(ctx, 9, "1-0"))
	assert.Equal(t, "Already bookmarked", h.bookmark(ctx, 9, "1-0"))
	assert.Equal(t, "That job is no longer in your feed.", h.bookmark(ctx, 9, "nope"))

	list, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Job 1-0", list[0].Title)

	r := h.dispatch(ctx, 9, "/bookmarks", "")
	require.Len(t, r.cards, 1)
	assert.Equal(t, cbRemove, r.cardKind)

	r = h.dispatch(ctx, 9, "/job", "1-0")
	assert.Contains(t, r.text, "Job 1-0")
	assert.Contains(t, r.text, "Company: N/A")

	r = h.dispatch(ctx, 9, "/unbookmark", "1-0")
	assert.Equal(t, "Bookmark removed", r.text)
	r = h.dispatch(ctx, 9, "/unbookmark", "1-0")
	assert.Equal(t, "Job not found in your bookmarks.", r.text)

	r = h.dispatch(ctx, 9, "/bookmarks", "")
	assert.Equal(t, "No bookmarks yet", r.text)
}

func TestHandler_CommandUsage(t *testing.T) {
	h, _ := setupHandler(t, &scriptedFetcher{})
	ctx := context.Background()

	assert.Equal(t, "Usage: /job <id>", h.dispatch(ctx, 1, "/job", "").text)
	assert.Equal(t, "Usage: /unbookmark <id>", h.dispatch(ctx, 1, "/unbookmark", "").text)
	assert.Equal(t, helpText, h.dispatch(ctx, 1, "/start", "").text)
	assert.Contains(t, h.dispatch(ctx, 1, "/dance", "").text, "Unknown command")
}

func TestSessions_ReuseFeed(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	created := 0
	s := NewSessions(func() *feed.Feed {
		created++
		return feed.New(&scriptedFetcher{}, 0, logger)
	})

	_, ok := s.Lookup(1)
	assert.False(t, ok)

	a := s.Feed(1)
	b := s.Feed(1)
	assert.Same(t, a, b)
	assert.Equal(t, 1, created)

	got, ok := s.Lookup(1)
	assert.True(t, ok)
	assert.Same(t, a, got)
}

// apiCall is one Bot API request seen by telegramServer.
type apiCall struct {
	method string
	params map[string]string
}

// telegramServer answers Bot API requests with canned successes and keeps
// the form fields of every call.
type telegramServer struct {
	mu    sync.Mutex
	calls []apiCall
}

func (s *telegramServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := apiCall{method: path.Base(r.URL.Path), params: map[string]string{}}
	if err := r.ParseMultipartForm(1 << 20); err == nil {
		for k, v := range r.MultipartForm.Value {
			call.params[k] = v[0]
		}
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if call.method == "answerCallbackQuery" {
		fmt.Fprint(w, `{"ok":true,"result":true}`)
		return
	}
	fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"group"}}}`)
}

func (s *telegramServer) byMethod(method string) []apiCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []apiCall
	for _, c := range s.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func newTestBot(t *testing.T) (*tgbot.Bot, *telegramServer) {
	t.Helper()
	api := &telegramServer{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := tgbot.New("123:test", tgbot.WithSkipGetMe(), tgbot.WithServerURL(srv.URL))
	require.NoError(t, err)
	return b, api
}

// groupCallback is a button tap by user 77 on a message in group chat -1001.
func groupCallback(data string) *models.Update {
	return &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb-1",
		From: models.User{ID: 77},
		Message: models.MaybeInaccessibleMessage{
			Type:    models.MaybeInaccessibleMessageTypeMessage,
			Message: &models.Message{ID: 10, Chat: models.Chat{ID: -1001, Type: "group"}},
		},
		Data: data,
	}}
}

func TestHandler_CallbackBookmarksFromGroupFeed(t *testing.T) {
	h, store := setupHandler(t, &scriptedFetcher{size: 2, last: 1})
	b, api := newTestBot(t)
	ctx := context.Background()

	h.dispatch(ctx, -1001, "/jobs", "")
	h.callbackHandler(ctx, b, groupCallback(cbBookmark+"1-0"))

	list, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1-0", list[0].ID)

	answers := api.byMethod("answerCallbackQuery")
	require.Len(t, answers, 1)
	assert.Equal(t, "cb-1", answers[0].params["callback_query_id"])
	assert.Equal(t, "Bookmarked", answers[0].params["text"])
}

func TestHandler_CallbackLoadMorePostsToGroup(t *testing.T) {
	h, _ := setupHandler(t, &scriptedFetcher{size: 1, last: 3})
	b, api := newTestBot(t)
	ctx := context.Background()

	h.dispatch(ctx, -1001, "/jobs", "")
	h.callbackHandler(ctx, b, groupCallback(cbMore))

	sent := api.byMethod("sendMessage")
	require.NotEmpty(t, sent)
	for _, c := range sent {
		assert.Equal(t, "-1001", c.params["chat_id"])
	}
	assert.Equal(t, "1 new jobs (2 loaded so far)", sent[0].params["text"])
	assert.Equal(t, 1, h.sessions.Len(), "the tap must reuse the group's feed")
}

func TestCallbackChatID(t *testing.T) {
	cq := &models.CallbackQuery{From: models.User{ID: 77}}
	assert.Equal(t, int64(77), callbackChatID(cq), "no message falls back to the user")

	cq.Message = models.MaybeInaccessibleMessage{
		Type:                models.MaybeInaccessibleMessageTypeInaccessibleMessage,
		InaccessibleMessage: &models.InaccessibleMessage{Chat: models.Chat{ID: -500}},
	}
	assert.Equal(t, int64(-500), callbackChatID(cq))

	cq.Message = groupCallback("").CallbackQuery.Message
	assert.Equal(t, int64(-1001), callbackChatID(cq))
}
