package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"jobfeed/internal/domain"
	"jobfeed/internal/feed"
)

// Callback data prefixes for inline buttons.
const (
	cbBookmark = "bm:"
	cbRemove   = "rm:"
	cbRetry    = "retry"
	cbMore     = "more"
)

const helpText = `Welcome to JobFeed!
/jobs - show the next page of jobs
/retry - retry the last failed page
/bookmarks - list your bookmarked jobs
/job <id> - show a bookmarked job
/unbookmark <id> - remove a bookmark`

// Bookmarks is the bookmark store as seen by the bot.
type Bookmarks interface {
	Load(ctx context.Context) ([]domain.JobRecord, error)
	Get(ctx context.Context, id string) (domain.JobRecord, bool, error)
	Add(ctx context.Context, rec domain.JobRecord) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot       *tgbot.Bot
	sessions  *Sessions
	bookmarks Bookmarks
	log       logrus.FieldLogger
}

// reply is what a command produces: a text message, optionally followed
// by job cards.
type reply struct {
	text     string
	cards    []domain.JobRecord
	cardKind string // callback prefix for the per-card button
	retry    bool
	more     bool
}

// NewHandler creates a new bot handler instance.
func NewHandler(token string, sessions *Sessions, bookmarks Bookmarks, logger logrus.FieldLogger) (*Handler, error) {
	h := newHandler(sessions, bookmarks, logger)

	b, err := tgbot.New(token, tgbot.WithDefaultHandler(h.defaultHandler))
	if err != nil {
		h.log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b

	h.registerHandlers()
	h.log.Info("Telegram bot handler initialized")
	return h, nil
}

func newHandler(sessions *Sessions, bookmarks Bookmarks, logger logrus.FieldLogger) *Handler {
	return &Handler{
		sessions:  sessions,
		bookmarks: bookmarks,
		log:       logger.WithField("component", "bot_handler"),
	}
}

// registerHandlers sets up the command and callback handlers. Commands go
// through a single router so "/job" and "/jobs" never compete.
func (h *Handler) registerHandlers() {
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/", tgbot.MatchTypePrefix, h.commandHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, "", tgbot.MatchTypePrefix, h.callbackHandler)
	h.log.Info("Registered command and callback handlers")
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

func (h *Handler) commandHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	cmd, arg := parseCommand(update.Message.Text)
	log := h.log.WithFields(logrus.Fields{"chat_id": chatID, "command": cmd})
	log.Info("Received command")

	h.send(ctx, b, chatID, h.dispatch(ctx, chatID, cmd, arg))
}

// dispatch maps a command to its reply.
func (h *Handler) dispatch(ctx context.Context, chatID int64, cmd, arg string) reply {
	switch cmd {
	case "/start", "/help":
		return reply{text: helpText}
	case "/jobs", "/more":
		return h.moreJobs(ctx, chatID)
	case "/retry":
		return h.retryJobs(ctx, chatID)
	case "/bookmarks":
		return h.listBookmarks(ctx)
	case "/job":
		return h.showJob(ctx, arg)
	case "/unbookmark":
		return reply{text: h.unbookmark(ctx, arg)}
	default:
		return reply{text: "Unknown command. Send /help for the list of commands."}
	}
}

func (h *Handler) callbackHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	chatID := callbackChatID(cq)
	log := h.log.WithFields(logrus.Fields{"chat_id": chatID, "data": cq.Data})
	log.Debug("Received callback")

	var answer string
	switch {
	case strings.HasPrefix(cq.Data, cbBookmark):
		answer = h.bookmark(ctx, chatID, strings.TrimPrefix(cq.Data, cbBookmark))
	case strings.HasPrefix(cq.Data, cbRemove):
		answer = h.unbookmark(ctx, strings.TrimPrefix(cq.Data, cbRemove))
	case cq.Data == cbRetry:
		h.send(ctx, b, chatID, h.retryJobs(ctx, chatID))
	case cq.Data == cbMore:
		h.send(ctx, b, chatID, h.moreJobs(ctx, chatID))
	}

	_, err := b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            answer,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to answer callback query")
	}
}

// callbackChatID returns the chat holding the message whose button was
// tapped. Feeds are keyed by chat, so in groups this differs from the user.
func callbackChatID(cq *models.CallbackQuery) int64 {
	switch {
	case cq.Message.Message != nil:
		return cq.Message.Message.Chat.ID
	case cq.Message.InaccessibleMessage != nil:
		return cq.Message.InaccessibleMessage.Chat.ID
	default:
		return cq.From.ID
	}
}

func (h *Handler) defaultHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.log.WithFields(logrus.Fields{
		"chat_id": update.Message.Chat.ID,
		"text":    update.Message.Text,
	}).Debug("Received unhandled message (default handler)")
	h.send(ctx, b, update.Message.Chat.ID, reply{text: helpText})
}

// moreJobs loads the chat's next page and returns the newly appended cards.
func (h *Handler) moreJobs(ctx context.Context, chatID int64) reply {
	f := h.sessions.Feed(chatID)

	p, err := f.Next(ctx)
	switch {
	case errors.Is(err, feed.ErrInFlight):
		return reply{text: "Still loading jobs..."}
	case errors.Is(err, feed.ErrExhausted):
		return reply{text: "No more jobs."}
	case err != nil:
		msg := domain.UserMessage(err)
		if msg == "" {
			msg = feed.FetchFailedMessage
		}
		return reply{text: msg, retry: true}
	}

	if len(p.Records) == 0 {
		if p.Total == 0 {
			return reply{text: "No jobs found"}
		}
		return reply{text: "No more jobs."}
	}
	return reply{
		text:     fmt.Sprintf("%d new jobs (%d loaded so far)", len(p.Records), p.Total),
		cards:    p.Records,
		cardKind: cbBookmark,
		more:     !p.Exhausted,
	}
}

// retryJobs re-requests the page that failed last. Without a previous
// failure it behaves like /jobs.
func (h *Handler) retryJobs(ctx context.Context, chatID int64) reply {
	return h.moreJobs(ctx, chatID)
}

func (h *Handler) listBookmarks(ctx context.Context) reply {
	list, err := h.bookmarks.Load(ctx)
	if err != nil {
		h.log.WithError(err).Error("Failed to load bookmarks")
		return reply{text: "Could not read your bookmarks."}
	}
	if len(list) == 0 {
		return reply{text: "No bookmarks yet"}
	}
	return reply{
		text:     fmt.Sprintf("You have %d bookmarked jobs", len(list)),
		cards:    list,
		cardKind: cbRemove,
	}
}

func (h *Handler) showJob(ctx context.Context, id string) reply {
	if id == "" {
		return reply{text: "Usage: /job <id>"}
	}
	rec, ok, err := h.bookmarks.Get(ctx, id)
	if err != nil {
		h.log.WithError(err).WithField("job_id", id).Error("Failed to look up bookmark")
		return reply{text: "Could not read your bookmarks."}
	}
	if !ok {
		return reply{text: "Job not found in your bookmarks."}
	}
	return reply{text: formatDetail(rec)}
}

// bookmark adds a job the chat has seen in its feed.
func (h *Handler) bookmark(ctx context.Context, chatID int64, id string) string {
	f, ok := h.sessions.Lookup(chatID)
	if !ok {
		return "Load some jobs first with /jobs."
	}
	rec, ok := f.Find(id)
	if !ok {
		return "That job is no longer in your feed."
	}

	added, err := h.bookmarks.Add(ctx, rec)
	switch {
	case err != nil:
		return "Could not save the bookmark. Please try again."
	case added:
		return "Bookmarked"
	default:
		return "Already bookmarked"
	}
}

func (h *Handler) unbookmark(ctx context.Context, id string) string {
	if id == "" {
		return "Usage: /unbookmark <id>"
	}
	removed, err := h.bookmarks.Remove(ctx, id)
	switch {
	case err != nil:
		return "Could not remove the bookmark. Please try again."
	case removed:
		return "Bookmark removed"
	default:
		return "Job not found in your bookmarks."
	}
}

// send delivers a reply: the text first, then one message per card with
// its action button.
func (h *Handler) send(ctx context.Context, b *tgbot.Bot, chatID int64, r reply) {
	log := h.log.WithField("chat_id", chatID)

	params := &tgbot.SendMessageParams{ChatID: chatID, Text: r.text}
	if r.retry {
		params.ReplyMarkup = keyboard(button("Retry", cbRetry))
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		log.WithError(err).Error("Failed to send message")
		return
	}

	label := "Bookmark"
	if r.cardKind == cbRemove {
		label = "Remove"
	}
	for _, rec := range r.cards {
		_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID:      chatID,
			Text:        formatCard(rec),
			ReplyMarkup: keyboard(button(label, r.cardKind+rec.ID)),
		})
		if err != nil {
			log.WithError(err).WithField("job_id", rec.ID).Error("Failed to send job card")
			return
		}
	}

	if r.more {
		_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID:      chatID,
			Text:        "Want more?",
			ReplyMarkup: keyboard(button("Load more", cbMore)),
		})
		if err != nil {
			log.WithError(err).Error("Failed to send load-more prompt")
		}
	}
}

func button(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func keyboard(buttons ...models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{buttons},
	}
}
