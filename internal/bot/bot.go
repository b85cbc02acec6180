// Package bot is the Telegram surface of the profile sync service.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/dtroode/vpnbot/internal/logger"
	"github.com/dtroode/vpnbot/internal/model"
	"github.com/dtroode/vpnbot/internal/service"
)

// Callback data of the inline buttons.
const (
	CallbackGet     = "vpn_get"
	CallbackRefresh = "vpn_refresh"
	CallbackConfig  = "vpn_config"
)

const (
	defaultConcurrency    = 16
	defaultRequestTimeout = 45 * time.Second
)

// Sender is the part of *tgbotapi.BotAPI the handler uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Registrar stores bot users.
type Registrar interface {
	Register(ctx context.Context, telegramID int64, username, fullName string) (model.User, error)
}

// Syncer returns the synchronized profile of a user.
type Syncer interface {
	Ensure(ctx context.Context, user model.User, force bool) (service.SyncResult, error)
}

// Handler dispatches updates. It keeps no per-chat state.
type Handler struct {
	sender  Sender
	users   Registrar
	sync    Syncer
	alpn    []string
	logger  *logger.Logger
	timeout time.Duration
	limit   int
}

func NewHandler(sender Sender, users Registrar, sync Syncer, alpn []string, logger *logger.Logger) *Handler {
	return &Handler{
		sender:  sender,
		users:   users,
		sync:    sync,
		alpn:    alpn,
		logger:  logger,
		timeout: defaultRequestTimeout,
		limit:   defaultConcurrency,
	}
}

// Run handles updates until ctx is done or updates is closed, then waits
// for in-flight handlers.
func (h *Handler) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.limit)

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case update, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				h.HandleUpdate(gctx, update)
				return nil
			})
		}
	}
}

// HandleUpdate processes one update. Failures are logged and reported to
// the chat, never returned.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() || msg.From == nil {
		return
	}

	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		user, err := h.register(ctx, msg.From)
		if err != nil {
			h.replyError(chatID, err)
			return
		}
		h.send(newText(chatID, welcomeText(user), menuKeyboard()))
	case "vpn":
		h.sendProfile(ctx, chatID, msg.From, false)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := h.sender.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		h.logger.Warn("Bot: failed to answer callback", "error", err.Error())
	}
	if cq.Message == nil || cq.From == nil {
		return
	}

	chatID := cq.Message.Chat.ID
	switch cq.Data {
	case CallbackGet:
		h.sendProfile(ctx, chatID, cq.From, false)
	case CallbackRefresh:
		h.sendProfile(ctx, chatID, cq.From, true)
	case CallbackConfig:
		h.sendConfig(ctx, chatID, cq.From)
	default:
		h.logger.Debug("Bot: unknown callback", "data", cq.Data)
	}
}

func (h *Handler) sendProfile(ctx context.Context, chatID int64, from *tgbotapi.User, force bool) {
	res, err := h.ensure(ctx, from, force)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.send(newText(chatID, profileText(res), profileKeyboard()))
}

func (h *Handler) sendConfig(ctx context.Context, chatID int64, from *tgbotapi.User) {
	res, err := h.ensure(ctx, from, false)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	doc, err := configDocument(chatID, res, h.alpn)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.send(doc)
}

func (h *Handler) ensure(ctx context.Context, from *tgbotapi.User, force bool) (service.SyncResult, error) {
	user, err := h.register(ctx, from)
	if err != nil {
		return service.SyncResult{}, err
	}

	res, err := h.sync.Ensure(ctx, user, force)
	if err != nil {
		return service.SyncResult{}, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return res, nil
}

func (h *Handler) register(ctx context.Context, from *tgbotapi.User) (model.User, error) {
	fullName := strings.TrimSpace(from.FirstName + " " + from.LastName)
	return h.users.Register(ctx, from.ID, from.UserName, fullName)
}

func (h *Handler) replyError(chatID int64, err error) {
	h.logger.Error("Bot: request failed",
		"chat_id", chatID,
		"error", err.Error())
	h.send(newText(chatID, msgInternalError, menuKeyboard()))
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.sender.Send(c); err != nil {
		h.logger.Warn("Bot: failed to send message", "error", err.Error())
	}
}
