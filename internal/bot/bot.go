// Package bot wires the Telegram transport to the store, the knowledge
// base, the language model, and the payment gateway.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketbot/internal/config"
	"marketbot/internal/kb"
	"marketbot/internal/payments"
	"marketbot/pkg/ai"
	"marketbot/pkg/store"
)

// Telegram rejects messages above 4096 characters.
const maxMessageLength = 4096

const (
	cacheTTL           = 30 * time.Minute
	cacheSweepInterval = 5 * time.Minute
	floodPerSecond     = 0.5
	floodBurst         = 3
)

// PaymentGateway is what the subscription flow needs from the payment
// provider. *payments.Client satisfies it.
type PaymentGateway interface {
	Create(ctx context.Context, amount float64, description string, userID int64, subscriptionType string) (payments.Payment, error)
	Check(ctx context.Context, paymentID string) (payments.Payment, error)
}

// Sender abstracts the Telegram API surface the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot is the long-polling Telegram bot.
type Bot struct {
	api      *tgbotapi.BotAPI
	sender   Sender
	store    store.Store
	kb       *kb.Manager
	gen      ai.TextGenerator
	payments PaymentGateway
	cfg      config.FileConfig

	sessions *sessionManager
	cache    *responseCache
	flood    *floodLimiter
}

// New connects to Telegram and builds the bot. payments may be nil when
// the gateway is not configured; the subscribe flow then reports the
// feature as unavailable.
func New(cfg config.FileConfig, st store.Store, manager *kb.Manager, gen ai.TextGenerator, gateway PaymentGateway) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	slog.Info("telegram bot authorized", "username", api.Self.UserName)
	b := newBot(cfg, st, manager, gen, gateway, api)
	b.api = api
	return b, nil
}

// newBot builds the bot around an already constructed sender. Split out
// so handlers can be exercised without the Telegram API.
func newBot(cfg config.FileConfig, st store.Store, manager *kb.Manager, gen ai.TextGenerator, gateway PaymentGateway, sender Sender) *Bot {
	return &Bot{
		sender:   sender,
		store:    st,
		kb:       manager,
		gen:      gen,
		payments: gateway,
		cfg:      cfg,
		sessions: newSessionManager(),
		cache:    newResponseCache(cacheTTL),
		flood:    newFloodLimiter(floodPerSecond, floodBurst),
	}
}

// Start consumes updates until ctx is canceled.
func (b *Bot) Start(ctx context.Context) {
	go b.cache.Janitor(ctx, cacheSweepInterval)

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			slog.Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling update", "panic", r)
		}
	}()

	switch {
	case update.InlineQuery != nil:
		b.handleInlineQuery(ctx, update.InlineQuery)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID

	if err := b.store.RecordActivity(userID); err != nil {
		slog.Error("record activity", "user_id", userID, "error", err)
	}

	if msg.Document != nil {
		b.handleDocumentUpload(ctx, msg)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	state, data := b.sessions.Get(userID)
	switch state {
	case stateBusinessPlanInfo:
		b.handleBusinessPlanInfo(ctx, msg)
	case stateValuePropositionInfo:
		b.handleValuePropositionInfo(ctx, msg)
	case stateBroadcastMessage:
		b.handleBroadcastMessage(msg)
	case stateDocumentTitle:
		b.handleDocumentTitle(ctx, msg, data)
	case stateFeedbackMessage:
		b.handleFeedbackMessage(msg)
	default:
		b.handleChat(ctx, msg)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	// Any command aborts an in-progress dialog.
	if msg.Command() != "cancel" {
		b.sessions.Clear(userID)
	}

	switch msg.Command() {
	case "start":
		b.reply(msg.Chat.ID, startText)
	case "help":
		b.reply(msg.Chat.ID, helpText)
	case "status":
		b.handleStatus(msg)
	case "business":
		b.sessions.Set(userID, stateBusinessPlanInfo, nil)
		b.reply(msg.Chat.ID, businessPlanRequest)
	case "value":
		b.sessions.Set(userID, stateValuePropositionInfo, nil)
		b.reply(msg.Chat.ID, valuePropositionRequest)
	case "subscribe":
		b.handleSubscribe(ctx, msg)
	case "feedback":
		b.sessions.Set(userID, stateFeedbackMessage, nil)
		b.reply(msg.Chat.ID, feedbackRequest)
	case "cancel":
		if b.sessions.Clear(userID) {
			b.reply(msg.Chat.ID, "❌ Операция отменена")
		} else {
			b.reply(msg.Chat.ID, "❓ Нет активных операций для отмены")
		}
	case "stats":
		b.handleStats(msg)
	case "docs":
		b.handleListDocs(msg)
	case "deldoc":
		b.handleDeleteDoc(msg)
	case "reindex":
		b.handleReindex(ctx, msg)
	case "broadcast":
		b.handleBroadcastStart(msg)
	case "setlimit":
		b.handleSetLimit(msg)
	default:
		b.reply(msg.Chat.ID, "Неизвестная команда. Отправьте /help для списка команд.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Acknowledge immediately so the client stops the spinner.
	if _, err := b.sender.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		slog.Warn("answer callback", "error", err)
	}
	if cb.Message == nil {
		return
	}
	switch cb.Data {
	case "open_subscription":
		b.handleSubscribeForUser(ctx, cb.Message.Chat.ID, cb.From.ID)
	case "check_payment":
		b.handleCheckPayment(ctx, cb.Message.Chat.ID, cb.From.ID)
	}
}

// reply sends text to the chat, chunked to the Telegram size limit.
func (b *Bot) reply(chatID int64, text string) {
	b.sendParts(chatID, text)
}

func (b *Bot) sendParts(chatID int64, text string) {
	for _, part := range splitForTelegram(text) {
		if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			slog.Error("send message", "chat_id", chatID, "error", err)
			return
		}
	}
}
