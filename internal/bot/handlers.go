package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketbot/pkg/ai"
	"marketbot/pkg/textutil"
)

func splitForTelegram(text string) []string {
	return textutil.SplitMessage(text, maxMessageLength)
}

// handleChat answers a free-form question: quota check, knowledge base
// retrieval, generation, history save, chunked reply.
func (b *Bot) handleChat(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	question := msg.Text
	if question == "" {
		return
	}

	if !b.flood.Allow(userID) {
		b.reply(msg.Chat.ID, floodText)
		return
	}

	count, limit, allowed, err := b.store.IncrementAndCheck(userID)
	if err != nil {
		slog.Error("quota check", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, genericErrorText)
		return
	}
	if !allowed {
		status, err := b.store.GetSubscriptionStatus(userID)
		if err != nil {
			slog.Error("subscription status", "user_id", userID, "error", err)
		}
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("💎 Оформить подписку", "open_subscription"),
			),
		)
		reply := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(quotaExceededText, count, limit, status))
		reply.ReplyMarkup = keyboard
		if _, err := b.sender.Send(reply); err != nil {
			slog.Error("send quota notice", "error", err)
		}
		return
	}

	if err := b.store.RecordPendingMessage(userID, question); err != nil {
		slog.Error("record pending message", "user_id", userID, "error", err)
	}

	// Replies are shaped by the asking user's history, so the cache is
	// scoped per user.
	key := cacheKey(userID, question)
	if cached, ok := b.cache.Get(key); ok {
		b.finishChat(userID, msg.Chat.ID, question, cached)
		return
	}

	response, err := b.composeResponse(ctx, userID, question)
	if err != nil {
		slog.Error("compose response", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, genericErrorText)
		return
	}
	b.cache.Put(key, response)
	b.finishChat(userID, msg.Chat.ID, question, response)
}

func (b *Bot) finishChat(userID, chatID int64, question, response string) {
	if err := b.store.SaveChatTurn(userID, question, response); err != nil {
		slog.Error("save chat turn", "user_id", userID, "error", err)
	}
	b.sendParts(chatID, response)
}

// composeResponse builds the prompt from the system context, any matched
// knowledge base content, and recent history, then calls the model.
func (b *Bot) composeResponse(ctx context.Context, userID int64, question string) (string, error) {
	system := systemPrompt
	if b.kb != nil {
		content, found, err := b.kb.ContentForQuery(ctx, question)
		if err != nil {
			slog.Warn("knowledge base lookup failed", "error", err)
		} else if found {
			system = fmt.Sprintf(kbContextPrompt, systemPrompt, content)
		}
	}

	messages := []ai.Message{{Role: "system", Content: system}}
	history, err := b.store.GetChatHistory(userID, 10)
	if err != nil {
		slog.Warn("load chat history", "user_id", userID, "error", err)
	}
	// History arrives newest first; replay it chronologically.
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if entry.Response == "" {
			continue
		}
		messages = append(messages,
			ai.Message{Role: "user", Content: entry.Message},
			ai.Message{Role: "assistant", Content: entry.Response},
		)
	}
	messages = append(messages, ai.Message{Role: "user", Content: question})

	response, err := b.generateWithRetry(ctx, messages)
	if err != nil {
		return "", err
	}
	return textutil.StripBold(response), nil
}

const generationRetries = 2

func (b *Bot) generateWithRetry(ctx context.Context, messages []ai.Message) (string, error) {
	params := ai.SamplingParams{MaxTokens: b.cfg.MaxTokens, Temperature: b.cfg.Temperature}
	var lastErr error
	for attempt := 0; attempt <= generationRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second):
			}
		}
		response, err := b.gen.Generate(ctx, messages, params)
		if err == nil {
			return response, nil
		}
		lastErr = err
		slog.Warn("generation attempt failed", "attempt", attempt+1, "error", err)
	}
	return "", lastErr
}

func (b *Bot) handleStatus(msg *tgbotapi.Message) {
	userID := msg.From.ID
	status, err := b.store.GetSubscriptionStatus(userID)
	if err != nil {
		slog.Error("subscription status", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, genericErrorText)
		return
	}
	count, err := b.store.GetMessageCount(userID)
	if err != nil {
		slog.Error("message count", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, genericErrorText)
		return
	}
	limit, err := b.store.GetMessageLimit(userID)
	if err != nil {
		slog.Error("message limit", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, genericErrorText)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf(
		"💬 Ваш текущий статус: %s\n📊 Использовано сообщений: %d/%d",
		status, count, limit,
	))
}
