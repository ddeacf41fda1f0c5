package bot

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleFeedbackMessage forwards the user's feedback text to every
// configured admin and confirms delivery.
func (b *Bot) handleFeedbackMessage(msg *tgbotapi.Message) {
	b.sessions.Clear(msg.From.ID)
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		b.reply(msg.Chat.ID, "❌ Пустое сообщение. Отправьте /feedback и напишите текст отзыва.")
		return
	}

	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	username := msg.From.UserName
	if username == "" {
		username = "нет"
	}
	adminText := fmt.Sprintf(feedbackAdminText, msg.From.ID, name, username, text)

	delivered := 0
	for _, adminID := range b.cfg.AdminIDs {
		if _, err := b.sender.Send(tgbotapi.NewMessage(adminID, adminText)); err != nil {
			slog.Warn("deliver feedback", "admin_id", adminID, "error", err)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		b.reply(msg.Chat.ID, feedbackFailedText)
		return
	}
	slog.Info("feedback forwarded", "user_id", msg.From.ID, "admins", delivered)
	b.reply(msg.Chat.ID, feedbackThanksText)
}
