package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketbot/pkg/ai"
	"marketbot/pkg/textutil"
)

// handleBusinessPlanInfo takes the business description collected by the
// /business dialog and delivers the plan one section per message.
func (b *Bot) handleBusinessPlanInfo(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	info := msg.Text
	b.sessions.Clear(userID)
	if strings.TrimSpace(info) == "" {
		b.reply(msg.Chat.ID, "Опишите ваш бизнес текстом, пожалуйста.")
		return
	}
	b.reply(msg.Chat.ID, "Генерирую бизнес-план на основе предоставленной информации...")

	n := len(businessPlanSections)
	system := fmt.Sprintf(businessPlanSystem, n, strings.Join(businessPlanSections, "\n"))
	user := fmt.Sprintf(businessPlanUser, info)
	if kbContext := b.wizardContext(ctx, info); kbContext != "" {
		user += kbContext
	}

	response, err := b.generateWithRetry(ctx, []ai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		slog.Error("business plan generation", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, "Произошла ошибка при генерации бизнес-плана. Пожалуйста, попробуйте позже.")
		return
	}
	response = textutil.StripBold(response)

	// Regenerate any section the model left out, one request per gap.
	regen := func(index int) (string, error) {
		return b.generateWithRetry(ctx, []ai.Message{
			{Role: "system", Content: fmt.Sprintf(businessPlanSystem, n, strings.Join(businessPlanSections, "\n"))},
			{Role: "user", Content: fmt.Sprintf("Напиши только раздел \"%s\" для этого бизнеса:\n%s", businessPlanSections[index], info)},
		})
	}
	sections := textutil.FillSections(response, n, regen)

	b.reply(msg.Chat.ID, fmt.Sprintf("📊 Бизнес-план\n\nНиже будут отправлены %d разделов бизнес-плана:", n))
	for i, section := range sections {
		if !strings.HasPrefix(strings.TrimSpace(section), fmt.Sprintf("%d.", i+1)) {
			section = businessPlanSections[i] + "\n\n" + section
		}
		b.sendParts(msg.Chat.ID, section)
	}

	if err := b.store.SaveChatTurn(userID, "Бизнес-план: "+info, strings.Join(sections, "\n\n")); err != nil {
		slog.Error("save business plan turn", "user_id", userID, "error", err)
	}
	slog.Info("business plan generated", "user_id", userID)
}

// handleValuePropositionInfo produces three value proposition variants.
func (b *Bot) handleValuePropositionInfo(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	info := msg.Text
	b.sessions.Clear(userID)
	if strings.TrimSpace(info) == "" {
		b.reply(msg.Chat.ID, "Опишите ваш продукт текстом, пожалуйста.")
		return
	}
	b.reply(msg.Chat.ID, "Генерирую ценностное предложение на основе предоставленной информации...")

	const variants = 3
	user := fmt.Sprintf(valuePropositionUser, info)
	if kbContext := b.wizardContext(ctx, info); kbContext != "" {
		user += kbContext
	}

	response, err := b.generateWithRetry(ctx, []ai.Message{
		{Role: "system", Content: fmt.Sprintf(valuePropositionSystem, variants)},
		{Role: "user", Content: user},
	})
	if err != nil {
		slog.Error("value proposition generation", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, "Произошла ошибка при генерации ценностного предложения. Пожалуйста, попробуйте позже.")
		return
	}
	response = textutil.StripBold(response)

	sections := textutil.FillSections(response, variants, nil)
	b.reply(msg.Chat.ID, "💎 Ценностное предложение\n\nНиже будут отправлены варианты:")
	for _, section := range sections {
		b.sendParts(msg.Chat.ID, section)
	}

	if err := b.store.SaveChatTurn(userID, "Ценностное предложение: "+info, response); err != nil {
		slog.Error("save value proposition turn", "user_id", userID, "error", err)
	}
	slog.Info("value proposition generated", "user_id", userID)
}

// wizardContext fetches knowledge base material relevant to the business
// description, formatted for prompt inclusion. Empty when nothing matched.
func (b *Bot) wizardContext(ctx context.Context, info string) string {
	if b.kb == nil {
		return ""
	}
	content, found, err := b.kb.ContentForQuery(ctx, info)
	if err != nil {
		slog.Warn("knowledge base lookup failed", "error", err)
		return ""
	}
	if !found {
		return ""
	}
	return "\n\nИспользуй следующую информацию из базы знаний:\n" + content
}
