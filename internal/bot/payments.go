package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketbot/internal/payments"
	"marketbot/pkg/domain"
)

const premiumDays = 30

func (b *Bot) handleSubscribe(ctx context.Context, msg *tgbotapi.Message) {
	b.handleSubscribeForUser(ctx, msg.Chat.ID, msg.From.ID)
}

// handleSubscribeForUser creates a pending payment and sends the
// confirmation link with a check button.
func (b *Bot) handleSubscribeForUser(ctx context.Context, chatID, userID int64) {
	if b.payments == nil {
		b.reply(chatID, "⚠️ Платежная система временно недоступна. Пожалуйста, обратитесь к администратору.")
		return
	}

	status, err := b.store.GetSubscriptionStatus(userID)
	if err != nil {
		slog.Error("subscription status", "user_id", userID, "error", err)
		b.reply(chatID, genericErrorText)
		return
	}
	if status == domain.SubscriptionPremium {
		b.reply(chatID, "✅ У вас уже оформлена премиум-подписка.")
		return
	}

	description := fmt.Sprintf("Премиум-подписка на %d дней", premiumDays)
	payment, err := b.payments.Create(ctx, b.cfg.PremiumPrice, description, userID, string(domain.SubscriptionPremium))
	if err != nil {
		slog.Error("create payment", "user_id", userID, "error", err)
		b.reply(chatID, "Не удалось создать платеж. Пожалуйста, попробуйте позже.")
		return
	}

	record := domain.Payment{
		UserID:           userID,
		PaymentID:        payment.ID,
		SubscriptionType: string(domain.SubscriptionPremium),
		Amount:           b.cfg.PremiumPrice,
		Status:           domain.PaymentPending,
		Metadata:         map[string]string{"user_id": strconv.FormatInt(userID, 10)},
	}
	if err := b.store.CreatePayment(record); err != nil {
		slog.Error("store payment", "user_id", userID, "payment_id", payment.ID, "error", err)
		b.reply(chatID, genericErrorText)
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💳 Перейти к оплате", payment.ConfirmationURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Проверить оплату", "check_payment"),
		),
	)
	text := fmt.Sprintf(
		"💎 Премиум-подписка\n\nСтоимость: %.0f RUB\nСрок: %d дней\nЛимит сообщений: %d\n\nПерейдите по ссылке для оплаты, затем нажмите \"Проверить оплату\".",
		b.cfg.PremiumPrice, premiumDays, b.cfg.PremiumLimit,
	)
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyMarkup = keyboard
	if _, err := b.sender.Send(reply); err != nil {
		slog.Error("send payment message", "chat_id", chatID, "error", err)
	}
	slog.Info("payment created", "user_id", userID, "payment_id", payment.ID)
}

// handleCheckPayment verifies the latest pending payment and activates
// the subscription on success.
func (b *Bot) handleCheckPayment(ctx context.Context, chatID, userID int64) {
	if b.payments == nil {
		b.reply(chatID, "⚠️ Платежная система временно недоступна.")
		return
	}
	pending, ok, err := b.store.LatestPendingPayment(userID)
	if err != nil {
		slog.Error("load pending payment", "user_id", userID, "error", err)
		b.reply(chatID, genericErrorText)
		return
	}
	if !ok {
		b.reply(chatID, "У вас нет ожидающих платежей. Оформите подписку командой /subscribe.")
		return
	}

	gatewayState, err := b.payments.Check(ctx, pending.PaymentID)
	if err != nil {
		slog.Error("check payment", "payment_id", pending.PaymentID, "error", err)
		b.reply(chatID, "Не удалось проверить платеж. Пожалуйста, попробуйте позже.")
		return
	}

	switch gatewayState.Status {
	case payments.StatusSucceeded:
		b.activatePremium(chatID, userID, pending.PaymentID)
	case payments.StatusCanceled:
		if err := b.store.SetPaymentStatus(pending.PaymentID, domain.PaymentCanceled); err != nil {
			slog.Error("mark payment canceled", "payment_id", pending.PaymentID, "error", err)
		}
		b.reply(chatID, "❌ Платеж отменен. Вы можете оформить подписку заново командой /subscribe.")
	default:
		b.reply(chatID, "⏳ Платеж еще не завершен. Завершите оплату и нажмите \"Проверить оплату\" снова.")
	}
}

func (b *Bot) activatePremium(chatID, userID int64, paymentID string) {
	expiry := time.Now().Add(premiumDays * 24 * time.Hour)
	if err := b.store.UpdateSubscription(userID, domain.SubscriptionPremium, &expiry); err != nil {
		slog.Error("activate subscription", "user_id", userID, "error", err)
		b.reply(chatID, genericErrorText)
		return
	}
	if err := b.store.ResetMessageCount(userID); err != nil {
		slog.Error("reset message count", "user_id", userID, "error", err)
	}
	if err := b.store.SetMessageLimit(userID, nil); err != nil {
		slog.Error("clear limit override", "user_id", userID, "error", err)
	}
	if err := b.store.SetPaymentStatus(paymentID, domain.PaymentSucceeded); err != nil {
		slog.Error("mark payment succeeded", "payment_id", paymentID, "error", err)
	}
	b.reply(chatID, fmt.Sprintf(
		"✅ Подписка успешно оформлена!\n\nСрок действия: %d дней\nЛимит сообщений: %d\n\nБлагодарим за покупку!",
		premiumDays, b.cfg.PremiumLimit,
	))
	slog.Info("premium subscription activated", "user_id", userID, "payment_id", paymentID)
}
