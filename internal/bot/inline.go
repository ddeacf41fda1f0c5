package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"marketbot/pkg/ai"
	"marketbot/pkg/textutil"
)

const inlineMinQueryLen = 3

// inlineShortCacheTime keeps hint and error answers out of Telegram's
// own result cache; generated answers can live longer.
const (
	inlineShortCacheTime  = 5
	inlineResultCacheTime = 300
)

// inlineKind is one answer variant offered for an inline query, with
// its own prompt and sampling settings.
type inlineKind struct {
	id          string
	title       string
	header      string
	system      string
	request     string
	maxTokens   int
	temperature float64
}

var inlineKinds = []inlineKind{
	{
		id:          "quick_advice",
		title:       "💡 Быстрый совет",
		header:      "💡 Совет маркетолога:",
		system:      "Ты — эксперт по маркетингу. Давай краткие, полезные и конкретные советы. Используй максимум 3-4 предложения. Не начинай с фраз типа 'Вот мой совет' или 'Как маркетолог'.",
		request:     "Дай краткий и конкретный маркетинговый совет по запросу: %s",
		maxTokens:   500,
		temperature: 0.7,
	},
	{
		id:          "content_idea",
		title:       "📝 Идея контента",
		header:      "📝 Идея для поста:",
		system:      "Ты — креативный SMM-специалист. Предлагай интересные идеи для постов в соцсетях с конкретным форматом, структурой и хештегами. Не начинай с фраз типа 'Вот моя идея' или 'Как SMM-специалист'.",
		request:     "Предложи креативную идею для поста в социальных сетях по теме: %s",
		maxTokens:   800,
		temperature: 0.8,
	},
	{
		id:          "customer_message",
		title:       "💬 Сообщение клиенту",
		header:      "💬 Ответ клиенту:",
		system:      "Ты — профессиональный менеджер по работе с клиентами. Пиши вежливые, эмпатичные и профессиональные ответы клиентам. Не используй шаблонные фразы. Не начинай с обращений 'Уважаемый клиент'.",
		request:     "Напиши профессиональный ответ клиенту на запрос/комментарий: %s",
		maxTokens:   600,
		temperature: 0.7,
	},
}

// handleInlineQuery answers an inline query with one article per answer
// variant. Variants come from the per-user cache when the same query was
// generated recently.
func (b *Bot) handleInlineQuery(ctx context.Context, q *tgbotapi.InlineQuery) {
	if q.From == nil {
		return
	}
	query := strings.TrimSpace(q.Query)
	if utf8.RuneCountInString(query) < inlineMinQueryLen {
		hint := tgbotapi.NewInlineQueryResultArticle(
			uuid.NewString(),
			"✍️ Введите запрос...",
			"Чтобы получить ответ, введите запрос длиной не менее 3-х символов.",
		)
		b.answerInline(q.ID, inlineShortCacheTime, hint)
		return
	}

	userID := q.From.ID
	if err := b.store.RecordActivity(userID); err != nil {
		slog.Error("record activity", "user_id", userID, "error", err)
	}

	var kbContent string
	if b.kb != nil {
		if content, found, err := b.kb.ContentForQuery(ctx, query); err != nil {
			slog.Warn("knowledge base lookup failed", "error", err)
		} else if found {
			kbContent = content
		}
	}

	results := make([]interface{}, 0, len(inlineKinds))
	for _, kind := range inlineKinds {
		text, err := b.inlineVariant(ctx, userID, kind, query, kbContent)
		if err != nil {
			slog.Error("inline generation failed", "kind", kind.id, "error", err)
			continue
		}
		results = append(results, tgbotapi.NewInlineQueryResultArticle(
			kind.id+"_"+uuid.NewString(), kind.title, text,
		))
	}
	if len(results) == 0 {
		failed := tgbotapi.NewInlineQueryResultArticle(
			uuid.NewString(),
			"❌ Произошла ошибка",
			"❌ Не удалось сгенерировать ответ на запрос: "+query,
		)
		b.answerInline(q.ID, inlineShortCacheTime, failed)
		return
	}

	if err := b.store.IncrementMessageCount(userID); err != nil {
		slog.Error("count inline query", "user_id", userID, "error", err)
	}
	b.answerInline(q.ID, inlineResultCacheTime, results...)
}

// inlineVariant returns the generated text for one answer kind, served
// from the response cache when possible.
func (b *Bot) inlineVariant(ctx context.Context, userID int64, kind inlineKind, query, kbContent string) (string, error) {
	key := cacheKey(userID, kind.id+":"+query)
	if cached, ok := b.cache.Get(key); ok {
		return cached, nil
	}

	prompt := fmt.Sprintf(kind.request, query)
	if kbContent != "" {
		prompt += "\n\nИспользуй эту информацию из базы знаний при ответе:\n" + kbContent
	}
	messages := []ai.Message{
		{Role: "system", Content: kind.system},
		{Role: "user", Content: prompt},
	}
	response, err := b.gen.Generate(ctx, messages, ai.SamplingParams{
		MaxTokens:   kind.maxTokens,
		Temperature: kind.temperature,
	})
	if err != nil {
		return "", err
	}

	text := kind.header + "\n\n" + textutil.StripBold(response)
	b.cache.Put(key, text)
	return text, nil
}

func (b *Bot) answerInline(queryID string, cacheTime int, results ...interface{}) {
	cfg := tgbotapi.InlineConfig{
		InlineQueryID: queryID,
		IsPersonal:    true,
		CacheTime:     cacheTime,
		Results:       results,
	}
	if _, err := b.sender.Request(cfg); err != nil {
		slog.Error("answer inline query", "error", err)
	}
}
