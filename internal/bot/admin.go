package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketbot/internal/kb"
)

const uploadDir = "temp_uploads"

func (b *Bot) requireAdmin(msg *tgbotapi.Message) bool {
	if b.cfg.IsAdmin(msg.From.ID) {
		return true
	}
	b.reply(msg.Chat.ID, "⛔ У вас нет прав для выполнения этой команды")
	return false
}

func (b *Bot) handleStats(msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}
	users, err := b.store.UserCount()
	if err != nil {
		slog.Error("user count", "error", err)
		b.reply(msg.Chat.ID, genericErrorText)
		return
	}
	docs, err := b.kb.ListDocuments()
	if err != nil {
		slog.Error("list documents", "error", err)
		b.reply(msg.Chat.ID, genericErrorText)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf(
		"📊 Статистика\n\n👥 Пользователей: %d\n📚 Документов в базе знаний: %d",
		users, len(docs),
	))
}

func (b *Bot) handleListDocs(msg *tgbotapi.Message) {
	docs, err := b.kb.ListDocuments()
	if err != nil {
		slog.Error("list documents", "error", err)
		b.reply(msg.Chat.ID, genericErrorText)
		return
	}
	if len(docs) == 0 {
		b.reply(msg.Chat.ID, "📚 База знаний пуста. Документы еще не загружены.")
		return
	}
	var sb strings.Builder
	sb.WriteString("📚 Документы в базе знаний:\n\n")
	for _, doc := range docs {
		fmt.Fprintf(&sb, "%d. %s (%s)\n   Загружен: %s, %d страниц\n\n",
			doc.ID, doc.Title, doc.Filename, doc.UploadDate.Format("2006-01-02"), doc.NumPages)
	}
	sb.WriteString("Удаление: /deldoc <id>")
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) handleDeleteDoc(msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}
	arg := strings.TrimSpace(msg.CommandArguments())
	docID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Укажите номер документа: /deldoc <id>\nСписок документов: /docs")
		return
	}
	if err := b.kb.DeleteDocument(docID); err != nil {
		if errors.Is(err, kb.ErrDocumentNotFound) {
			b.reply(msg.Chat.ID, fmt.Sprintf("❌ Документ %d не найден", docID))
			return
		}
		slog.Error("delete document", "doc_id", docID, "error", err)
		b.reply(msg.Chat.ID, genericErrorText)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Документ %d удален из базы знаний", docID))
}

func (b *Bot) handleReindex(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}
	b.reply(msg.Chat.ID, "⏳ Перестраиваю векторный индекс, это может занять некоторое время...")
	if err := b.kb.RebuildIndex(ctx); err != nil {
		if errors.Is(err, kb.ErrVectorUnavailable) {
			b.reply(msg.Chat.ID, "⚠️ Векторный поиск не настроен.")
			return
		}
		slog.Error("rebuild index", "error", err)
		b.reply(msg.Chat.ID, "❌ Не удалось перестроить индекс. Подробности в логах.")
		return
	}
	b.reply(msg.Chat.ID, "✅ Векторный индекс перестроен")
}

func (b *Bot) handleSetLimit(msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		b.reply(msg.Chat.ID, "Использование: /setlimit <user_id> <limit|default>")
		return
	}
	userID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Неверный идентификатор пользователя")
		return
	}
	if fields[1] == "default" {
		if err := b.store.SetMessageLimit(userID, nil); err != nil {
			slog.Error("clear limit override", "user_id", userID, "error", err)
			b.reply(msg.Chat.ID, genericErrorText)
			return
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("✅ Лимит пользователя %d сброшен к тарифному", userID))
		return
	}
	limit, err := strconv.Atoi(fields[1])
	if err != nil || limit <= 0 {
		b.reply(msg.Chat.ID, "Лимит должен быть положительным числом или \"default\"")
		return
	}
	if err := b.store.SetMessageLimit(userID, &limit); err != nil {
		slog.Error("set limit override", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, genericErrorText)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Лимит пользователя %d установлен: %d", userID, limit))
}

func (b *Bot) handleBroadcastStart(msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}
	b.sessions.Set(msg.From.ID, stateBroadcastMessage, nil)
	b.reply(msg.Chat.ID, "📣 Отправьте сообщение, которое нужно разослать всем пользователям.\nДля отмены используйте команду /cancel")
}

func (b *Bot) handleBroadcastMessage(msg *tgbotapi.Message) {
	b.sessions.Clear(msg.From.ID)
	text := msg.Text
	if strings.TrimSpace(text) == "" {
		b.reply(msg.Chat.ID, "❌ Рассылка отменена: пустое сообщение")
		return
	}
	userIDs, err := b.store.ListUserIDs()
	if err != nil {
		slog.Error("list users for broadcast", "error", err)
		b.reply(msg.Chat.ID, genericErrorText)
		return
	}
	sent := 0
	for _, userID := range userIDs {
		if _, err := b.sender.Send(tgbotapi.NewMessage(userID, text)); err != nil {
			slog.Warn("broadcast delivery failed", "user_id", userID, "error", err)
			continue
		}
		sent++
		// Pace outgoing messages to stay under the API limits.
		time.Sleep(100 * time.Millisecond)
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ Рассылка завершена\n\nОтправлено: %d/%d", sent, len(userIDs)))
	slog.Info("broadcast completed", "sent", sent, "total", len(userIDs))
}

// handleDocumentUpload downloads an admin-sent file and asks for a title.
func (b *Bot) handleDocumentUpload(ctx context.Context, msg *tgbotapi.Message) {
	if !b.cfg.IsAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, "⛔ Загружать документы могут только администраторы")
		return
	}
	filename := msg.Document.FileName
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".pdf" && ext != ".docx" && ext != ".txt" {
		b.reply(msg.Chat.ID, "❌ Поддерживаются файлы PDF, DOCX и TXT")
		return
	}

	url, err := b.sender.GetFileDirectURL(msg.Document.FileID)
	if err != nil {
		slog.Error("resolve file url", "error", err)
		b.reply(msg.Chat.ID, "❌ Не удалось получить файл. Попробуйте еще раз.")
		return
	}
	localPath := filepath.Join(uploadDir, filename)
	if err := downloadFile(ctx, url, localPath); err != nil {
		slog.Error("download file", "error", err)
		b.reply(msg.Chat.ID, "❌ Не удалось загрузить файл. Попробуйте еще раз.")
		return
	}

	b.sessions.Set(msg.From.ID, stateDocumentTitle, map[string]string{
		"path":     localPath,
		"filename": filename,
	})
	b.reply(msg.Chat.ID, "📝 Введите название документа для списка базы знаний.")
}

// handleDocumentTitle finishes the upload started by handleDocumentUpload.
func (b *Bot) handleDocumentTitle(ctx context.Context, msg *tgbotapi.Message, data map[string]string) {
	b.sessions.Clear(msg.From.ID)
	path := data["path"]
	if path == "" {
		b.reply(msg.Chat.ID, "❌ Произошла ошибка при обработке файла. Загрузите документ заново.")
		return
	}
	title := strings.TrimSpace(msg.Text)
	if title == "" {
		title = strings.TrimSuffix(data["filename"], filepath.Ext(data["filename"]))
	}

	b.reply(msg.Chat.ID, "⏳ Обрабатываю документ, это может занять некоторое время...")
	result, err := b.kb.AddDocument(ctx, path, title, msg.From.ID)
	// The stored copy lives in the knowledge base dir; the download is
	// no longer needed either way.
	if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
		slog.Warn("remove temp upload", "path", path, "error", removeErr)
	}
	if err != nil {
		switch {
		case errors.Is(err, kb.ErrNoText):
			b.reply(msg.Chat.ID, "❌ Не удалось извлечь текст из документа")
		case errors.Is(err, kb.ErrUnsupportedFormat):
			b.reply(msg.Chat.ID, "❌ Формат файла не поддерживается")
		default:
			slog.Error("add document", "error", err)
			b.reply(msg.Chat.ID, "❌ Ошибка при обработке документа. Подробности в логах.")
		}
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf(
		"✅ Документ \"%s\" добавлен в базу знаний!\nОбработано страниц: %d",
		title, result.NumPages,
	))
}

// downloadClient bounds Telegram file downloads so a stalled transfer
// cannot pin the handler goroutine.
var downloadClient = &http.Client{Timeout: 2 * time.Minute}

func downloadFile(ctx context.Context, url, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := downloadClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return out.Close()
}
