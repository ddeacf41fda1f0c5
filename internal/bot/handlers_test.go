package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketbot/internal/config"
	"marketbot/internal/kb"
	"marketbot/internal/payments"
	"marketbot/pkg/ai"
	"marketbot/pkg/domain"
	"marketbot/pkg/store"
)

// fakeSender records outgoing messages instead of calling Telegram.
type fakeSender struct {
	messages []string
	chatIDs  []int64
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, msg.Text)
		f.chatIDs = append(f.chatIDs, msg.ChatID)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) GetFileDirectURL(string) (string, error) {
	return "", errors.New("not available in tests")
}

func (f *fakeSender) last(t *testing.T) string {
	t.Helper()
	if len(f.messages) == 0 {
		t.Fatal("no messages sent")
	}
	return f.messages[len(f.messages)-1]
}

// stubGenerator returns canned text and records the prompt it saw.
type stubGenerator struct {
	response string
	err      error
	lastMsgs []ai.Message
	calls    int
}

func (g *stubGenerator) Generate(_ context.Context, messages []ai.Message, _ ai.SamplingParams) (string, error) {
	g.calls++
	g.lastMsgs = messages
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

// stubGateway plays the payment provider.
type stubGateway struct {
	created     int
	checkStatus string
}

func (g *stubGateway) Create(_ context.Context, amount float64, description string, userID int64, subscriptionType string) (payments.Payment, error) {
	g.created++
	return payments.Payment{ID: "pay-test", Status: payments.StatusPending, ConfirmationURL: "https://pay.example"}, nil
}

func (g *stubGateway) Check(_ context.Context, paymentID string) (payments.Payment, error) {
	return payments.Payment{ID: paymentID, Status: g.checkStatus, Paid: g.checkStatus == payments.StatusSucceeded}, nil
}

func newTestBot(t *testing.T, gen ai.TextGenerator, gateway PaymentGateway) (*Bot, *fakeSender, *store.GormStore) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.FileConfig{
		MaxTokens:    100,
		Temperature:  0.7,
		FreeLimit:    5,
		PremiumLimit: 500,
		PremiumPrice: 499,
		AdminIDs:     []int64{900},
	}
	st, err := store.NewGormStore(filepath.Join(dir, "bot.db"),
		store.WithTierLimits(cfg.TierLimits()),
		store.WithFallbackLimit(50),
	)
	if err != nil {
		t.Fatalf("NewGormStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	manager, err := kb.NewManager(st, nil, filepath.Join(dir, "kb_files"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	sender := &fakeSender{}
	b := newBot(cfg, st, manager, gen, gateway, sender)
	// Tests fire messages faster than a human would.
	b.flood = newFloodLimiter(1000, 1000)
	return b, sender, st
}

func userMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
	}
}

func TestChatAnswersAndSavesHistory(t *testing.T) {
	gen := &stubGenerator{response: "Сфокусируйтесь на одном канале."}
	b, sender, st := newTestBot(t, gen, nil)

	b.handleChat(context.Background(), userMessage(1, "С чего начать продвижение?"))

	if got := sender.last(t); got != "Сфокусируйтесь на одном канале." {
		t.Fatalf("unexpected reply: %q", got)
	}
	history, err := st.GetChatHistory(1, 10)
	if err != nil {
		t.Fatalf("GetChatHistory: %v", err)
	}
	if len(history) != 1 || history[0].Response == "" {
		t.Fatalf("chat turn not saved: %+v", history)
	}
	count, err := st.GetMessageCount(1)
	if err != nil {
		t.Fatalf("GetMessageCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("message count: got %d", count)
	}
}

func TestChatQuotaExceeded(t *testing.T) {
	gen := &stubGenerator{response: "ответ"}
	b, sender, _ := newTestBot(t, gen, nil)
	ctx := context.Background()

	questions := []string{"один", "два", "три", "четыре", "пять", "шесть"}
	for _, q := range questions {
		b.handleChat(ctx, userMessage(2, q))
	}

	last := sender.last(t)
	if !strings.Contains(last, "Достигнут лимит сообщений") {
		t.Fatalf("sixth message should hit the limit, got %q", last)
	}
	if gen.calls != 5 {
		t.Fatalf("generator should run for the first five messages only, ran %d times", gen.calls)
	}
}

func TestChatUsesCache(t *testing.T) {
	gen := &stubGenerator{response: "кэшируемый ответ"}
	b, sender, _ := newTestBot(t, gen, nil)
	ctx := context.Background()

	b.handleChat(ctx, userMessage(3, "повторный вопрос"))
	b.handleChat(ctx, userMessage(3, "повторный вопрос"))

	if gen.calls != 1 {
		t.Fatalf("second identical question should come from cache, generator ran %d times", gen.calls)
	}
	if got := sender.last(t); got != "кэшируемый ответ" {
		t.Fatalf("cached reply: %q", got)
	}
}

func TestChatCacheIsScopedPerUser(t *testing.T) {
	gen := &stubGenerator{response: "ответ с учетом истории"}
	b, _, _ := newTestBot(t, gen, nil)
	ctx := context.Background()

	b.handleChat(ctx, userMessage(30, "как продвигать кофейню?"))
	b.handleChat(ctx, userMessage(31, "как продвигать кофейню?"))

	// The reply is built from the asking user's history, so another user
	// with the same question must trigger a fresh generation.
	if gen.calls != 2 {
		t.Fatalf("expected a generation per user, got %d", gen.calls)
	}
}

func TestChatGenerationFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("backend down")}
	b, sender, _ := newTestBot(t, gen, nil)

	b.handleChat(context.Background(), userMessage(4, "вопрос"))

	if got := sender.last(t); got != genericErrorText {
		t.Fatalf("expected error text, got %q", got)
	}
	if gen.calls != generationRetries+1 {
		t.Fatalf("expected %d attempts, got %d", generationRetries+1, gen.calls)
	}
}

func TestChatIncludesKnowledgeBaseContext(t *testing.T) {
	gen := &stubGenerator{response: "ответ"}
	b, _, _ := newTestBot(t, gen, nil)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "seo.txt")
	writeFixture(t, src, "SEO приносит органический трафик на сайт.")
	if _, err := b.kb.AddDocument(ctx, src, "SEO", 900); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	b.handleChat(ctx, userMessage(5, "seo трафик"))

	if len(gen.lastMsgs) == 0 {
		t.Fatal("generator not called")
	}
	system := gen.lastMsgs[0]
	if system.Role != "system" || !strings.Contains(system.Content, "органический трафик") {
		t.Fatalf("system prompt missing knowledge base content: %q", system.Content)
	}
}

func TestBusinessPlanWizard(t *testing.T) {
	var plan strings.Builder
	for i, title := range businessPlanSections {
		if i > 0 {
			plan.WriteString("\n")
		}
		plan.WriteString(title + "\nСодержимое раздела.\n")
	}
	gen := &stubGenerator{response: plan.String()}
	b, sender, _ := newTestBot(t, gen, nil)

	b.handleCommand(context.Background(), commandMessage(6, "business", ""))
	if state, _ := b.sessions.Get(6); state != stateBusinessPlanInfo {
		t.Fatal("command should arm the wizard")
	}

	b.handleMessage(context.Background(), userMessage(6, "Кофейня в центре города"))

	if state, _ := b.sessions.Get(6); state != stateIdle {
		t.Fatal("wizard should clear its state when done")
	}
	var sectionMessages int
	for _, m := range sender.messages {
		if strings.HasPrefix(strings.TrimSpace(m), "1.") || strings.HasPrefix(strings.TrimSpace(m), "7.") {
			sectionMessages++
		}
	}
	if sectionMessages < 2 {
		t.Fatalf("plan sections should go out as separate messages, got %q", sender.messages)
	}
}

func TestSubscribeAndCheckPayment(t *testing.T) {
	gateway := &stubGateway{checkStatus: payments.StatusSucceeded}
	b, sender, st := newTestBot(t, &stubGenerator{response: "x"}, gateway)
	ctx := context.Background()

	b.handleSubscribeForUser(ctx, 7, 7)
	if gateway.created != 1 {
		t.Fatalf("payment not created: %d", gateway.created)
	}
	pending, ok, err := st.LatestPendingPayment(7)
	if err != nil || !ok {
		t.Fatalf("pending payment: ok=%v err=%v", ok, err)
	}
	if pending.PaymentID != "pay-test" {
		t.Fatalf("unexpected payment id: %q", pending.PaymentID)
	}

	b.handleCheckPayment(ctx, 7, 7)

	status, err := st.GetSubscriptionStatus(7)
	if err != nil {
		t.Fatalf("GetSubscriptionStatus: %v", err)
	}
	if status != domain.SubscriptionPremium {
		t.Fatalf("expected premium after successful payment, got %q", status)
	}
	count, _ := st.GetMessageCount(7)
	if count != 0 {
		t.Fatalf("counter should reset on upgrade, got %d", count)
	}
	if got := sender.last(t); !strings.Contains(got, "Подписка успешно оформлена") {
		t.Fatalf("confirmation message: %q", got)
	}
	if _, ok, _ := st.LatestPendingPayment(7); ok {
		t.Fatal("payment should no longer be pending")
	}
}

func TestCheckPaymentStillPending(t *testing.T) {
	gateway := &stubGateway{checkStatus: payments.StatusPending}
	b, sender, st := newTestBot(t, &stubGenerator{response: "x"}, gateway)
	ctx := context.Background()

	b.handleSubscribeForUser(ctx, 8, 8)
	b.handleCheckPayment(ctx, 8, 8)

	status, _ := st.GetSubscriptionStatus(8)
	if status != domain.SubscriptionFree {
		t.Fatalf("unpaid user must stay free, got %q", status)
	}
	if got := sender.last(t); !strings.Contains(got, "еще не завершен") {
		t.Fatalf("pending message: %q", got)
	}
}

func TestAdminCommandsRequireAdmin(t *testing.T) {
	b, sender, _ := newTestBot(t, &stubGenerator{response: "x"}, nil)

	b.handleCommand(context.Background(), commandMessage(1, "broadcast", ""))
	if got := sender.last(t); !strings.Contains(got, "нет прав") {
		t.Fatalf("non-admin should be rejected, got %q", got)
	}

	b.handleCommand(context.Background(), commandMessage(900, "broadcast", ""))
	if state, _ := b.sessions.Get(900); state != stateBroadcastMessage {
		t.Fatal("admin broadcast should arm the session")
	}
}

func TestSetLimitOverride(t *testing.T) {
	b, sender, st := newTestBot(t, &stubGenerator{response: "x"}, nil)
	ctx := context.Background()

	b.handleCommand(ctx, commandMessage(900, "setlimit", "42 7"))
	limit, err := st.GetMessageLimit(42)
	if err != nil {
		t.Fatalf("GetMessageLimit: %v", err)
	}
	if limit != 7 {
		t.Fatalf("override not applied: %d", limit)
	}

	b.handleCommand(ctx, commandMessage(900, "setlimit", "42 default"))
	limit, err = st.GetMessageLimit(42)
	if err != nil {
		t.Fatalf("GetMessageLimit: %v", err)
	}
	if limit != 5 {
		t.Fatalf("override not cleared, limit %d", limit)
	}
	_ = sender
}

func TestFeedbackForwardsToAdmins(t *testing.T) {
	b, sender, _ := newTestBot(t, &stubGenerator{response: "x"}, nil)
	ctx := context.Background()

	b.handleCommand(ctx, commandMessage(10, "feedback", ""))
	if state, _ := b.sessions.Get(10); state != stateFeedbackMessage {
		t.Fatal("command should arm the feedback dialog")
	}

	msg := &tgbotapi.Message{
		Text: "Добавьте экспорт истории",
		From: &tgbotapi.User{ID: 10, UserName: "ivan", FirstName: "Иван"},
		Chat: &tgbotapi.Chat{ID: 10},
	}
	b.handleMessage(ctx, msg)

	if state, _ := b.sessions.Get(10); state != stateIdle {
		t.Fatal("feedback dialog should clear its state")
	}
	var adminCopy string
	for i, chatID := range sender.chatIDs {
		if chatID == 900 {
			adminCopy = sender.messages[i]
		}
	}
	if adminCopy == "" {
		t.Fatal("feedback not delivered to the admin")
	}
	if !strings.Contains(adminCopy, "ID: 10") || !strings.Contains(adminCopy, "Добавьте экспорт истории") {
		t.Fatalf("admin copy missing details: %q", adminCopy)
	}
	if got := sender.last(t); got != feedbackThanksText {
		t.Fatalf("user confirmation: %q", got)
	}
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "file body")
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "uploads", "doc.txt")
	if err := downloadFile(context.Background(), srv.URL, dst); err != nil {
		t.Fatalf("downloadFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "file body" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestDownloadFileHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dst := filepath.Join(t.TempDir(), "doc.txt")
	if err := downloadFile(ctx, srv.URL, dst); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

// commandMessage builds a message whose text parses as a bot command.
func commandMessage(userID int64, command, args string) *tgbotapi.Message {
	text := "/" + command
	if args != "" {
		text += " " + args
	}
	return &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(command) + 1},
		},
	}
}
