package telegram

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/apoyointegral/sesiones-bot/internal/config"
	"github.com/apoyointegral/sesiones-bot/internal/session"
)

const adminID int64 = 99

// fakeAPI records outbound traffic in place of the telegram client.
type fakeAPI struct {
	mu       sync.Mutex
	messages []*bot.SendMessageParams
	photos   []*bot.SendPhotoParams

	sendErr     error
	file        *models.File
	fileErr     error
	downloadURL string
}

func (f *fakeAPI) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.messages = append(f.messages, params)
	return &models.Message{}, nil
}

func (f *fakeAPI) SendPhoto(_ context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, params)
	return &models.Message{}, nil
}

func (f *fakeAPI) GetFile(_ context.Context, _ *bot.GetFileParams) (*models.File, error) {
	return f.file, f.fileErr
}

func (f *fakeAPI) FileDownloadLink(_ *models.File) string {
	return f.downloadURL
}

func (f *fakeAPI) sent() []*bot.SendMessageParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*bot.SendMessageParams(nil), f.messages...)
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
	f.photos = nil
}

// messagesTo filters recorded sends by chat id.
func (f *fakeAPI) messagesTo(chatID int64) []*bot.SendMessageParams {
	var out []*bot.SendMessageParams
	for _, m := range f.sent() {
		if id, ok := m.ChatID.(int64); ok && id == chatID {
			out = append(out, m)
		}
	}
	return out
}

type auditRecord struct {
	chatID      int64
	sessionType string
	event       string
}

type fakeAudit struct {
	mu       sync.Mutex
	payments []auditRecord
	events   []auditRecord
	total    int
}

func (a *fakeAudit) RecordConfirmedPayment(chatID int64, _, _, sessionType string, _ float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.payments = append(a.payments, auditRecord{chatID: chatID, sessionType: sessionType})
	a.total++
	return nil
}

func (a *fakeAudit) RecordSessionEvent(chatID int64, sessionType, event string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, auditRecord{chatID: chatID, sessionType: sessionType, event: event})
	return nil
}

func (a *fakeAudit) CountConfirmedPayments() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Config {
	return &config.Config{
		AdminID:      adminID,
		PhoneNumber:  "0412-5551234",
		NationalID:   "V-12345678",
		BankName:     "Banco de Venezuela",
		ExchangeRate: 36.5,
	}
}

func newTestBot(cfg *config.Config) (*Bot, *fakeAPI, *session.Registry, *fakeAudit, *testClock) {
	clk := &testClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	reg := session.NewRegistryWithClock(clk.Now)
	api := &fakeAPI{}
	audit := &fakeAudit{}
	b := &Bot{
		api:         api,
		cfg:         cfg,
		registry:    reg,
		audit:       audit,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		httpClient:  &http.Client{Timeout: time.Second},
		expiryDelay: 10 * time.Millisecond,
	}
	return b, api, reg, audit, clk
}

func userUpdate(chatID int64, name, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			From: &models.User{ID: chatID, FirstName: name},
			Chat: models.Chat{ID: chatID},
			Text: text,
		},
	}
}

func adminUpdate(text string) *models.Update {
	return userUpdate(adminID, "Admin", text)
}

// activate moves a chat into an active conversation of the given type.
func activate(reg *session.Registry, chatID int64, name, sessionType string) {
	reg.SelectSession(chatID, sessionType, session.PriceUSD[sessionType], name)
	reg.ConfirmPayment(chatID, sessionType)
}
