package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/apoyointegral/sesiones-bot/internal/config"
	"github.com/apoyointegral/sesiones-bot/internal/session"
	"github.com/apoyointegral/sesiones-bot/internal/storage"
)

// telegramAPI is the slice of the bot client the handlers use. *bot.Bot
// satisfies it; tests substitute a recording fake.
type telegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// Auditor records confirmed payments and session lifecycle events.
// *storage.Storage satisfies it.
type Auditor interface {
	RecordConfirmedPayment(chatID int64, userName, service, sessionType string, priceUSD float64) error
	RecordSessionEvent(chatID int64, sessionType, event string) error
	CountConfirmedPayments() (int, error)
}

// Bot wraps the telegram transport with the conversation flow and admin
// relay handlers.
type Bot struct {
	tg       *bot.Bot
	api      telegramAPI
	cfg      *config.Config
	registry *session.Registry
	audit    Auditor
	log      *slog.Logger

	httpClient  *http.Client
	expiryDelay time.Duration
}

// New creates the bot and registers all handlers.
func New(cfg *config.Config, reg *session.Registry, audit Auditor, log *slog.Logger) (*Bot, error) {
	b := &Bot{
		cfg:         cfg,
		registry:    reg,
		audit:       audit,
		log:         log,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		expiryDelay: session.ExtendedSessionDuration,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
	}

	tgBot, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	b.tg = tgBot
	b.api = tgBot
	b.registerHandlers(tgBot)

	return b, nil
}

func (b *Bot) registerHandlers(tgBot *bot.Bot) {
	// Each command is registered twice: exact for the bare command (usage
	// hints) and prefix for the command with arguments.
	register := func(cmd string, h bot.HandlerFunc) {
		tgBot.RegisterHandler(bot.HandlerTypeMessageText, cmd, bot.MatchTypeExact, h)
		tgBot.RegisterHandler(bot.HandlerTypeMessageText, cmd+" ", bot.MatchTypePrefix, h)
	}

	register("/start", b.startHandler)

	register("/confirmar_pago", b.confirmPaymentHandler)
	register("/responder", b.replyHandler)
	register("/r", b.quickReplyHandler)
	register("/pendientes", b.pendingHandler)
	register("/ultima", b.lastQuestionHandler)
	register("/rapida", b.quickHelpHandler)
	register("/admin", b.statusHandler)
	for i := 1; i <= 9; i++ {
		register("/r"+strconv.Itoa(i), b.numberedReplyHandler)
	}
}

// Start starts long polling until the context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.tg.Start(ctx)
}

func (b *Bot) startHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	name := userName(update.Message.From)
	b.sendMessage(ctx, update.Message.Chat.ID,
		fmt.Sprintf("¡Hola %s! 🌟 Bienvenido a Apoyo Integral. Estoy aquí para acompañarte en tu camino de crecimiento y bienestar ¿En qué puedo ayudarte hoy? Elige una opción del menú y comencemos juntos.", name),
		serviceKeyboard(),
	)
	b.log.Info("user started the bot", "chat_id", update.Message.Chat.ID, "name", name)
}

// defaultHandler receives every update no registered command matched: user
// free text and photos.
func (b *Bot) defaultHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}
	if msg.Text == "" {
		return
	}
	b.handleUserText(ctx, msg)
}

// sendMessage delivers an HTML-formatted message; a send failure is logged
// and never rolls back registry state already mutated by the caller.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, keyboard models.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	if _, err := b.api.SendMessage(ctx, params); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

// deliverReply sends admin free text verbatim to a user, without any parse
// mode, and reports the failure so the caller can abort its cleanup.
func (b *Bot) deliverReply(ctx context.Context, chatID int64, reply string) error {
	_, err := b.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   reply,
	})
	return err
}

// scheduleExpiry arms the one-shot expiry timer for an extended session. The
// timer holds only the session identity; on wake the registry re-validates it
// so a superseded conversation turns the firing into a no-op.
func (b *Bot) scheduleExpiry(ctx context.Context, chatID int64) {
	go func() {
		timer := time.NewTimer(b.expiryDelay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		name, ok := b.registry.ExpireExtended(chatID, session.SessionExtended)
		if !ok {
			return
		}

		b.sendMessage(ctx, chatID,
			fmt.Sprintf("⏰ ¡Tiempo cumplido, %s!\n\nTu sesión extendida de 20 minutos ha finalizado.\n\n¿Deseas continuar con otra sesión? Puedes elegir:", name),
			sessionKeyboard(),
		)
		b.auditSessionEvent(chatID, session.SessionExtended, storage.EventExpired)
		b.log.Info("extended session expired", "chat_id", chatID)
	}()
}

func (b *Bot) auditSessionEvent(chatID int64, sessionType, event string) {
	if b.audit == nil {
		return
	}
	if err := b.audit.RecordSessionEvent(chatID, sessionType, event); err != nil {
		b.log.Error("record session event", "chat_id", chatID, "event", event, "error", err)
	}
}

func userName(u *models.User) string {
	if u == nil || u.FirstName == "" {
		return "Usuario"
	}
	return u.FirstName
}
