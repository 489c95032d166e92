package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/apoyointegral/sesiones-bot/internal/session"
)

// paymentRefPattern matches bank transfer references sent as bare text. A
// known false-positive source: short alphanumeric chit-chat from a user with
// a pending payment is also forwarded. Kept behind this predicate so it can
// be swapped without touching the dispatch order.
var paymentRefPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,20}$`)

func looksLikePaymentReference(text string) bool {
	return paymentRefPattern.MatchString(text)
}

// handleUserText dispatches an inbound user text message. First match wins.
func (b *Bot) handleUserText(ctx context.Context, msg *models.Message) {
	chatID := msg.Chat.ID
	name := userName(msg.From)

	// Admin traffic is routed through registered command handlers only.
	if b.cfg.AdminConfigured() && chatID == b.cfg.AdminID {
		return
	}

	if b.handleReturning(ctx, msg) {
		return
	}

	trimmed := strings.TrimSpace(msg.Text)
	if looksLikePaymentReference(trimmed) {
		if _, ok := b.registry.PendingPayment(chatID); ok {
			b.relayPaymentReference(ctx, msg, trimmed)
			return
		}
	}

	if service, ok := serviceByLabel[msg.Text]; ok {
		b.handleServiceSelection(ctx, msg, service)
		return
	}

	if sessionType, ok := sessionByLabel[msg.Text]; ok {
		b.handleSessionSelection(ctx, msg, sessionType)
		return
	}

	if msg.Text == labelMainMenu {
		b.sendMessage(ctx, chatID,
			fmt.Sprintf("¡Perfecto, %s! ¿En qué puedo ayudarte hoy? Elige una opción:", name),
			serviceKeyboard(),
		)
		return
	}

	if b.registry.InActiveConversation(chatID) {
		b.handleActiveQuestion(ctx, msg)
		return
	}

	b.sendMessage(ctx, chatID,
		fmt.Sprintf("¡Hola %s! Para poder ayudarte, por favor selecciona una de las opciones del menú:", name),
		serviceKeyboard(),
	)
}

// handleReturning greets a user coming back after the idle threshold, unless
// they are mid payment flow or in an active conversation. The interaction
// time is updated unconditionally, before the check against the previous
// value. Returns true when the event was consumed by the greeting.
func (b *Bot) handleReturning(ctx context.Context, msg *models.Message) bool {
	chatID := msg.Chat.ID

	idle, seen := b.registry.Touch(chatID)
	if !seen || idle <= session.ReturningThreshold {
		return false
	}

	if p, ok := b.registry.PendingPayment(chatID); ok && p.MidPaymentFlow() {
		return false
	}

	conv, hasConv := b.registry.Conversation(chatID)
	if hasConv && conv.State == session.StateActive {
		return false
	}

	name := userName(msg.From)
	var text string
	switch {
	case hasConv && (conv.State == session.StateEnded || conv.State == session.StateExpiredExtended):
		text = fmt.Sprintf("¡Hola de nuevo, %s! ¿Te gustaría iniciar una nueva sesión?", name)
	case hasConv:
		text = fmt.Sprintf("¡Bienvenido de vuelta, %s! ¿En qué puedo ayudarte?", name)
	default:
		text = fmt.Sprintf("¡Hola de nuevo, %s! ¿En qué puedo ayudarte hoy?", name)
	}

	b.sendMessage(ctx, chatID, text, b.keyboardFor(chatID))
	b.log.Info("returning user welcomed", "chat_id", chatID, "idle", idle)
	return true
}

// relayPaymentReference forwards a text payment reference to the admin and
// acknowledges the user. Re-sending the same reference re-notifies the admin.
func (b *Bot) relayPaymentReference(ctx context.Context, msg *models.Message, reference string) {
	chatID := msg.Chat.ID
	name := userName(msg.From)

	if !b.cfg.AdminConfigured() {
		b.log.Error("admin id not configured, cannot forward payment reference", "chat_id", chatID)
		b.sendMessage(ctx, chatID,
			"Error en la configuración del bot. No se pueden enviar notificaciones de pago.", nil)
		return
	}

	p, _ := b.registry.PendingPayment(chatID)
	_, err := b.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    b.cfg.AdminID,
		Text:      referenceNotice(name, chatID, p, reference),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		b.log.Error("forward payment reference", "chat_id", chatID, "error", err)
		b.sendMessage(ctx, chatID,
			"Ocurrió un error al procesar tu referencia. Por favor, inténtalo de nuevo más tarde.", nil)
		return
	}

	b.sendMessage(ctx, chatID,
		"¡Referencia de pago recibida! Gracias por tu paciencia mientras verificamos el pago.", nil)
	b.log.Info("payment reference forwarded", "chat_id", chatID, "reference", reference)
}

func (b *Bot) handleServiceSelection(ctx context.Context, msg *models.Message, service string) {
	chatID := msg.Chat.ID
	name := userName(msg.From)

	b.registry.SelectService(chatID, service, name)

	summary, ok := serviceSummaries[service]
	if !ok {
		summary = "Servicio de apoyo integral disponible."
	}
	b.sendMessage(ctx, chatID,
		summary+"\n\n¿Qué tipo de sesión te gustaría solicitar?",
		sessionKeyboard(),
	)
	b.log.Info("service selected", "chat_id", chatID, "service", service)
}

func (b *Bot) handleSessionSelection(ctx context.Context, msg *models.Message, sessionType string) {
	chatID := msg.Chat.ID
	name := userName(msg.From)

	price := session.PriceUSD[sessionType]
	b.registry.SelectSession(chatID, sessionType, price, name)

	if !b.cfg.PaymentConfigured() {
		b.log.Error("payment details incomplete in configuration")
		b.sendMessage(ctx, chatID,
			"Error en la configuración del bot. Los datos de pago no están completos. Por favor, contacta al administrador.", nil)
		return
	}

	b.sendMessage(ctx, chatID, paymentInstructions(b.cfg, sessionType, price), removeKeyboard())
	b.log.Info("payment instructions shown",
		"chat_id", chatID, "session_type", sessionType, "price_usd", price)
}

// handleActiveQuestion relays a message from an active conversation to the
// admin, recording it as the chat's pending question.
func (b *Bot) handleActiveQuestion(ctx context.Context, msg *models.Message) {
	chatID := msg.Chat.ID
	name := userName(msg.From)

	b.registry.RecordQuestion(chatID, name, msg.Text)

	if b.cfg.AdminConfigured() {
		_, err := b.api.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    b.cfg.AdminID,
			Text:      questionNotice(name, chatID, msg.Text),
			ParseMode: models.ParseModeHTML,
		})
		if err != nil {
			b.log.Error("notify admin of user question", "chat_id", chatID, "error", err)
		}
	} else {
		b.log.Error("admin id not configured, question not forwarded", "chat_id", chatID)
	}

	b.sendMessage(ctx, chatID, "He recibido tu pregunta. Te responderé pronto. 😊", nil)
	b.log.Info("question received from active session", "chat_id", chatID)
}

// handlePhoto relays a payment receipt photo to the admin with a ready-to-
// paste confirmation command.
func (b *Bot) handlePhoto(ctx context.Context, msg *models.Message) {
	chatID := msg.Chat.ID
	name := userName(msg.From)

	if b.cfg.AdminConfigured() && chatID == b.cfg.AdminID {
		return
	}
	if !b.cfg.AdminConfigured() {
		b.log.Error("admin id not configured, cannot forward receipt", "chat_id", chatID)
		b.sendMessage(ctx, chatID,
			"Error en la configuración del bot. No se pueden enviar notificaciones de pago.", nil)
		return
	}

	p, ok := b.registry.PendingPayment(chatID)
	if !ok {
		b.log.Warn("receipt received without pending payment", "chat_id", chatID)
		b.sendMessage(ctx, chatID,
			"Por favor, primero selecciona un servicio y tipo de sesión antes de enviar el comprobante.", nil)
		return
	}

	// Last size is the largest.
	fileID := msg.Photo[len(msg.Photo)-1].FileID
	if err := b.relayReceiptPhoto(ctx, chatID, name, fileID, p); err != nil {
		b.log.Error("relay receipt photo", "chat_id", chatID, "error", err)
		b.sendMessage(ctx, chatID,
			"Ocurrió un error al procesar tu comprobante. Por favor, inténtalo de nuevo más tarde.", nil)
		return
	}

	b.sendMessage(ctx, chatID,
		"¡Comprobante de pago recibido! Gracias por tu paciencia mientras lo verificamos.", nil)
	b.log.Info("payment receipt forwarded", "chat_id", chatID)
}

// relayReceiptPhoto buffers the photo to a temporary file and re-uploads it
// to the admin. The temporary file is removed whether or not the forward
// succeeds.
func (b *Bot) relayReceiptPhoto(ctx context.Context, chatID int64, name, fileID string, p session.PendingPayment) error {
	file, err := b.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}

	resp, err := b.httpClient.Get(b.api.FileDownloadLink(file))
	if err != nil {
		return fmt.Errorf("download receipt: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download receipt: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "comprobante_*.jpg")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil {
			b.log.Error("remove temp file", "path", tmp.Name(), "error", err)
		}
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return fmt.Errorf("buffer receipt: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind temp file: %w", err)
	}

	_, err = b.api.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:    b.cfg.AdminID,
		Photo:     &models.InputFileUpload{Filename: "comprobante.jpg", Data: tmp},
		Caption:   receiptCaption(name, chatID, p),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send photo to admin: %w", err)
	}
	return nil
}
