package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/apoyointegral/sesiones-bot/internal/session"
	"github.com/apoyointegral/sesiones-bot/internal/storage"
)

// commandArgs returns the space-separated arguments after the command token.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// requireAdmin rejects any sender other than the configured admin id.
func (b *Bot) requireAdmin(ctx context.Context, msg *models.Message) bool {
	if b.cfg.AdminConfigured() && msg.Chat.ID == b.cfg.AdminID {
		return true
	}
	b.sendMessage(ctx, msg.Chat.ID, "No tienes permisos para usar este comando.", nil)
	b.log.Warn("unauthorized admin command", "chat_id", msg.Chat.ID, "text", msg.Text)
	return false
}

// confirmPaymentHandler handles /confirmar_pago [chat_id] [tipo_sesion]:
// consumes the pending payment, activates the conversation, and for extended
// sessions arms the expiry timer.
func (b *Bot) confirmPaymentHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || !b.requireAdmin(ctx, msg) {
		return
	}

	args := commandArgs(msg.Text)
	if len(args) != 2 {
		b.sendMessage(ctx, msg.Chat.ID,
			"Uso correcto: /confirmar_pago [chat_id_usuario] [tipo_sesion]", nil)
		return
	}

	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendMessage(ctx, msg.Chat.ID, "El chat_id debe ser un número válido.", nil)
		return
	}
	sessionType := args[1]

	p, ok := b.registry.ConfirmPayment(chatID, sessionType)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID,
			fmt.Sprintf("No se encontró información de pago pendiente para el usuario %d.", chatID), nil)
		return
	}

	// The activation above stands even if this notification fails.
	b.sendMessage(ctx, chatID,
		fmt.Sprintf("¡Perfecto, %s! Tu pago ha sido confirmado y activado. ✅\n\nAhora puedes hacer todas las preguntas que necesites. Estoy aquí para ayudarte. 😊", p.UserName),
		removeKeyboard(),
	)

	if sessionType == session.SessionExtended {
		b.scheduleExpiry(ctx, chatID)
	}

	if b.audit != nil {
		service := p.Service
		if service == "" {
			service = session.ServiceCoach
		}
		if err := b.audit.RecordConfirmedPayment(chatID, p.UserName, service, sessionType, p.PriceUSD); err != nil {
			b.log.Error("record confirmed payment", "chat_id", chatID, "error", err)
		}
	}
	b.auditSessionEvent(chatID, sessionType, storage.EventActivated)

	b.sendMessage(ctx, msg.Chat.ID,
		fmt.Sprintf("✅ Pago confirmado para %s (ID: %d). Se activó la %s.",
			p.UserName, chatID, formatSessionName(sessionType)), nil)
	b.log.Info("payment confirmed", "chat_id", chatID, "session_type", sessionType)
}

// replyHandler handles /responder [chat_id] [texto...]: relays free text to
// the user, ending an active standard session on the first reply.
func (b *Bot) replyHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || !b.requireAdmin(ctx, msg) {
		return
	}

	args := commandArgs(msg.Text)
	if len(args) < 2 {
		b.sendMessage(ctx, msg.Chat.ID,
			"Uso correcto: /responder [chat_id_usuario] [respuesta_completa]\nEjemplo: /responder 123456789 Tu respuesta aquí...", nil)
		return
	}

	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendMessage(ctx, msg.Chat.ID, "El chat_id debe ser un número válido.", nil)
		return
	}

	reply := strings.Join(args[1:], " ")
	if err := b.deliverReply(ctx, chatID, reply); err != nil {
		b.log.Error("send admin reply", "chat_id", chatID, "error", err)
		b.sendMessage(ctx, msg.Chat.ID,
			"Error al enviar la respuesta. Por favor, intenta de nuevo.", nil)
		return
	}

	b.finishStandardIfNeeded(ctx, chatID)
	b.sendMessage(ctx, msg.Chat.ID,
		fmt.Sprintf("✅ Respuesta enviada al usuario %d", chatID), nil)
	b.registry.RemoveQuestion(chatID)
	b.log.Info("admin reply sent", "chat_id", chatID)
}

// quickReplyHandler handles /r [texto...]: replies to the last user who
// asked a question.
func (b *Bot) quickReplyHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || !b.requireAdmin(ctx, msg) {
		return
	}

	target, ok := b.registry.LastQuestioner()
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID,
			"No hay usuario reciente al cual responder. Usa /pendientes para ver preguntas pendientes.", nil)
		return
	}

	args := commandArgs(msg.Text)
	if len(args) == 0 {
		b.sendMessage(ctx, msg.Chat.ID,
			"Uso: /r [tu_respuesta_aquí]\nEjemplo: /r Gracias por tu pregunta, aquí está mi respuesta...", nil)
		return
	}

	reply := strings.Join(args, " ")
	if err := b.deliverReply(ctx, target, reply); err != nil {
		b.log.Error("send quick reply", "chat_id", target, "error", err)
		b.sendMessage(ctx, msg.Chat.ID, "Error al enviar la respuesta rápida.", nil)
		return
	}

	name := "Usuario"
	if q, ok := b.registry.RemoveQuestion(target); ok {
		name = q.UserName
	}

	b.finishStandardIfNeeded(ctx, target)
	b.sendMessage(ctx, msg.Chat.ID,
		fmt.Sprintf("✅ Respuesta rápida enviada a %s (ID: %d)", name, target), nil)
	b.log.Info("quick reply sent", "chat_id", target)
}

// numberedReplyHandler handles /r1../r9: replies to the nth pending question
// in the same iteration order /pendientes renders.
func (b *Bot) numberedReplyHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || !b.requireAdmin(ctx, msg) {
		return
	}

	command := strings.Fields(msg.Text)[0]
	n, err := strconv.Atoi(strings.TrimPrefix(command, "/r"))
	if err != nil {
		return
	}

	if len(b.registry.Questions()) == 0 {
		b.sendMessage(ctx, msg.Chat.ID, "No hay preguntas pendientes.", nil)
		return
	}

	args := commandArgs(msg.Text)
	if len(args) == 0 {
		b.sendMessage(ctx, msg.Chat.ID,
			fmt.Sprintf("Uso: %s [tu_respuesta_aquí]", command), nil)
		return
	}

	entry, ok := b.registry.QuestionAt(n)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID,
			fmt.Sprintf("No existe la pregunta número %d.", n), nil)
		return
	}

	reply := strings.Join(args, " ")
	if err := b.deliverReply(ctx, entry.ChatID, reply); err != nil {
		b.log.Error("send numbered reply", "chat_id", entry.ChatID, "number", n, "error", err)
		b.sendMessage(ctx, msg.Chat.ID,
			fmt.Sprintf("Error al enviar la respuesta #%d.", n), nil)
		return
	}

	b.finishStandardIfNeeded(ctx, entry.ChatID)
	b.sendMessage(ctx, msg.Chat.ID,
		fmt.Sprintf("✅ Respuesta #%d enviada a %s (ID: %d)", n, entry.Question.UserName, entry.ChatID), nil)
	b.registry.RemoveQuestion(entry.ChatID)
	b.log.Info("numbered reply sent", "chat_id", entry.ChatID, "number", n)
}

// pendingHandler handles /pendientes: renders every pending question,
// 1-indexed, in the order the numbered reply commands address them.
func (b *Bot) pendingHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || !b.requireAdmin(ctx, msg) {
		return
	}

	entries := b.registry.Questions()
	if len(entries) == 0 {
		b.sendMessage(ctx, msg.Chat.ID, "No hay preguntas pendientes.", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Preguntas Pendientes:</b>\n\n")
	for i, e := range entries {
		quoted := fmt.Sprintf("\"%s: %s\"", e.Question.UserName, e.Question.Question)
		sb.WriteString(fmt.Sprintf(
			"<b>%d.</b> %s (ID: <code>%d</code>) - %s\n💬 <code>%s</code>\n⚡ Responder: <code>/r%d [respuesta]</code>\n\n",
			i+1, e.Question.UserName, e.ChatID, e.Question.AskedAt.Format("15:04"), quoted, i+1,
		))
	}

	b.sendMessage(ctx, msg.Chat.ID, sb.String(), nil)
}

// lastQuestionHandler handles /ultima: shows the most recent question, or a
// minimal fallback when only the questioner id is still known.
func (b *Bot) lastQuestionHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || !b.requireAdmin(ctx, msg) {
		return
	}

	target, ok := b.registry.LastQuestioner()
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID, "No hay ninguna pregunta reciente.", nil)
		return
	}

	q, ok := b.registry.Question(target)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID,
			fmt.Sprintf("Última pregunta fue del usuario ID: %d", target), nil)
		return
	}

	quoted := fmt.Sprintf("\"%s: %s\"", q.UserName, q.Question)
	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf(
		"🔄 <b>Última Pregunta Recibida:</b>\n\n"+
			"👤 <b>%s</b> (ID: <code>%d</code>) - %s\n\n"+
			"💬 <b>Consulta:</b>\n<code>%s</code>\n\n"+
			"⚡ <b>Responder:</b> <code>/r [tu_respuesta]</code>",
		q.UserName, target, q.AskedAt.Format("15:04"), quoted,
	), nil)
}

// quickHelpHandler handles /rapida: the admin command cheat sheet.
func (b *Bot) quickHelpHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || !b.requireAdmin(ctx, msg) {
		return
	}

	b.sendMessage(ctx, msg.Chat.ID,
		"📝 <b>Comandos de Respuesta Rápida:</b>\n\n"+
			"⚡ <code>/r [respuesta]</code> - Responder al último usuario\n"+
			"📋 <code>/pendientes</code> - Ver todas las preguntas pendientes\n"+
			"🔄 <code>/ultima</code> - Ver la última pregunta recibida\n"+
			"🔢 <code>/r1</code>, <code>/r2</code>, etc. - Responder pregunta específica por número\n\n"+
			"💡 <b>Ejemplo:</b>\n"+
			"<code>/r Gracias por tu pregunta, aquí está mi respuesta...</code>", nil)
}

// statusHandler handles /admin: registry counts plus the audit trail's
// all-time confirmed payment total.
func (b *Bot) statusHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || !b.requireAdmin(ctx, msg) {
		return
	}

	st := b.registry.Stats()

	last := "Ninguno"
	if st.LastQuestioner != 0 {
		last = strconv.FormatInt(st.LastQuestioner, 10)
	}

	confirmedLine := ""
	if b.audit != nil {
		if total, err := b.audit.CountConfirmedPayments(); err == nil {
			confirmedLine = fmt.Sprintf("• Pagos confirmados (histórico): %d\n", total)
		} else {
			b.log.Error("count confirmed payments", "error", err)
		}
	}

	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf(
		"🤖 <b>Estado del Sistema Apoyo Integral</b>\n\n"+
			"📊 <b>Estadísticas Actuales:</b>\n"+
			"• Preguntas pendientes: %d\n"+
			"• Sesiones activas: %d\n"+
			"• Pagos pendientes: %d\n"+
			"%s\n"+
			"👤 <b>Último usuario con pregunta:</b> %s\n\n"+
			"🔧 <b>Comandos Disponibles:</b>\n"+
			"• <code>/r [respuesta]</code> - Responder al último\n"+
			"• <code>/pendientes</code> - Ver todas las preguntas\n"+
			"• <code>/ultima</code> - Ver última pregunta\n"+
			"• <code>/confirmar_pago [user_id] [tipo_sesion]</code>\n"+
			"• <code>/rapida</code> - Ver ayuda de comandos\n\n"+
			"✅ <b>Sistema funcionando correctamente</b>",
		st.PendingQuestions, st.ActiveConversations, st.PendingPayments, confirmedLine, last,
	), nil)
}

// finishStandardIfNeeded ends an active standard session after the first
// admin reply, notifying the user with the continuation keyboard. Extended
// sessions are untouched; their lifecycle belongs to the expiry timer.
func (b *Bot) finishStandardIfNeeded(ctx context.Context, chatID int64) {
	name, ok := b.registry.FinishStandard(chatID)
	if !ok {
		return
	}

	b.sendMessage(ctx, chatID,
		fmt.Sprintf("¡Tu sesión estándar ha finalizado, %s! 🎉\n\nEspero haber resuelto tu consulta.\n\nSi necesitas seguir conversando o tienes nuevas preguntas, puedes elegir continuar con otra sesión:", name),
		sessionKeyboard(),
	)
	b.auditSessionEvent(chatID, session.SessionStandard, storage.EventEnded)
	b.log.Info("standard session finished", "chat_id", chatID)
}
