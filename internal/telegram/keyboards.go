package telegram

import (
	"github.com/go-telegram/bot/models"

	"github.com/apoyointegral/sesiones-bot/internal/session"
)

// Menu button labels. The label text doubles as the inbound match key, so
// these must stay byte-identical to what the keyboards send.
const (
	labelServiceCoach     = "🚀 Coach Motivacional"
	labelServiceEmotional = "💙 Apoyo Emocional"
	labelServiceTeachers  = "📚 Ayuda para Docentes"

	labelSessionStandard = "⭐ Sesión Estándar (2$)"
	labelSessionExtended = "💎 Sesión Extendida (4$)"

	labelMainMenu = "🏠 Volver al Menú Principal"
)

var serviceByLabel = map[string]string{
	labelServiceCoach:     session.ServiceCoach,
	labelServiceEmotional: session.ServiceEmotional,
	labelServiceTeachers:  session.ServiceTeachers,
}

var sessionByLabel = map[string]string{
	labelSessionStandard: session.SessionStandard,
	labelSessionExtended: session.SessionExtended,
}

// serviceKeyboard returns the main service-selection keyboard.
func serviceKeyboard() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{
				{Text: labelServiceCoach},
				{Text: labelServiceEmotional},
			},
			{
				{Text: labelServiceTeachers},
			},
		},
		ResizeKeyboard: true,
	}
}

// sessionKeyboard returns the session-type selection keyboard, also used as
// the continuation layout after a session ends or expires.
func sessionKeyboard() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{
				{Text: labelSessionStandard},
			},
			{
				{Text: labelSessionExtended},
			},
			{
				{Text: labelMainMenu},
			},
		},
		ResizeKeyboard: true,
	}
}

// removeKeyboard clears any reply keyboard from the user's screen.
func removeKeyboard() *models.ReplyKeyboardRemove {
	return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
}

// keyboardFor picks the layout matching the user's current registry state.
func (b *Bot) keyboardFor(chatID int64) *models.ReplyKeyboardMarkup {
	if conv, ok := b.registry.Conversation(chatID); ok {
		if conv.State == session.StateEnded || conv.State == session.StateExpiredExtended {
			return sessionKeyboard()
		}
	}
	if p, ok := b.registry.PendingPayment(chatID); ok {
		if p.Service != "" && p.SessionType == "" {
			return sessionKeyboard()
		}
	}
	return serviceKeyboard()
}
