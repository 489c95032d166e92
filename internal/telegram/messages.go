package telegram

import (
	"fmt"

	"github.com/apoyointegral/sesiones-bot/internal/config"
	"github.com/apoyointegral/sesiones-bot/internal/session"
)

var serviceSummaries = map[string]string{
	session.ServiceCoach:     "🚀 Te acompañaré en tu camino hacia el éxito personal y profesional. Juntos identificaremos tus metas, superaremos obstáculos y desbloquearemos todo tu potencial. Cada paso que des será un avance hacia la mejor versión de ti mismo.",
	session.ServiceEmotional: "💙 Estoy aquí para brindarte un espacio seguro donde puedas expresarte libremente. Te ofrezco comprensión, herramientas de bienestar emocional y el acompañamiento que necesitas para encontrar tu equilibrio interior, además descubrir mensajes valiosos de tus sueños pues no son casualidad, sino avisos ocultos de tu alma.",
	session.ServiceTeachers:  "📚 Como educador, mereces todo el apoyo para brillar en tu noble labor. Te ayudaré con estrategias pedagógicas innovadoras, manejo del aula y herramientas para potenciar el aprendizaje de tus estudiantes.",
}

var serviceNames = map[string]string{
	session.ServiceCoach:     "Coach Motivacional",
	session.ServiceEmotional: "Apoyo Emocional",
	session.ServiceTeachers:  "Ayuda para Docentes",
}

var sessionNames = map[string]string{
	session.SessionStandard: "Sesión Estándar",
	session.SessionExtended: "Sesión Extendida",
}

func formatServiceName(service string) string {
	if name, ok := serviceNames[service]; ok {
		return name
	}
	return service
}

func formatSessionName(sessionType string) string {
	if name, ok := sessionNames[sessionType]; ok {
		return name
	}
	return sessionType
}

// confirmCommand is the ready-to-paste admin command embedded in payment
// notices.
func confirmCommand(chatID int64, sessionType string) string {
	return fmt.Sprintf("/confirmar_pago %d %s", chatID, sessionType)
}

// paymentInstructions renders the bank-transfer details with the amount
// converted to bolívares at the configured rate.
func paymentInstructions(cfg *config.Config, sessionType string, priceUSD float64) string {
	amount := priceUSD * cfg.ExchangeRate
	return fmt.Sprintf(
		"Para la %s (%g$), el monto a pagar es de <b>%.2f bolívares</b>.\n\n"+
			"Datos para el pago móvil:\n"+
			"📱 Número de teléfono: <b>%s</b>\n"+
			"🆔 Cédula de identidad: <b>%s</b>\n"+
			"🏦 Banco: <b>%s</b>\n\n"+
			"Por favor, envía el comprobante de pago con la referencia para confirmar tu sesión.",
		formatSessionName(sessionType), priceUSD, amount,
		cfg.PhoneNumber, cfg.NationalID, cfg.BankName,
	)
}

// questionNotice is the admin notification for a question from an active
// session, with the quote preformatted for copy-paste.
func questionNotice(userName string, chatID int64, question string) string {
	quoted := fmt.Sprintf("\"%s: %s\"", userName, question)
	return fmt.Sprintf(
		"📝 <b>Nueva Pregunta de Usuario</b>\n\n"+
			"👤 <b>%s</b> (ID: <code>%d</code>)\n\n"+
			"💬 <b>Consulta:</b>\n<code>%s</code>\n\n"+
			"⚡ <b>Responder rápido:</b> <code>/r [tu_respuesta]</code>\n"+
			"📋 <b>Ver pendientes:</b> <code>/pendientes</code>\n"+
			"🔄 <b>Última pregunta:</b> <code>/ultima</code>",
		userName, chatID, quoted,
	)
}

// referenceNotice is the admin notification for a payment reference sent as
// plain text.
func referenceNotice(userName string, chatID int64, p session.PendingPayment, reference string) string {
	return fmt.Sprintf(
		"🔔 <b>Nueva Referencia de Pago (TEXTO)</b>\n"+
			"De: %s (ID: <code>%d</code>)\n"+
			"Servicio: %s\n"+
			"Monto (USD): %g\n"+
			"Referencia: <code>%s</code>\n\n"+
			"--- Para confirmar y activar la sesión, envía: ---\n"+
			"<code>%s</code>",
		userName, chatID, formatSessionName(p.SessionType), p.PriceUSD, reference,
		confirmCommand(chatID, p.SessionType),
	)
}

// receiptCaption is the caption attached to a relayed payment receipt photo.
func receiptCaption(userName string, chatID int64, p session.PendingPayment) string {
	return fmt.Sprintf(
		"🔔 <b>Nuevo Comprobante de Pago Pendiente</b>\n"+
			"De: %s (ID: <code>%d</code>)\n"+
			"Servicio: %s\n"+
			"Monto (USD): %g\n\n"+
			"--- Para confirmar y activar la sesión, envía: ---\n"+
			"<code>%s</code>",
		userName, chatID, formatSessionName(p.SessionType), p.PriceUSD,
		confirmCommand(chatID, p.SessionType),
	)
}
