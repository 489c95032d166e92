package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"

	"github.com/apoyointegral/sesiones-bot/internal/session"
	"github.com/apoyointegral/sesiones-bot/internal/storage"
)

func TestSessionSelectionWithoutServiceUsesDefault(t *testing.T) {
	b, api, reg, _, _ := newTestBot(testConfig())
	ctx := context.Background()

	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", labelSessionStandard))

	p, ok := reg.PendingPayment(555)
	require.True(t, ok)
	require.Equal(t, session.ServiceCoach, p.Service)
	require.Equal(t, session.SessionStandard, p.SessionType)
	require.Equal(t, 2.0, p.PriceUSD)

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	// 2.0 * 36.5 formatted to 2 decimals.
	require.Contains(t, msgs[0].Text, "73.00 bolívares")
	require.Contains(t, msgs[0].Text, "0412-5551234")
	require.IsType(t, &models.ReplyKeyboardRemove{}, msgs[0].ReplyMarkup)
}

func TestServiceThenSessionRoundTrip(t *testing.T) {
	b, api, reg, _, _ := newTestBot(testConfig())
	ctx := context.Background()

	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", labelServiceEmotional))

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "¿Qué tipo de sesión te gustaría solicitar?")
	require.IsType(t, &models.ReplyKeyboardMarkup{}, msgs[0].ReplyMarkup)

	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", labelSessionExtended))

	p, ok := reg.PendingPayment(555)
	require.True(t, ok)
	require.Equal(t, session.ServiceEmotional, p.Service)
	require.Equal(t, session.SessionExtended, p.SessionType)
	require.Equal(t, 4.0, p.PriceUSD)
}

func TestSessionSelectionWithIncompletePaymentConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BankName = ""
	b, api, reg, _, _ := newTestBot(cfg)

	b.defaultHandler(context.Background(), nil, userUpdate(555, "Ana", labelSessionStandard))

	// The selection is stored; only the instructions are withheld.
	_, ok := reg.PendingPayment(555)
	require.True(t, ok)

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "Error en la configuración del bot")
}

func TestPaymentReferenceForwarded(t *testing.T) {
	b, api, _, _, _ := newTestBot(testConfig())
	ctx := context.Background()

	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", labelSessionStandard))
	api.reset()

	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", "REF-12345"))

	adminMsgs := api.messagesTo(adminID)
	require.Len(t, adminMsgs, 1)
	require.Contains(t, adminMsgs[0].Text, "REF-12345")
	require.Contains(t, adminMsgs[0].Text, "/confirmar_pago 555 sesion_estandar")

	userMsgs := api.messagesTo(555)
	require.Len(t, userMsgs, 1)
	require.Contains(t, userMsgs[0].Text, "¡Referencia de pago recibida!")
}

func TestPaymentReferenceWithoutPendingFallsThrough(t *testing.T) {
	b, api, _, _, _ := newTestBot(testConfig())

	b.defaultHandler(context.Background(), nil, userUpdate(555, "Ana", "REF-12345"))

	require.Empty(t, api.messagesTo(adminID))
	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "selecciona una de las opciones del menú")
}

func TestPaymentReferencePredicate(t *testing.T) {
	require.True(t, looksLikePaymentReference("REF-12345"))
	require.True(t, looksLikePaymentReference("0042"))
	require.True(t, looksLikePaymentReference("ab_c4"))
	require.False(t, looksLikePaymentReference("ref"))              // too short
	require.False(t, looksLikePaymentReference("hola que tal"))    // spaces
	require.False(t, looksLikePaymentReference("123456789012345678901")) // too long
}

func TestReturningUserGreeting(t *testing.T) {
	b, api, _, _, clk := newTestBot(testConfig())
	ctx := context.Background()

	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", "hola, ¿estás ahí?"))
	api.reset()

	clk.Advance(121 * time.Second)
	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", "volví"))

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "¡Hola de nuevo, Ana!")
}

func TestReturningUserNotGreetedWithinThreshold(t *testing.T) {
	b, api, _, _, clk := newTestBot(testConfig())
	ctx := context.Background()

	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", "hola, ¿estás ahí?"))
	api.reset()

	clk.Advance(120 * time.Second)
	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", "sigo aquí"))

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.NotContains(t, msgs[0].Text, "¡Hola de nuevo")
}

func TestReturningUserNotGreetedMidPaymentFlow(t *testing.T) {
	b, api, _, _, clk := newTestBot(testConfig())
	ctx := context.Background()

	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", labelSessionStandard))
	api.reset()

	clk.Advance(10 * time.Minute)
	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", "ya casi pago"))

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.NotContains(t, msgs[0].Text, "¡Hola de nuevo")
}

func TestReturningUserNotGreetedDuringActiveSession(t *testing.T) {
	b, api, reg, _, clk := newTestBot(testConfig())
	ctx := context.Background()
	activate(reg, 555, "Ana", session.SessionExtended)

	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", "primera pregunta"))
	api.reset()

	clk.Advance(10 * time.Minute)
	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", "otra pregunta"))

	// Passthrough, not greeting: the question reaches the admin.
	require.NotEmpty(t, api.messagesTo(adminID))
	userMsgs := api.messagesTo(555)
	require.Len(t, userMsgs, 1)
	require.Contains(t, userMsgs[0].Text, "He recibido tu pregunta")
}

func TestReturningUserAfterEndedSessionGetsContinuationKeyboard(t *testing.T) {
	b, api, reg, _, clk := newTestBot(testConfig())
	ctx := context.Background()
	activate(reg, 555, "Ana", session.SessionStandard)

	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", "una pregunta cualquiera"))
	_, ok := reg.FinishStandard(555)
	require.True(t, ok)
	api.reset()

	clk.Advance(5 * time.Minute)
	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", "hola otra vez"))

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "¿Te gustaría iniciar una nueva sesión?")

	kb, ok := msgs[0].ReplyMarkup.(*models.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Equal(t, labelSessionStandard, kb.Keyboard[0][0].Text)
}

func TestActiveSessionPassthrough(t *testing.T) {
	b, api, reg, _, _ := newTestBot(testConfig())
	ctx := context.Background()
	activate(reg, 555, "Ana", session.SessionExtended)

	b.defaultHandler(ctx, nil, userUpdate(555, "Ana", "¿cómo manejo el estrés?"))

	adminMsgs := api.messagesTo(adminID)
	require.Len(t, adminMsgs, 1)
	require.Contains(t, adminMsgs[0].Text, "Nueva Pregunta de Usuario")
	require.Contains(t, adminMsgs[0].Text, "¿cómo manejo el estrés?")

	q, ok := reg.Question(555)
	require.True(t, ok)
	require.Equal(t, "¿cómo manejo el estrés?", q.Question)

	conv, _ := reg.Conversation(555)
	require.Len(t, conv.History, 1)
}

func TestMainMenuLabel(t *testing.T) {
	b, api, _, _, _ := newTestBot(testConfig())

	b.defaultHandler(context.Background(), nil, userUpdate(555, "Ana", labelMainMenu))

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "¡Perfecto, Ana!")
	kb, ok := msgs[0].ReplyMarkup.(*models.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Equal(t, labelServiceCoach, kb.Keyboard[0][0].Text)
}

func TestAdminFreeTextIgnoredByFlow(t *testing.T) {
	b, api, _, _, _ := newTestBot(testConfig())

	b.defaultHandler(context.Background(), nil, adminUpdate("texto suelto del admin"))

	require.Empty(t, api.sent())
}

func TestStartHandler(t *testing.T) {
	b, api, _, _, _ := newTestBot(testConfig())

	b.startHandler(context.Background(), nil, userUpdate(555, "Ana", "/start"))

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "Bienvenido a Apoyo Integral")
}

func TestPhotoWithoutPendingPayment(t *testing.T) {
	b, api, _, _, _ := newTestBot(testConfig())

	update := userUpdate(555, "Ana", "")
	update.Message.Photo = []models.PhotoSize{{FileID: "photo-1"}}
	b.defaultHandler(context.Background(), nil, update)

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "primero selecciona un servicio")
	require.Empty(t, api.photos)
}

func TestPhotoReceiptRelayedToAdmin(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer ts.Close()

	b, api, reg, _, _ := newTestBot(testConfig())
	api.file = &models.File{FileID: "photo-1", FilePath: "photos/1.jpg"}
	api.downloadURL = ts.URL
	reg.SelectSession(555, session.SessionStandard, 2.0, "Ana")

	update := userUpdate(555, "Ana", "")
	update.Message.Photo = []models.PhotoSize{{FileID: "small"}, {FileID: "photo-1"}}
	b.defaultHandler(context.Background(), nil, update)

	require.Len(t, api.photos, 1)
	require.Equal(t, adminID, api.photos[0].ChatID)
	require.Contains(t, api.photos[0].Caption, "Nuevo Comprobante de Pago Pendiente")
	require.Contains(t, api.photos[0].Caption, "/confirmar_pago 555 sesion_estandar")

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "¡Comprobante de pago recibido!")
}

func TestPhotoDownloadFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	b, api, reg, _, _ := newTestBot(testConfig())
	api.file = &models.File{FileID: "photo-1"}
	api.downloadURL = ts.URL
	reg.SelectSession(555, session.SessionStandard, 2.0, "Ana")

	update := userUpdate(555, "Ana", "")
	update.Message.Photo = []models.PhotoSize{{FileID: "photo-1"}}
	b.defaultHandler(context.Background(), nil, update)

	require.Empty(t, api.photos)
	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "Ocurrió un error al procesar tu comprobante")
}

func TestExpiryTimerFires(t *testing.T) {
	b, api, reg, audit, _ := newTestBot(testConfig())
	ctx := context.Background()
	activate(reg, 555, "Ana", session.SessionExtended)

	b.scheduleExpiry(ctx, 555)

	require.Eventually(t, func() bool {
		conv, ok := reg.Conversation(555)
		return ok && conv.State == session.StateExpiredExtended
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		audit.mu.Lock()
		defer audit.mu.Unlock()
		return len(audit.events) == 1
	}, time.Second, 5*time.Millisecond)

	msgs := api.messagesTo(555)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "⏰ ¡Tiempo cumplido, Ana!")

	audit.mu.Lock()
	defer audit.mu.Unlock()
	require.Equal(t, []auditRecord{{chatID: 555, sessionType: session.SessionExtended, event: storage.EventExpired}}, audit.events)
}

func TestExpiryTimerNoOpAfterSupersession(t *testing.T) {
	b, api, reg, _, _ := newTestBot(testConfig())
	ctx := context.Background()
	activate(reg, 555, "Ana", session.SessionExtended)

	b.scheduleExpiry(ctx, 555)

	// Superseded before the timer fires.
	activate(reg, 555, "Ana", session.SessionStandard)

	time.Sleep(50 * time.Millisecond)

	conv, _ := reg.Conversation(555)
	require.Equal(t, session.StateActive, conv.State)
	require.Empty(t, api.messagesTo(555))
}
