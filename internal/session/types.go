package session

import "time"

// Session type codes.
const (
	SessionStandard = "sesion_estandar"
	SessionExtended = "sesion_extendida"
)

// Service codes.
const (
	ServiceCoach     = "coach_motivacional"
	ServiceEmotional = "apoyo_emocional"
	ServiceTeachers  = "ayuda_docentes"
)

// PriceUSD is the static price table.
var PriceUSD = map[string]float64{
	SessionStandard: 2.0,
	SessionExtended: 4.0,
}

// ExtendedSessionDuration is how long an extended session runs before the
// expiry timer fires.
const ExtendedSessionDuration = 20 * time.Minute

// ReturningThreshold is the idle time after which a user is greeted as
// returning.
const ReturningThreshold = 120 * time.Second

// Conversation states.
type State string

const (
	StateActive          State = "activa"
	StateEnded           State = "finalizada"
	StateExpiredExtended State = "expirada_extendida"
)

// PendingPayment tracks a user's service/session selection until the admin
// confirms the transfer. Fields are filled incrementally.
type PendingPayment struct {
	Service     string
	SessionType string
	PriceUSD    float64
	UserName    string
}

// MidPaymentFlow reports whether both selections have been made, i.e. the
// user has seen payment instructions and owes a proof of payment.
func (p PendingPayment) MidPaymentFlow() bool {
	return p.Service != "" && p.SessionType != ""
}

// HistoryEntry is one inbound user message during an active conversation.
type HistoryEntry struct {
	At   time.Time
	Text string
}

// Conversation is created only by admin payment confirmation.
type Conversation struct {
	SessionType string
	Service     string
	UserName    string
	State       State
	History     []HistoryEntry
}

// PendingQuestion is the most recent unanswered question from a user in an
// active conversation.
type PendingQuestion struct {
	UserName string
	Question string
	AskedAt  time.Time
}

// QuestionEntry pairs a pending question with its chat id, in insertion
// order.
type QuestionEntry struct {
	ChatID   int64
	Question PendingQuestion
}

// Stats is a point-in-time snapshot of registry counts.
type Stats struct {
	PendingQuestions    int
	ActiveConversations int
	PendingPayments     int
	LastQuestioner      int64
}
