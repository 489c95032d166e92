package session

import (
	"sync"
	"time"
)

// Registry holds the whole volatile state of the bot: pending payments,
// conversations, pending questions and last-interaction times, all keyed by
// chat id. Handlers run concurrently, so every compound read-modify-write is
// a single method executed under one lock.
//
// Nothing here survives a restart.
type Registry struct {
	mu sync.Mutex

	payments      map[int64]*PendingPayment
	conversations map[int64]*Conversation

	questions      map[int64]*PendingQuestion
	questionOrder  []int64
	lastQuestioner int64 // 0 = unset

	lastSeen map[int64]time.Time

	clock func() time.Time
}

func NewRegistry() *Registry {
	return NewRegistryWithClock(time.Now)
}

// NewRegistryWithClock lets tests control timestamps.
func NewRegistryWithClock(clock func() time.Time) *Registry {
	return &Registry{
		payments:      make(map[int64]*PendingPayment),
		conversations: make(map[int64]*Conversation),
		questions:     make(map[int64]*PendingQuestion),
		lastSeen:      make(map[int64]time.Time),
		clock:         clock,
	}
}

// Touch records the current interaction time for a chat and returns how long
// the chat had been idle, measured against the value in place before this
// event arrived. seen is false on the very first event from a chat.
func (r *Registry) Touch(chatID int64) (idle time.Duration, seen bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	prev, seen := r.lastSeen[chatID]
	r.lastSeen[chatID] = now
	if !seen {
		return 0, false
	}
	return now.Sub(prev), true
}

// --- Pending payments ---

// PendingPayment returns a copy of the pending payment for a chat, if any.
func (r *Registry) PendingPayment(chatID int64) (PendingPayment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[chatID]
	if !ok {
		return PendingPayment{}, false
	}
	return *p, true
}

// SelectService records a service choice, creating the pending payment entry
// on first selection.
func (r *Registry) SelectService(chatID int64, service, userName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[chatID]
	if !ok {
		p = &PendingPayment{UserName: userName}
		r.payments[chatID] = p
	}
	p.Service = service
	if p.UserName == "" {
		p.UserName = userName
	}
}

// SelectSession records a session-type choice and its price, creating the
// entry with the default service when the user skipped service selection.
// It returns a copy of the resulting pending payment.
func (r *Registry) SelectSession(chatID int64, sessionType string, priceUSD float64, userName string) PendingPayment {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[chatID]
	if !ok {
		p = &PendingPayment{UserName: userName, Service: ServiceCoach}
		r.payments[chatID] = p
	}
	p.SessionType = sessionType
	p.PriceUSD = priceUSD
	if p.UserName == "" {
		p.UserName = userName
	}
	return *p
}

// ConfirmPayment activates a conversation from a pending payment. The entry
// is consumed: it exists afterwards only as the new conversation. Returns
// false when there is nothing pending for the chat.
func (r *Registry) ConfirmPayment(chatID int64, sessionType string) (PendingPayment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[chatID]
	if !ok {
		return PendingPayment{}, false
	}

	service := p.Service
	if service == "" {
		service = ServiceCoach
	}
	// A new cycle replaces any previous conversation for the chat.
	r.conversations[chatID] = &Conversation{
		SessionType: sessionType,
		Service:     service,
		UserName:    p.UserName,
		State:       StateActive,
	}
	delete(r.payments, chatID)
	return *p, true
}

// --- Conversations ---

// Conversation returns a copy of the conversation for a chat, if any.
func (r *Registry) Conversation(chatID int64) (Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[chatID]
	if !ok {
		return Conversation{}, false
	}
	out := *c
	out.History = append([]HistoryEntry(nil), c.History...)
	return out, true
}

// InActiveConversation reports whether the chat has an active conversation.
func (r *Registry) InActiveConversation(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[chatID]
	return ok && c.State == StateActive
}

// RecordQuestion appends a message to the active conversation's history and
// stores it as the chat's pending question, overwriting a previous one in
// place (the question keeps its position in the pending order). Returns false
// when the chat has no active conversation.
func (r *Registry) RecordQuestion(chatID int64, userName, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[chatID]
	if !ok || c.State != StateActive {
		return false
	}

	now := r.clock()
	c.History = append(c.History, HistoryEntry{At: now, Text: text})

	if q, exists := r.questions[chatID]; exists {
		q.UserName = userName
		q.Question = text
		q.AskedAt = now
	} else {
		r.questions[chatID] = &PendingQuestion{UserName: userName, Question: text, AskedAt: now}
		r.questionOrder = append(r.questionOrder, chatID)
	}
	r.lastQuestioner = chatID
	return true
}

// FinishStandard transitions an active standard session to ended. It fires at
// most once per activation: an already-ended session returns false.
func (r *Registry) FinishStandard(chatID int64) (userName string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.conversations[chatID]
	if !exists || c.SessionType != SessionStandard || c.State != StateActive {
		return "", false
	}
	c.State = StateEnded
	return c.UserName, true
}

// ExpireExtended transitions an active conversation to expired, but only when
// the conversation still matches the identity the timer was armed with. A
// superseded or removed conversation makes the stale timer a no-op.
func (r *Registry) ExpireExtended(chatID int64, sessionType string) (userName string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.conversations[chatID]
	if !exists || c.SessionType != sessionType || c.State != StateActive {
		return "", false
	}
	c.State = StateExpiredExtended
	return c.UserName, true
}

// --- Pending questions ---

// Question returns a copy of the pending question for a chat, if any.
func (r *Registry) Question(chatID int64) (PendingQuestion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.questions[chatID]
	if !ok {
		return PendingQuestion{}, false
	}
	return *q, true
}

// Questions returns every pending question in insertion order.
func (r *Registry) Questions() []QuestionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]QuestionEntry, 0, len(r.questionOrder))
	for _, chatID := range r.questionOrder {
		if q, ok := r.questions[chatID]; ok {
			out = append(out, QuestionEntry{ChatID: chatID, Question: *q})
		}
	}
	return out
}

// QuestionAt returns the nth pending question, 1-indexed, in the same order
// Questions uses. The position is only stable between two admin actions if no
// question arrived or was answered in between.
func (r *Registry) QuestionAt(n int) (QuestionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n < 1 || n > len(r.questionOrder) {
		return QuestionEntry{}, false
	}
	chatID := r.questionOrder[n-1]
	q, ok := r.questions[chatID]
	if !ok {
		return QuestionEntry{}, false
	}
	return QuestionEntry{ChatID: chatID, Question: *q}, true
}

// RemoveQuestion deletes the pending question for a chat, returning it.
func (r *Registry) RemoveQuestion(chatID int64) (PendingQuestion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.questions[chatID]
	if !ok {
		return PendingQuestion{}, false
	}
	delete(r.questions, chatID)
	for i, id := range r.questionOrder {
		if id == chatID {
			r.questionOrder = append(r.questionOrder[:i], r.questionOrder[i+1:]...)
			break
		}
	}
	return *q, true
}

// LastQuestioner returns the chat id of the most recent user to ask a
// question, if any.
func (r *Registry) LastQuestioner() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastQuestioner, r.lastQuestioner != 0
}

// Stats returns a snapshot of registry counts for the admin status command
// and the health endpoint.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := 0
	for _, c := range r.conversations {
		if c.State == StateActive {
			active++
		}
	}
	return Stats{
		PendingQuestions:    len(r.questions),
		ActiveConversations: active,
		PendingPayments:     len(r.payments),
		LastQuestioner:      r.lastQuestioner,
	}
}
