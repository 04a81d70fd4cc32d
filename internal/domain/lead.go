package domain

import "time"

// LeadStatus enumerates the lifecycle states of a lead.
type LeadStatus string

const (
	// LeadActive is the state of every lead from admission until its
	// final message advance commits.
	LeadActive LeadStatus = "active"
	// LeadCompleted is the only terminal state the system enters on its
	// own: message_count has reached max_messages.
	LeadCompleted LeadStatus = "completed"
	// LeadFailed is reserved for operator action; nothing in this
	// codebase transitions a lead into it.
	LeadFailed LeadStatus = "failed"
)

// Lead is one captured lead and its drip-campaign progress.
//
// MessageCount only moves forward, and only inside a row-locked store
// transaction; it is the source of truth for which messages have been
// delivered, regardless of what the day-queues contain.
type Lead struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Phone string `json:"phone" db:"phone"`
	Notes string `json:"notes" db:"notes"`

	MaxMessages  int `json:"max_messages" db:"max_messages"`
	MessageCount int `json:"message_count" db:"message_count"`

	LastSentAt       *time.Time `json:"last_sent_at" db:"last_sent_at"`
	NextScheduledFor *time.Time `json:"next_scheduled_for" db:"next_scheduled_for"`

	Status    LeadStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Completed reports whether every message in the lead's sequence has
// durably advanced.
func (l *Lead) Completed() bool {
	return l.MessageCount >= l.MaxMessages
}

// LeadAdvance is the patch a worker applies when a message advance commits.
type LeadAdvance struct {
	MessageCount     int
	LastSentAt       time.Time
	NextScheduledFor *time.Time
	Status           LeadStatus
}

// QueueEntry is the payload of one scheduled message in a day-queue.
// ScheduledDate is the civil date (YYYY-MM-DD, UTC) of the queue the
// entry was enqueued into.
type QueueEntry struct {
	LeadID        string `json:"leadId"`
	Email         string `json:"email"`
	MessageNumber int    `json:"messageNumber"`
	ScheduledDate string `json:"scheduledDate"`
}
