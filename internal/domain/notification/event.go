// internal/domain/notification/event.go
package notification

import "time"

// Event groups the notifications produced by a single "send" action.
// Corresponds to the 'events' table.
type Event struct {
	ID             string
	ReferenceCode  string // e.g. RINV-ABC123
	Type           string // always "notification"
	Subtype        string // returnInvitation or returnReminder
	Issuer         string
	Status         EventStatus
	RecipientCount int
	SentCount      int
	ErrorCount     int
	PendingCount   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EventStatus tracks the send action itself, not individual deliveries.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusCompleted EventStatus = "completed"
)

// StatusCounts is a per-event summary of notification statuses.
type StatusCounts struct {
	Sending int
	Sent    int
	Error   int
}
