// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// Repository defines operations for Events and Notifications.
type Repository interface {
	// Event methods
	CreateEvent(ctx context.Context, event *Event) error
	GetEventByID(ctx context.Context, id string) (*Event, error)
	UpdateEventCounts(ctx context.Context, eventID string, counts StatusCounts) error
	// ListOpenEvents returns events created at or after since that still
	// have notifications awaiting a final provider status.
	ListOpenEvents(ctx context.Context, since time.Time) ([]*Event, error)

	// Notification methods
	BulkCreateNotifications(ctx context.Context, notifications []*Notification) error
	ListSendingNotifications(ctx context.Context, eventID string) ([]*Notification, error)
	UpdateNotificationStatus(ctx context.Context, n *Notification) error
	CountStatusesByEvent(ctx context.Context, eventID string) (StatusCounts, error)
}

// RecipientRepository finds who should receive a returns notice.
type RecipientRepository interface {
	// ListDueReturnsRecipients returns one Recipient per distinct contact
	// for licences with returns due on dueDate.
	ListDueReturnsRecipients(ctx context.Context, dueDate time.Time) ([]*Recipient, error)
}
