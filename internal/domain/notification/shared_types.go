// internal/domain/notification/shared_types.go
package notification

// MessageType is the delivery channel of a notification.
type MessageType string

const (
	MessageTypeEmail  MessageType = "email"
	MessageTypeLetter MessageType = "letter"
)

// Status is the coarse delivery state stored against each notification.
type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusError   Status = "error"
)

// Journey is the kind of notice being sent.
type Journey string

const (
	JourneyInvitations Journey = "invitations"
	JourneyReminders   Journey = "reminders"
)

// ReferencePrefix is the leading part of an event reference code.
func (j Journey) ReferencePrefix() string {
	switch j {
	case JourneyReminders:
		return "RREM-"
	default:
		return "RINV-"
	}
}

// Subtype is the legacy event subtype name for the journey.
func (j Journey) Subtype() string {
	switch j {
	case JourneyReminders:
		return "returnReminder"
	default:
		return "returnInvitation"
	}
}
