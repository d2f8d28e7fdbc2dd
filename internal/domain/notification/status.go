// internal/domain/notification/status.go
package notification

import (
	"database/sql"
	"time"
)

// Notification is one outbound email or letter.
// Corresponds to the 'notifications' table. Rows are never deleted.
type Notification struct {
	ID              string
	EventID         string
	MessageType     MessageType
	MessageRef      string // template purpose, e.g. returns_invitation_primary_user_email
	TemplateID      string
	Recipient       sql.NullString // email address; null for letters
	Personalisation map[string]string
	LicenceRefs     []string
	Status          Status
	NotifyID        sql.NullString // provider-assigned id
	NotifyStatus    sql.NullString // raw provider status
	NotifyError     sql.NullString
	CreatedAt       time.Time
}

var emailStatuses = map[string]Status{
	"created":           StatusSending,
	"sending":           StatusSending,
	"delivered":         StatusSent,
	"permanent-failure": StatusError,
	"temporary-failure": StatusError,
	"technical-failure": StatusError,
}

var letterStatuses = map[string]Status{
	"created":             StatusSending,
	"sending":             StatusSending,
	"pending-virus-check": StatusSending,
	"accepted":            StatusSending,
	"received":            StatusSent,
	"delivered":           StatusSent,
	"cancelled":           StatusError,
	"validation-failed":   StatusError,
	"virus-scan-failed":   StatusError,
	"permanent-failure":   StatusError,
	"technical-failure":   StatusError,
}

// MapStatus translates a raw provider status into the stored status.
// ok is false for statuses the table does not know.
func MapStatus(messageType MessageType, providerStatus string) (status Status, ok bool) {
	table := emailStatuses
	if messageType == MessageTypeLetter {
		table = letterStatuses
	}
	status, ok = table[providerStatus]
	return status, ok
}

// Terminal reports whether no further provider updates are expected.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusError
}
