// internal/domain/notify/client.go
package notify

import (
	"context"
	"fmt"
	"strings"
)

// EmailRequest is one email to send through the notification provider.
type EmailRequest struct {
	TemplateID      string
	EmailAddress    string
	Personalisation map[string]string
	Reference       string
}

// LetterRequest is one letter to send. The address travels in
// Personalisation as address_line_1..address_line_7.
type LetterRequest struct {
	TemplateID      string
	Personalisation map[string]string
	Reference       string
}

// SendResponse is the provider's acknowledgement of an accepted message.
type SendResponse struct {
	Status int    // HTTP status, 201 on success
	ID     string // provider-assigned notification id
}

// StatusResponse is the provider's view of a previously sent message.
type StatusResponse struct {
	ID     string
	Status string
}

// Client is the notification provider.
type Client interface {
	SendEmail(ctx context.Context, req EmailRequest) (*SendResponse, error)
	SendLetter(ctx context.Context, req LetterRequest) (*SendResponse, error)
	GetStatus(ctx context.Context, notifyID string) (*StatusResponse, error)
}

// ErrorDetail is one entry of the provider's error list.
type ErrorDetail struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error is a rejected provider request.
type Error struct {
	Status  int
	Message string
	Errors  []ErrorDetail
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("notify: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("notify: status %d", e.Status)
}

// NewError builds an Error whose Message joins the detail messages.
func NewError(status int, details []ErrorDetail) *Error {
	messages := make([]string, 0, len(details))
	for _, d := range details {
		if d.Message != "" {
			messages = append(messages, d.Message)
		}
	}
	return &Error{Status: status, Message: strings.Join(messages, "; "), Errors: details}
}
