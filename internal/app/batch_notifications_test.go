package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"water_billing_service/internal/domain/notification"
	"water_billing_service/internal/domain/notify"
	"water_billing_service/internal/infra/config"
	"water_billing_service/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTemplates = map[string]string{
	config.TemplateKey("invitations", "email", "primary user"):    "tpl-inv-primary",
	config.TemplateKey("invitations", "email", "returns agent"):   "tpl-inv-agent",
	config.TemplateKey("invitations", "letter", "licence holder"): "tpl-inv-holder",
	config.TemplateKey("invitations", "letter", "returns to"):     "tpl-inv-returns-to",
}

type dispatcherFixture struct {
	dispatcher *NotificationDispatcher
	client     *fakeNotifyClient
	repo       *fakeNotificationRepo
	recorder   *fakeRecorder
	pauses     []time.Duration
}

func newDispatcherFixture(batchSize int) *dispatcherFixture {
	f := &dispatcherFixture{
		client:   newFakeNotifyClient(),
		repo:     newFakeNotificationRepo(),
		recorder: newFakeRecorder(),
	}
	f.dispatcher = NewNotificationDispatcher(f.client, f.repo, f.recorder, logger.Discard(), DispatcherOptions{
		BatchSize:  batchSize,
		BatchDelay: 5 * time.Second,
		Templates:  testTemplates,
	})
	f.dispatcher.pause = func(d time.Duration) { f.pauses = append(f.pauses, d) }
	var seq int64
	f.dispatcher.newID = func() string { return fmt.Sprintf("n-%d", atomic.AddInt64(&seq, 1)) }
	f.repo.events["evt-1"] = &notification.Event{ID: "evt-1", Status: notification.EventStatusPending}
	return f
}

func emailRecipient(addr string, refs ...string) *notification.Recipient {
	return &notification.Recipient{
		ContactType: notification.ContactTypePrimaryUser,
		LicenceRefs: refs,
		Contact:     notification.EmailContact{Address: addr},
	}
}

var invitationContext = DispatchContext{
	EventID:         "evt-1",
	ReferenceCode:   "RINV-ABC123",
	Journey:         notification.JourneyInvitations,
	Personalisation: map[string]string{"periodEndDate": "31 March 2024"},
}

func TestSendBatches_ChunksAndPauses(t *testing.T) {
	for _, tc := range []struct {
		recipients, batchSize, chunks int
	}{
		{recipients: 5, batchSize: 2, chunks: 3},
		{recipients: 4, batchSize: 2, chunks: 2},
		{recipients: 1, batchSize: 125, chunks: 1},
		{recipients: 0, batchSize: 3, chunks: 0},
	} {
		t.Run(fmt.Sprintf("%d_by_%d", tc.recipients, tc.batchSize), func(t *testing.T) {
			f := newDispatcherFixture(tc.batchSize)
			recipients := make([]*notification.Recipient, tc.recipients)
			for i := range recipients {
				recipients[i] = emailRecipient(fmt.Sprintf("user%d@example.com", i), "01/123")
			}

			totals, err := f.dispatcher.SendBatches(context.Background(), recipients, invitationContext)

			require.NoError(t, err)
			assert.Equal(t, BatchTotals{Sent: tc.recipients}, totals)
			assert.Equal(t, tc.recipients, f.client.sendCount())
			assert.Equal(t, tc.chunks, f.repo.bulkCalls)
			assert.Equal(t, tc.chunks, f.recorder.batches)
			expectedPauses := tc.chunks - 1
			if expectedPauses < 0 {
				expectedPauses = 0
			}
			assert.Len(t, f.pauses, expectedPauses)
			for _, p := range f.pauses {
				assert.Equal(t, 5*time.Second, p)
			}
		})
	}
}

func TestSendBatches_EmailAcceptedIsSending(t *testing.T) {
	f := newDispatcherFixture(10)

	_, err := f.dispatcher.SendBatches(context.Background(), []*notification.Recipient{emailRecipient("a@b.com", "01/123")}, invitationContext)
	require.NoError(t, err)

	require.Len(t, f.repo.notifications, 1)
	n := f.repo.notifications[0]
	assert.Equal(t, notification.MessageTypeEmail, n.MessageType)
	assert.Equal(t, notification.StatusSending, n.Status)
	assert.Equal(t, "created", n.NotifyStatus.String)
	assert.Equal(t, "notify-1", n.NotifyID.String)
	assert.Equal(t, "a@b.com", n.Recipient.String)
	assert.Equal(t, "tpl-inv-primary", n.TemplateID)
	assert.Equal(t, "returns_invitation_primary_user_email", n.MessageRef)
	assert.Equal(t, []string{"01/123"}, n.LicenceRefs)
	assert.False(t, n.NotifyError.Valid)

	require.Len(t, f.client.emails, 1)
	assert.Equal(t, "RINV-ABC123", f.client.emails[0].Reference)
	assert.Equal(t, "31 March 2024", f.client.emails[0].Personalisation["periodEndDate"])
}

func TestSendBatches_RejectedSendDoesNotBlockOthers(t *testing.T) {
	f := newDispatcherFixture(10)
	f.client.rejectTo["bad@example.com"] = notify.NewError(http.StatusBadRequest, []notify.ErrorDetail{
		{Error: "ValidationError", Message: "email_address Not a valid email address"},
	})

	recipients := []*notification.Recipient{
		emailRecipient("good1@example.com", "01/1"),
		emailRecipient("bad@example.com", "01/2"),
		emailRecipient("good2@example.com", "01/3"),
	}
	totals, err := f.dispatcher.SendBatches(context.Background(), recipients, invitationContext)

	require.NoError(t, err)
	assert.Equal(t, BatchTotals{Sent: 2, Error: 1}, totals)
	require.Len(t, f.repo.notifications, 3)
	for _, n := range f.repo.notifications {
		if n.Recipient.String == "bad@example.com" {
			assert.Equal(t, notification.StatusError, n.Status)
			assert.Equal(t, "email_address Not a valid email address", n.NotifyError.String)
			assert.False(t, n.NotifyID.Valid)
			continue
		}
		assert.Equal(t, notification.StatusSending, n.Status)
	}

	event := f.repo.events["evt-1"]
	assert.Equal(t, 2, event.PendingCount)
	assert.Equal(t, 1, event.ErrorCount)
	assert.Equal(t, 1, f.recorder.sent["email/error"])
	assert.Equal(t, 2, f.recorder.sent["email/sending"])
}

func TestSendBatches_LetterCarriesAddressLines(t *testing.T) {
	f := newDispatcherFixture(10)
	recipient := &notification.Recipient{
		ContactType: notification.ContactTypeLicenceHolder,
		LicenceRefs: []string{"01/123", "01/124"},
		Contact: notification.PostalContact{
			Name:         "Jo Farmer",
			AddressLines: []string{"Hill Farm", "Ludlow"},
			Postcode:     "SY8 1AA",
		},
	}

	_, err := f.dispatcher.SendBatches(context.Background(), []*notification.Recipient{recipient}, invitationContext)
	require.NoError(t, err)

	require.Len(t, f.client.letters, 1)
	p := f.client.letters[0].Personalisation
	assert.Equal(t, "Jo Farmer", p["address_line_1"])
	assert.Equal(t, "Hill Farm", p["address_line_2"])
	assert.Equal(t, "Ludlow", p["address_line_3"])
	assert.Equal(t, "SY8 1AA", p["address_line_4"])
	assert.Equal(t, "tpl-inv-holder", f.client.letters[0].TemplateID)

	n := f.repo.notifications[0]
	assert.Equal(t, notification.MessageTypeLetter, n.MessageType)
	assert.False(t, n.Recipient.Valid)
	assert.Equal(t, "returns_invitation_licence_holder_letter", n.MessageRef)
}

func TestSendBatches_MissingTemplateRecordsError(t *testing.T) {
	f := newDispatcherFixture(10)
	dc := invitationContext
	dc.Journey = notification.JourneyReminders

	totals, err := f.dispatcher.SendBatches(context.Background(), []*notification.Recipient{emailRecipient("a@b.com")}, dc)

	require.NoError(t, err)
	assert.Equal(t, BatchTotals{Error: 1}, totals)
	assert.Zero(t, f.client.sendCount())
	assert.Contains(t, f.repo.notifications[0].NotifyError.String, "no template configured")
	assert.Empty(t, f.repo.notifications[0].TemplateID)
}

func TestSendBatches_AcceptedWithoutIDRecordsError(t *testing.T) {
	f := newDispatcherFixture(10)
	f.client.noID["a@b.com"] = true

	totals, err := f.dispatcher.SendBatches(context.Background(), []*notification.Recipient{
		emailRecipient("a@b.com"), emailRecipient("c@d.com"),
	}, invitationContext)

	require.NoError(t, err)
	assert.Equal(t, BatchTotals{Sent: 1, Error: 1}, totals)
	require.Len(t, f.repo.notifications, 2)

	byRecipient := make(map[string]*notification.Notification)
	for _, n := range f.repo.notifications {
		byRecipient[n.Recipient.String] = n
	}
	assert.Equal(t, notification.StatusError, byRecipient["a@b.com"].Status)
	assert.False(t, byRecipient["a@b.com"].NotifyID.Valid)
	assert.Equal(t, notification.StatusSending, byRecipient["c@d.com"].Status)
	assert.True(t, byRecipient["c@d.com"].NotifyID.Valid)
}

func TestSendBatches_StorageFailurePropagates(t *testing.T) {
	f := newDispatcherFixture(1)
	f.repo.bulkErr = errors.New("disk full")

	_, err := f.dispatcher.SendBatches(context.Background(), []*notification.Recipient{
		emailRecipient("a@b.com"), emailRecipient("c@d.com"),
	}, invitationContext)

	assert.ErrorIs(t, err, f.repo.bulkErr)
	assert.Equal(t, 1, f.repo.bulkCalls)
	assert.Empty(t, f.pauses)
}
