package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"water_billing_service/internal/domain/licence"
	"water_billing_service/internal/domain/notification"
	"water_billing_service/internal/domain/notify"

	"github.com/sirupsen/logrus"
)

var errNotFound = errors.New("not found")

type persistCall struct {
	licenceID string
	preSroc   licence.PresrocFlag
	sroc      bool
	years     []int
}

type fakeLicenceRepo struct {
	details  map[string]*licence.ExistingDetails
	licences map[string]*licence.Licence
	years    map[string][]*licence.SupplementaryYear
	persists []persistCall
	err      error

	// persistErr is returned by the next PersistFlags call only.
	persistErr error
}

func newFakeLicenceRepo() *fakeLicenceRepo {
	return &fakeLicenceRepo{
		details:  make(map[string]*licence.ExistingDetails),
		licences: make(map[string]*licence.Licence),
		years:    make(map[string][]*licence.SupplementaryYear),
	}
}

func (f *fakeLicenceRepo) GetByID(_ context.Context, id string) (*licence.Licence, error) {
	l, ok := f.licences[id]
	if !ok {
		return nil, errNotFound
	}
	return l, nil
}

func (f *fakeLicenceRepo) FetchExistingDetails(_ context.Context, id string) (*licence.ExistingDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.details[id]
	if !ok {
		return nil, errNotFound
	}
	copied := *d
	return &copied, nil
}

func (f *fakeLicenceRepo) PersistFlags(_ context.Context, id string, preSroc licence.PresrocFlag, sroc bool, years []int) error {
	if err := f.persistErr; err != nil {
		f.persistErr = nil
		return err
	}
	f.persists = append(f.persists, persistCall{licenceID: id, preSroc: preSroc, sroc: sroc, years: years})
	if d, ok := f.details[id]; ok {
		d.FlaggedForPresroc = bool(preSroc)
		d.FlaggedForSroc = sroc
	}
	return nil
}

func (f *fakeLicenceRepo) UpdateEndDates(_ context.Context, id string, dates licence.ImportedEndDates) error {
	d, ok := f.details[id]
	if !ok {
		return errNotFound
	}
	d.ExpiredDate, d.LapsedDate, d.RevokedDate = dates.ExpiredDate, dates.LapsedDate, dates.RevokedDate
	return nil
}

func (f *fakeLicenceRepo) ListSupplementaryYears(_ context.Context, id string) ([]*licence.SupplementaryYear, error) {
	return f.years[id], nil
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	events        map[string]*notification.Event
	notifications []*notification.Notification
	bulkCalls     int
	updates       []notification.Notification
	openSince     time.Time
	bulkErr       error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{events: make(map[string]*notification.Event)}
}

func (f *fakeNotificationRepo) CreateEvent(_ context.Context, e *notification.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[e.ID] = e
	return nil
}

func (f *fakeNotificationRepo) GetEventByID(_ context.Context, id string) (*notification.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, errNotFound
	}
	return e, nil
}

func (f *fakeNotificationRepo) UpdateEventCounts(_ context.Context, id string, counts notification.StatusCounts) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		e = &notification.Event{ID: id}
		f.events[id] = e
	}
	e.SentCount, e.ErrorCount, e.PendingCount = counts.Sent, counts.Error, counts.Sending
	e.Status = notification.EventStatusPending
	if counts.Sending == 0 {
		e.Status = notification.EventStatusCompleted
	}
	return nil
}

func (f *fakeNotificationRepo) ListOpenEvents(_ context.Context, since time.Time) ([]*notification.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openSince = since
	open := make([]*notification.Event, 0)
	for _, e := range f.events {
		for _, n := range f.notifications {
			if n.EventID == e.ID && n.Status == notification.StatusSending {
				open = append(open, e)
				break
			}
		}
	}
	return open, nil
}

func (f *fakeNotificationRepo) BulkCreateNotifications(_ context.Context, ns []*notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	if f.bulkErr != nil {
		return f.bulkErr
	}
	f.notifications = append(f.notifications, ns...)
	return nil
}

func (f *fakeNotificationRepo) ListSendingNotifications(_ context.Context, eventID string) ([]*notification.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*notification.Notification, 0)
	for _, n := range f.notifications {
		if n.EventID == eventID && n.Status == notification.StatusSending && n.NotifyID.Valid {
			copied := *n
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) UpdateNotificationStatus(_ context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, *n)
	for _, stored := range f.notifications {
		if stored.ID == n.ID {
			stored.Status = n.Status
			stored.NotifyStatus = n.NotifyStatus
		}
	}
	return nil
}

func (f *fakeNotificationRepo) CountStatusesByEvent(_ context.Context, eventID string) (notification.StatusCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var c notification.StatusCounts
	for _, n := range f.notifications {
		if n.EventID != eventID {
			continue
		}
		switch n.Status {
		case notification.StatusSending:
			c.Sending++
		case notification.StatusSent:
			c.Sent++
		case notification.StatusError:
			c.Error++
		}
	}
	return c, nil
}

func (f *fakeNotificationRepo) byID(id string) *notification.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == id {
			return n
		}
	}
	return nil
}

type fakeRecipientRepo struct {
	recipients []*notification.Recipient
	dueDate    time.Time
}

func (f *fakeRecipientRepo) ListDueReturnsRecipients(_ context.Context, dueDate time.Time) ([]*notification.Recipient, error) {
	f.dueDate = dueDate
	return f.recipients, nil
}

// fakeNotifyClient accepts everything unless a reject rule matches.
type fakeNotifyClient struct {
	mu        sync.Mutex
	emails    []notify.EmailRequest
	letters   []notify.LetterRequest
	rejectTo  map[string]error
	statuses  map[string]string
	statusErr map[string]error
	noID      map[string]bool // accepted without a provider id
	seq       int
}

func newFakeNotifyClient() *fakeNotifyClient {
	return &fakeNotifyClient{
		rejectTo:  make(map[string]error),
		statuses:  make(map[string]string),
		statusErr: make(map[string]error),
		noID:      make(map[string]bool),
	}
}

func (f *fakeNotifyClient) accept() *notify.SendResponse {
	f.seq++
	return &notify.SendResponse{Status: 201, ID: fmt.Sprintf("notify-%d", f.seq)}
}

func (f *fakeNotifyClient) SendEmail(_ context.Context, req notify.EmailRequest) (*notify.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, req)
	if err, ok := f.rejectTo[req.EmailAddress]; ok {
		return nil, err
	}
	if f.noID[req.EmailAddress] {
		return &notify.SendResponse{Status: http.StatusCreated}, nil
	}
	return f.accept(), nil
}

func (f *fakeNotifyClient) SendLetter(_ context.Context, req notify.LetterRequest) (*notify.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.letters = append(f.letters, req)
	if err, ok := f.rejectTo[req.Personalisation["address_line_1"]]; ok {
		return nil, err
	}
	return f.accept(), nil
}

func (f *fakeNotifyClient) GetStatus(_ context.Context, id string) (*notify.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.statusErr[id]; ok {
		return nil, err
	}
	return &notify.StatusResponse{ID: id, Status: f.statuses[id]}, nil
}

func (f *fakeNotifyClient) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emails) + len(f.letters)
}

type alertCall struct {
	message string
	fields  logrus.Fields
	err     error
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []string
	alerts  []alertCall
}

func (f *fakeNotifier) Notify(message string, _ logrus.Fields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, message)
}

func (f *fakeNotifier) Alert(message string, fields logrus.Fields, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alertCall{message: message, fields: fields, err: err})
}

type fakeRecorder struct {
	mu          sync.Mutex
	sent        map[string]int
	transitions map[string]int
	batches     int
	flagged     map[string]int
	runs        map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		sent:        make(map[string]int),
		transitions: make(map[string]int),
		flagged:     make(map[string]int),
		runs:        make(map[string]int),
	}
}

func (f *fakeRecorder) NotificationSent(messageType, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[messageType+"/"+status]++
}

func (f *fakeRecorder) StatusTransition(messageType, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions[messageType+"/"+status]++
}

func (f *fakeRecorder) BatchDispatched() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
}

func (f *fakeRecorder) LicenceFlagged(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagged[outcome]++
}

func (f *fakeRecorder) ReconciliationRun(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.runs["error"]++
		return
	}
	f.runs["ok"]++
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
