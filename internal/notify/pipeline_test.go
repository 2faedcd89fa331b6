package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

type fakeEvents struct {
	events map[int64]*domain.NotificationEvent
}

func (f *fakeEvents) GetByID(ctx context.Context, id int64) (*domain.NotificationEvent, error) {
	if e, ok := f.events[id]; ok {
		return e, nil
	}
	return nil, pgx.ErrNoRows
}

type recipientKey struct {
	eventID int64
	userID  string
}

type fakeRecipients struct {
	rows    map[recipientKey]*domain.NotificationRecipient
	inserts int
}

func newFakeRecipients() *fakeRecipients {
	return &fakeRecipients{rows: make(map[recipientKey]*domain.NotificationRecipient)}
}

func (f *fakeRecipients) BulkInsert(ctx context.Context, eventID int64, userIDs []string) error {
	for _, userID := range userIDs {
		key := recipientKey{eventID, userID}
		if _, exists := f.rows[key]; exists {
			continue // duplicate-skip
		}
		f.rows[key] = &domain.NotificationRecipient{EventID: eventID, UserID: userID}
		f.inserts++
	}
	return nil
}

func (f *fakeRecipients) ListByEvent(ctx context.Context, eventID int64) ([]domain.NotificationRecipient, error) {
	var out []domain.NotificationRecipient
	for key, row := range f.rows {
		if key.eventID == eventID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeRecipients) MarkNotified(ctx context.Context, eventID int64, userID string, channel domain.NotificationChannel) error {
	row := f.rows[recipientKey{eventID, userID}]
	if row == nil {
		return errors.New("no recipient row")
	}
	switch channel {
	case domain.ChannelEmail:
		row.EmailNotified = true
	case domain.ChannelSMS:
		row.SMSNotified = true
	}
	return nil
}

type fakeRules struct {
	rules map[string][]domain.NotificationRule // userID -> rules
}

func (f *fakeRules) ListForUser(ctx context.Context, userID string, channel domain.NotificationChannel) ([]domain.NotificationRule, error) {
	var out []domain.NotificationRule
	for _, r := range f.rules[userID] {
		if r.Channel == channel {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeUsers struct {
	users map[string]*domain.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

type fakeTickets struct {
	tickets map[string]*domain.Ticket
}

func (f *fakeTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if t, ok := f.tickets[id]; ok {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}

type fakeThreads struct {
	threads map[string]*domain.Thread
	first   map[string]bool
}

func (f *fakeThreads) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	if t, ok := f.threads[id]; ok {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeThreads) IsFirstThread(ctx context.Context, thread *domain.Thread) (bool, error) {
	return f.first[thread.ID], nil
}

type fakeChanges struct {
	changes map[string]*domain.TicketChange
}

func (f *fakeChanges) GetByID(ctx context.Context, id string) (*domain.TicketChange, error) {
	if c, ok := f.changes[id]; ok {
		return c, nil
	}
	return nil, pgx.ErrNoRows
}

type fakeAudience struct {
	users []string
}

func (f *fakeAudience) WhoCanAccess(ctx context.Context, ticketID string) (*access.Audience, error) {
	audience := &access.Audience{}
	for _, u := range f.users {
		audience.Users = append(audience.Users, access.UserAccess{UserID: u})
	}
	return audience, nil
}

type fakeQueue struct {
	enqueued []any
}

func (f *fakeQueue) Enqueue(ctx context.Context, payload any) error {
	f.enqueued = append(f.enqueued, payload)
	return nil
}

type fakeEmail struct {
	sent []string // recipients
	fail bool
}

func (f *fakeEmail) SendEmail(ctx context.Context, to, subject, html string) error {
	if f.fail {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeSMS struct {
	sent []string
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, text string) error {
	f.sent = append(f.sent, to)
	return nil
}

func alwaysRule(channel domain.NotificationChannel, eventTypes ...string) domain.NotificationRule {
	return domain.NotificationRule{
		Channel:    channel,
		EventTypes: eventTypes,
		Conditions: domain.ConditionNode{Operator: domain.OperatorAnd},
		Enabled:    true,
	}
}

func strPtr(s string) *string { return &s }

type fixture struct {
	pipeline   *Pipeline
	events     *fakeEvents
	recipients *fakeRecipients
	rules      *fakeRules
	users      *fakeUsers
	tickets    *fakeTickets
	threads    *fakeThreads
	changes    *fakeChanges
	audience   *fakeAudience
	queue      *fakeQueue
	email      *fakeEmail
	sms        *fakeSMS
	metrics    *observability.Metrics
}

func newFixture() *fixture {
	f := &fixture{
		events:     &fakeEvents{events: map[int64]*domain.NotificationEvent{}},
		recipients: newFakeRecipients(),
		rules:      &fakeRules{rules: map[string][]domain.NotificationRule{}},
		users:      &fakeUsers{users: map[string]*domain.User{}},
		tickets:    &fakeTickets{tickets: map[string]*domain.Ticket{}},
		threads:    &fakeThreads{threads: map[string]*domain.Thread{}, first: map[string]bool{}},
		changes:    &fakeChanges{changes: map[string]*domain.TicketChange{}},
		audience:   &fakeAudience{},
		queue:      &fakeQueue{},
		email:      &fakeEmail{},
		sms:        &fakeSMS{},
	}
	f.metrics = observability.NewMetrics()
	f.pipeline = NewPipeline(Dependencies{
		Events:        f.events,
		Recipients:    f.recipients,
		Rules:         f.rules,
		Users:         f.users,
		Tickets:       f.tickets,
		Threads:       f.threads,
		Changes:       f.changes,
		Audience:      f.audience,
		DeliveryQueue: f.queue,
		Email:         f.email,
		SMS:           f.sms,
		Logger:        zap.NewNop(),
		Metrics:       f.metrics,
	})
	return f
}

func initPayload(eventID int64) json.RawMessage {
	raw, _ := json.Marshal(InitJob{EventID: eventID})
	return raw
}

func (f *fixture) seedStatusChange() {
	f.tickets.tickets["T1"] = &domain.Ticket{
		ID: "T1", Subject: "printer on fire", CurrentStatus: domain.TicketStatusInProgress,
		CurrentPriorityID: "p1", CurrentCategoryID: "c1",
	}
	f.changes.changes["ch1"] = &domain.TicketChange{
		ID: "ch1", TicketID: "T1", Field: domain.ChangeFieldStatus,
		FromValue: strPtr("OPEN"), ToValue: strPtr("IN_PROGRESS"), ActorEntityID: "e1",
	}
	f.events.events[7] = &domain.NotificationEvent{
		ID: 7, Type: domain.EventStatusChanged, ChangeID: strPtr("ch1"),
	}
	f.audience.users = []string{"alice", "bob"}
	f.users.users["alice"] = &domain.User{ID: "alice", Email: "alice@example.com", Phone: "+155501"}
	f.users.users["bob"] = &domain.User{ID: "bob", Email: "bob@example.com"}
}

func TestInitMaterializesRecipientsAndEnqueuesDelivery(t *testing.T) {
	f := newFixture()
	f.seedStatusChange()

	err := f.pipeline.HandleInit(context.Background(), initPayload(7))
	require.NoError(t, err)

	assert.Equal(t, 2, f.recipients.inserts)
	require.Len(t, f.queue.enqueued, 1)
	assert.Equal(t, DeliveryJob{EventID: 7}, f.queue.enqueued[0])
}

func TestInitIsIdempotent(t *testing.T) {
	f := newFixture()
	f.seedStatusChange()

	require.NoError(t, f.pipeline.HandleInit(context.Background(), initPayload(7)))
	require.NoError(t, f.pipeline.HandleInit(context.Background(), initPayload(7)))

	assert.Equal(t, 2, f.recipients.inserts, "second run must not add recipient rows")
}

func TestInitAbandonsMissingEvent(t *testing.T) {
	f := newFixture()

	err := f.pipeline.HandleInit(context.Background(), initPayload(99))
	assert.NoError(t, err, "missing event is logged and abandoned, not retried")
	assert.Empty(t, f.queue.enqueued)
}

func TestInitAbandonsDanglingEvent(t *testing.T) {
	f := newFixture()
	f.events.events[3] = &domain.NotificationEvent{ID: 3, Type: domain.EventStatusChanged}

	err := f.pipeline.HandleInit(context.Background(), initPayload(3))
	assert.NoError(t, err)
	assert.Empty(t, f.queue.enqueued)
}

func TestDeliverySendsPerMatchingChannel(t *testing.T) {
	f := newFixture()
	f.seedStatusChange()
	f.rules.rules["alice"] = []domain.NotificationRule{
		alwaysRule(domain.ChannelEmail, "STATUS_CHANGED"),
		alwaysRule(domain.ChannelSMS, "STATUS_CHANGED"),
	}
	f.rules.rules["bob"] = []domain.NotificationRule{
		alwaysRule(domain.ChannelEmail, "CREATED"), // wrong event type
	}
	require.NoError(t, f.pipeline.HandleInit(context.Background(), initPayload(7)))

	err := f.pipeline.HandleDelivery(context.Background(), initPayload(7))
	require.NoError(t, err)

	assert.Equal(t, []string{"alice@example.com"}, f.email.sent)
	assert.Equal(t, []string{"+155501"}, f.sms.sent)
	assert.Equal(t, int64(1), f.metrics.PipelineCount("emails_sent"))
	assert.Equal(t, int64(1), f.metrics.PipelineCount("sms_sent"))
}

func TestDeliveryIsIdempotentPerChannel(t *testing.T) {
	f := newFixture()
	f.seedStatusChange()
	f.rules.rules["alice"] = []domain.NotificationRule{alwaysRule(domain.ChannelEmail, "STATUS_CHANGED")}
	require.NoError(t, f.pipeline.HandleInit(context.Background(), initPayload(7)))

	require.NoError(t, f.pipeline.HandleDelivery(context.Background(), initPayload(7)))
	require.NoError(t, f.pipeline.HandleDelivery(context.Background(), initPayload(7)))

	assert.Len(t, f.email.sent, 1, "already-notified recipient must not get a second email")
}

func TestDeliveryTransportFailureIsRetryable(t *testing.T) {
	f := newFixture()
	f.seedStatusChange()
	f.rules.rules["alice"] = []domain.NotificationRule{alwaysRule(domain.ChannelEmail, "STATUS_CHANGED")}
	require.NoError(t, f.pipeline.HandleInit(context.Background(), initPayload(7)))

	f.email.fail = true
	err := f.pipeline.HandleDelivery(context.Background(), initPayload(7))
	require.Error(t, err, "transport failure must surface for queue retry")

	// flag untouched; the retry delivers
	f.email.fail = false
	require.NoError(t, f.pipeline.HandleDelivery(context.Background(), initPayload(7)))
	assert.Equal(t, []string{"alice@example.com"}, f.email.sent)
	assert.Equal(t, int64(1), f.metrics.PipelineCount("email_failures"))
}

func TestFirstThreadNormalizesToCreated(t *testing.T) {
	f := newFixture()
	f.tickets.tickets["T10"] = &domain.Ticket{ID: "T10", Subject: "hello", CurrentStatus: domain.TicketStatusOpen}
	f.threads.threads["th1"] = &domain.Thread{ID: "th1", TicketID: "T10", Body: "opening message"}
	f.threads.first["th1"] = true
	f.events.events[11] = &domain.NotificationEvent{ID: 11, Type: domain.EventThreadNew, ThreadID: strPtr("th1")}
	f.audience.users = []string{"alice"}
	f.users.users["alice"] = &domain.User{ID: "alice", Email: "alice@example.com"}
	// alice subscribes to CREATED, not THREAD_NEW
	f.rules.rules["alice"] = []domain.NotificationRule{alwaysRule(domain.ChannelEmail, "CREATED")}

	require.NoError(t, f.pipeline.HandleInit(context.Background(), initPayload(11)))
	require.NoError(t, f.pipeline.HandleDelivery(context.Background(), initPayload(11)))

	assert.Len(t, f.email.sent, 1, "first thread matches CREATED rules")
}

func TestLaterThreadStaysThreadNew(t *testing.T) {
	f := newFixture()
	f.tickets.tickets["T10"] = &domain.Ticket{ID: "T10", Subject: "hello", CurrentStatus: domain.TicketStatusOpen}
	f.threads.threads["th2"] = &domain.Thread{ID: "th2", TicketID: "T10", Body: "a reply"}
	f.events.events[12] = &domain.NotificationEvent{ID: 12, Type: domain.EventThreadNew, ThreadID: strPtr("th2")}
	f.audience.users = []string{"alice"}
	f.users.users["alice"] = &domain.User{ID: "alice", Email: "alice@example.com"}
	f.rules.rules["alice"] = []domain.NotificationRule{alwaysRule(domain.ChannelEmail, "CREATED")}

	require.NoError(t, f.pipeline.HandleInit(context.Background(), initPayload(12)))
	require.NoError(t, f.pipeline.HandleDelivery(context.Background(), initPayload(12)))

	assert.Empty(t, f.email.sent, "a reply is not creation")
}

func TestJobPayloadRoundTrip(t *testing.T) {
	raw, err := json.Marshal(InitJob{EventID: 42})
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventId":42}`, string(raw))

	var job DeliveryJob
	require.NoError(t, json.Unmarshal([]byte(`{"eventId":42}`), &job))
	assert.Equal(t, int64(42), job.EventID)
}
