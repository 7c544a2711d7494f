// Package notification renders client notices into an outbox table and
// delivers them through an asynq queue.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Template ids used by the booking workflows.
const (
	TemplateConsultationReceived  = "consultation-received"
	TemplateConsultationConfirmed = "consultation-confirmed"
	TemplateConsultationCancelled = "consultation-cancelled"
)

// Outbox row statuses.
const (
	StatusPending    = "pending"
	StatusDispatched = "dispatched"
	StatusSent       = "sent"
	StatusAbandoned  = "abandoned"
)

const DefaultMaxAttempts = 5

// ---------------------------------------------------------------------------
// Notification
// ---------------------------------------------------------------------------

// Notification is one row of the notification_queue outbox.
type Notification struct {
	ID            uuid.UUID         `json:"id"`
	TemplateID    string            `json:"template_id"`
	Recipient     string            `json:"recipient"`
	Subject       string            `json:"subject"`
	Body          string            `json:"body"`
	Payload       map[string]string `json:"payload,omitempty"`
	Status        string            `json:"status"`
	AttemptCount  int               `json:"attempt_count"`
	MaxAttempts   int               `json:"max_attempts"`
	NextAttemptAt time.Time         `json:"next_attempt_at"`
	LastError     *string           `json:"last_error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	SentAt        *time.Time        `json:"sent_at,omitempty"`
}

// ---------------------------------------------------------------------------
// Sender
// ---------------------------------------------------------------------------

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// LogEmailSender writes every message to the log instead of delivering it.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_len", len(body)).
		Msg("email sent")
	return nil
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateConsultationReceived,
			Name:    "Consultation Received",
			Subject: "We received your consultation request",
			Body: "Dear {{client_name}}, thank you for contacting {{firm_name}}. Your consultation with " +
				"{{lawyer_name}} on {{date}} at {{time}} is pending confirmation.",
		},
		{
			ID:      TemplateConsultationConfirmed,
			Name:    "Consultation Confirmed",
			Subject: "Your consultation is confirmed",
			Body:    "Dear {{client_name}}, your consultation with {{lawyer_name}} on {{date}} at {{time}} is confirmed.",
		},
		{
			ID:      TemplateConsultationCancelled,
			Name:    "Consultation Cancelled",
			Subject: "Your consultation on {{date}} has been cancelled",
			Body: "Dear {{client_name}}, we are sorry to tell you that your consultation with {{lawyer_name}} " +
				"on {{date}} at {{time}} has been cancelled. Reason: {{reason}}. Please contact {{firm_name}} to rebook.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Queue
// ---------------------------------------------------------------------------

// Outbox stores rendered notifications. Enqueue must write through the
// transaction carried by ctx, if any.
type Outbox interface {
	Enqueue(ctx context.Context, n *Notification) error
}

// Queue renders templates into outbox rows.
type Queue struct {
	templates *TemplateEngine
	outbox    Outbox
	firmName  string
	now       func() time.Time
}

func NewQueue(templates *TemplateEngine, outbox Outbox, firmName string) *Queue {
	return &Queue{templates: templates, outbox: outbox, firmName: firmName, now: time.Now}
}

// Notify renders templateID for recipient and stores the result. The firm
// name is added to data under "firm_name" unless already present.
func (q *Queue) Notify(ctx context.Context, templateID, recipient string, data map[string]string) error {
	if recipient == "" {
		return errors.New("notification recipient is required")
	}
	payload := make(map[string]string, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	if _, ok := payload["firm_name"]; !ok {
		payload["firm_name"] = q.firmName
	}

	subject, body, err := q.templates.Render(templateID, payload)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	n := &Notification{
		TemplateID:    templateID,
		Recipient:     recipient,
		Subject:       subject,
		Body:          body,
		Payload:       payload,
		Status:        StatusPending,
		MaxAttempts:   DefaultMaxAttempts,
		NextAttemptAt: q.now(),
	}
	if err := q.outbox.Enqueue(ctx, n); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
