package notify

import (
	"fmt"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/rules"
)

// messageTemplate is one per-event-type message with {{placeholder}}
// substitution against the event context.
type messageTemplate struct {
	Subject string
	Body    string
	Text    string // SMS form
}

var templates = map[domain.NotificationEventType]messageTemplate{
	domain.EventCreated: {
		Subject: "New ticket: {{subject}}",
		Body:    "<p>Ticket <b>{{ticketId}}</b> was opened: {{subject}}</p>",
		Text:    "New ticket {{ticketId}}: {{subject}}",
	},
	domain.EventThreadNew: {
		Subject: "New reply on ticket {{ticketId}}",
		Body:    "<p>New message on <b>{{subject}}</b>:</p><p>{{threadBody}}</p>",
		Text:    "New reply on ticket {{ticketId}}",
	},
	domain.EventAssignmentChanged: {
		Subject: "Ticket {{ticketId}} reassigned",
		Body:    "<p>Ticket <b>{{subject}}</b> assignment changed.</p>",
		Text:    "Ticket {{ticketId}} reassigned",
	},
	domain.EventPriorityChanged: {
		Subject: "Ticket {{ticketId}} priority changed",
		Body:    "<p>Priority of <b>{{subject}}</b> changed from {{from}} to {{to}}.</p>",
		Text:    "Ticket {{ticketId}} priority: {{from}} -> {{to}}",
	},
	domain.EventStatusChanged: {
		Subject: "Ticket {{ticketId}} status changed",
		Body:    "<p>Status of <b>{{subject}}</b> changed from {{from}} to {{to}}.</p>",
		Text:    "Ticket {{ticketId}} status: {{from}} -> {{to}}",
	},
	domain.EventCategoryChanged: {
		Subject: "Ticket {{ticketId}} recategorized",
		Body:    "<p>Category of <b>{{subject}}</b> changed.</p>",
		Text:    "Ticket {{ticketId}} recategorized",
	},
}

// renderTemplate substitutes {{field}} placeholders from the context.
// Missing fields render empty rather than leaking the placeholder.
func renderTemplate(eventType domain.NotificationEventType, ctx rules.Context) messageTemplate {
	tpl, ok := templates[eventType]
	if !ok {
		tpl = messageTemplate{
			Subject: "Ticket {{ticketId}} updated",
			Body:    "<p>Ticket <b>{{subject}}</b> was updated.</p>",
			Text:    "Ticket {{ticketId}} updated",
		}
	}
	return messageTemplate{
		Subject: substitute(tpl.Subject, ctx),
		Body:    substitute(tpl.Body, ctx),
		Text:    substitute(tpl.Text, ctx),
	}
}

func substitute(s string, ctx rules.Context) string {
	for field, value := range ctx {
		placeholder := "{{" + field + "}}"
		if !strings.Contains(s, placeholder) {
			continue
		}
		s = strings.ReplaceAll(s, placeholder, fmt.Sprintf("%v", value))
	}
	// scrub placeholders with no context value
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			break
		}
		s = s[:start] + s[start+end+2:]
	}
	return s
}
