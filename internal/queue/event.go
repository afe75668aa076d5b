// Package queue carries ticket lifecycle notifications over RabbitMQ.
package queue

import (
	"github.com/iliyamo/festival-ticketing/internal/model"
)

// Message types published on the ticket events queue.
const (
	TypeTicketIssued    = "ticket.issued"
	TypeTicketCancelled = "ticket.cancelled"
)

// TicketEvent is published after an issuance or cancellation commits.
// It carries enough of the ticket for consumers to log or notify
// without reading the primary database.
type TicketEvent struct {
	Type           string `json:"type"`
	TicketID       string `json:"ticket_id"`
	GroupID        string `json:"group_id"`
	EventID        string `json:"event_id"`
	OwnerID        string `json:"owner_id"`
	Person         int    `json:"person"`
	Status         string `json:"status"`
	IsFamilyTicket bool   `json:"is_family_ticket"`
	CreatedAt      string `json:"created_at"`
	OccurredAt     string `json:"occurred_at"`
}

func newTicketEvent(typ string, t model.Ticket, occurredAt string) TicketEvent {
	return TicketEvent{
		Type:           typ,
		TicketID:       t.ID,
		GroupID:        t.GroupID,
		EventID:        t.EventID,
		OwnerID:        t.OwnerID,
		Person:         t.Person,
		Status:         t.Status,
		IsFamilyTicket: t.IsFamilyTicket,
		CreatedAt:      t.CreatedAt,
		OccurredAt:     occurredAt,
	}
}
