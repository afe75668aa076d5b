package model

// Ticket statuses. Pending and reject belong to a lottery flow that no
// code path produces yet; they remain valid stored values.
const (
	TicketActive    = "active"
	TicketCancelled = "cancelled"
	TicketUsed      = "used"
	TicketPending   = "pending"
	TicketReject    = "reject"
	TicketPaper     = "paper"
)

// ValidTicketStatus reports whether s is a known ticket status.
func ValidTicketStatus(s string) bool {
	switch s {
	case TicketActive, TicketCancelled, TicketUsed, TicketPending, TicketReject, TicketPaper:
		return true
	}
	return false
}

// Ticket is an admission right for one event. Tickets are never deleted;
// cancellation and usage are status transitions.
//
// Fields:
//  OwnerID       : object id (or subject) of the holder.
//  Person        : party size covered by the ticket.
//  IsFamilyTicket: issued from the family priority pool.
//  CreatedAt     : ISO-8601 text in JST, kept verbatim.
type Ticket struct {
	ID             string `json:"id"`               // tickets.id
	CreatedAt      string `json:"created_at"`       // tickets.created_at
	GroupID        string `json:"group_id"`         // tickets.group_id
	EventID        string `json:"event_id"`         // tickets.event_id
	OwnerID        string `json:"owner_id"`         // tickets.owner_id
	Person         int    `json:"person"`           // tickets.person
	Status         string `json:"status"`           // tickets.status
	IsFamilyTicket bool   `json:"is_family_ticket"` // tickets.is_family_ticket
}

// TicketsNumber summarizes the stock of an event.
type TicketsNumber struct {
	Taken int `json:"taken_tickets"`
	Left  int `json:"left"`
	Stock int `json:"stock"`
}
