package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

// TicketReader is the minimal interface needed to look up a ticket and
// resolve its metadata.
type TicketReader interface {
	Ticket(ctx context.Context, ticketID int64) (domain.Ticket, error)
	TicketURI(ctx context.Context, ticketID int64) (string, error)
}

// EntryValidator is the minimal interface needed to validate a ticket at
// the door.
type EntryValidator interface {
	ValidateTicket(ctx context.Context, caller domain.Account, ticketID int64) (domain.Ticket, error)
}

// TicketTransferrer is the minimal interface needed to move a ticket
// between accounts.
type TicketTransferrer interface {
	Transfer(ctx context.Context, caller, from, to domain.Account, ticketID int64) error
}

// TicketApprover is the minimal interface needed to delegate transfer rights.
type TicketApprover interface {
	Approve(ctx context.Context, caller, to domain.Account, ticketID int64) error
}

// HandleGetTicket returns an HTTP handler for ticket lookup.
func HandleGetTicket(svc TicketReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticketID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		ticket, err := svc.Ticket(r.Context(), ticketID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		uri, err := svc.TicketURI(r.Context(), ticketID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := ticketResponse{
			ID:          ticket.ID,
			Owner:       string(ticket.Owner),
			EventID:     ticket.EventID,
			Used:        ticket.Used,
			MetadataURI: uri,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleValidateTicket returns an HTTP handler for entry-check validation.
func HandleValidateTicket(svc EntryValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}
		ticketID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		ticket, err := svc.ValidateTicket(r.Context(), caller, ticketID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := validateResponse{TicketID: ticket.ID, EventID: ticket.EventID, Used: ticket.Used}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleTransferTicket returns an HTTP handler for ownership transfer.
func HandleTransferTicket(svc TicketTransferrer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}
		ticketID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req transferRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, err.Error())
			return
		}

		err := svc.Transfer(r.Context(), caller, domain.Account(req.From), domain.Account(req.To), ticketID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleApproveTicket returns an HTTP handler for transfer delegation.
func HandleApproveTicket(svc TicketApprover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}
		ticketID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req approveRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, err.Error())
			return
		}

		if err := svc.Approve(r.Context(), caller, domain.Account(req.To), ticketID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type ticketResponse struct {
	ID          int64  `json:"id"`
	Owner       string `json:"owner"`
	EventID     int64  `json:"event_id"`
	Used        bool   `json:"used"`
	MetadataURI string `json:"metadata_uri"`
}

type validateResponse struct {
	TicketID int64 `json:"ticket_id"`
	EventID  int64 `json:"event_id"`
	Used     bool  `json:"used"`
}

type transferRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

type approveRequest struct {
	To string `json:"to" validate:"required"`
}
