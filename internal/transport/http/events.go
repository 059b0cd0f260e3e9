package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cimillas/ticket-ledger/internal/app"
	"github.com/cimillas/ticket-ledger/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

var validate = validator.New()

// EventCreator is the minimal interface needed to create an event.
type EventCreator interface {
	CreateEvent(ctx context.Context, caller domain.Account, in app.CreateEventInput) (domain.Event, error)
}

// EventReader is the minimal interface needed to look up an event.
type EventReader interface {
	Event(ctx context.Context, eventID int64) (domain.Event, error)
}

// TicketPurchaser is the minimal interface needed to sell a ticket.
type TicketPurchaser interface {
	PurchaseTicket(ctx context.Context, caller domain.Account, eventID int64, payment int64) (app.PurchaseResult, error)
}

// EventToggler is the minimal interface needed to flip an event's active flag.
type EventToggler interface {
	SetEventActive(ctx context.Context, caller domain.Account, eventID int64, active bool) error
}

// ProceedsWithdrawer is the minimal interface needed to sweep event proceeds.
type ProceedsWithdrawer interface {
	WithdrawEventProceeds(ctx context.Context, caller domain.Account, eventID int64) (int64, error)
}

// HandleCreateEvent returns an HTTP handler for event creation.
func HandleCreateEvent(svc EventCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}

		var req createEventRequest
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

		date, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidDate, "invalid date format, want RFC3339")
			return
		}

		event, err := svc.CreateEvent(r.Context(), caller, app.CreateEventInput{
			Name:         req.Name,
			Date:         date,
			Price:        req.Price,
			MaxTickets:   req.MaxTickets,
			MetadataBase: req.MetadataBase,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toEventResponse(event))
	}
}

// HandleGetEvent returns an HTTP handler for event lookup.
func HandleGetEvent(svc EventReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		event, err := svc.Event(r.Context(), eventID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toEventResponse(event))
	}
}

// HandlePurchaseTicket returns an HTTP handler for buying one ticket, with
// the payment amount attached to the request.
func HandlePurchaseTicket(svc TicketPurchaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}
		eventID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req purchaseRequest
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

		result, err := svc.PurchaseTicket(r.Context(), caller, eventID, req.Payment)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := purchaseResponse{
			TicketID: result.Ticket.ID,
			EventID:  result.Ticket.EventID,
			Owner:    string(result.Ticket.Owner),
			Refund:   result.Refund,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleSetEventActive returns an HTTP handler for the organizer's
// activation toggle.
func HandleSetEventActive(svc EventToggler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}
		eventID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req setActiveRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if err := svc.SetEventActive(r.Context(), caller, eventID, req.Active); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleWithdrawEventProceeds returns an HTTP handler for sweeping an
// event's custodied balance to its organizer.
func HandleWithdrawEventProceeds(svc ProceedsWithdrawer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}
		eventID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		amount, err := svc.WithdrawEventProceeds(r.Context(), caller, eventID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := withdrawResponse{EventID: eventID, Amount: amount, Recipient: string(caller)}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type createEventRequest struct {
	Name         string `json:"name"`
	Date         string `json:"date" validate:"required"`
	Price        int64  `json:"price"`
	MaxTickets   int    `json:"max_tickets"`
	MetadataBase string `json:"metadata_base"`
}

type eventResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Date         time.Time `json:"date"`
	Price        int64     `json:"price"`
	MaxTickets   int       `json:"max_tickets"`
	SoldTickets  int       `json:"sold_tickets"`
	Active       bool      `json:"active"`
	Organizer    string    `json:"organizer"`
	MetadataBase string    `json:"metadata_base"`
	Balance      int64     `json:"balance"`
}

func toEventResponse(event domain.Event) eventResponse {
	return eventResponse{
		ID:           event.ID,
		Name:         event.Name,
		Date:         event.Date,
		Price:        event.Price,
		MaxTickets:   event.MaxTickets,
		SoldTickets:  event.SoldTickets,
		Active:       event.Active,
		Organizer:    string(event.Organizer),
		MetadataBase: event.MetadataBase,
		Balance:      event.Balance,
	}
}

type purchaseRequest struct {
	Payment int64 `json:"payment" validate:"gte=0"`
}

type purchaseResponse struct {
	TicketID int64  `json:"ticket_id"`
	EventID  int64  `json:"event_id"`
	Owner    string `json:"owner"`
	Refund   int64  `json:"refund"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

type withdrawResponse struct {
	EventID   int64  `json:"event_id,omitempty"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
}

// pathID parses the {id} route variable, writing the error response itself
// on bad input.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidID, "invalid id")
		return 0, false
	}
	return id, true
}
