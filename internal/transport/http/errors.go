package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidID            = "invalid_id"
	codeInvalidDate          = "invalid_date"
	codeInvalidCapacity      = "invalid_capacity"
	codeInvalidPrice         = "invalid_price"
	codeInsufficientPayment  = "insufficient_payment"
	codeEventNotFound        = "event_not_found"
	codeTicketNotFound       = "ticket_not_found"
	codeEventInactive        = "event_inactive"
	codeEventElapsed         = "event_elapsed"
	codeSoldOut              = "sold_out"
	codeTicketAlreadyUsed    = "ticket_already_used"
	codeUnauthorized         = "unauthorized"
	codeNotTicketOwner       = "not_ticket_owner"
	codeTransferNotApproved  = "transfer_not_approved"
	codeMissingIdentity      = "missing_identity"
	codeInvalidIdentity      = "invalid_identity"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps the ledger's error taxonomy to HTTP once, for every
// handler: authorization 403, not-found 404, state-conflict 409,
// input-validation 400, anything else 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, codeUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotTicketOwner):
		writeError(w, http.StatusForbidden, codeNotTicketOwner, err.Error())
	case errors.Is(err, domain.ErrTransferNotApproved):
		writeError(w, http.StatusForbidden, codeTransferNotApproved, err.Error())
	case errors.Is(err, domain.ErrEventNotFound):
		writeError(w, http.StatusNotFound, codeEventNotFound, err.Error())
	case errors.Is(err, domain.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, codeTicketNotFound, err.Error())
	case errors.Is(err, domain.ErrTicketAlreadyUsed):
		writeError(w, http.StatusConflict, codeTicketAlreadyUsed, err.Error())
	case errors.Is(err, domain.ErrEventInactive):
		writeError(w, http.StatusConflict, codeEventInactive, err.Error())
	case errors.Is(err, domain.ErrEventElapsed):
		writeError(w, http.StatusConflict, codeEventElapsed, err.Error())
	case errors.Is(err, domain.ErrSoldOut):
		writeError(w, http.StatusConflict, codeSoldOut, err.Error())
	case errors.Is(err, domain.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, codeInvalidDate, err.Error())
	case errors.Is(err, domain.ErrInvalidCapacity):
		writeError(w, http.StatusBadRequest, codeInvalidCapacity, err.Error())
	case errors.Is(err, domain.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
	case errors.Is(err, domain.ErrInsufficientPayment):
		writeError(w, http.StatusBadRequest, codeInsufficientPayment, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
