package http

import (
	"net/http"

	"github.com/cimillas/ticket-ledger/internal/app"
	"github.com/gorilla/mux"
)

// NewRouter mounts every ledger and registry operation. State-changing
// routes require a verified caller identity; queries and health do not.
func NewRouter(ledger *app.EventLedger, registry *app.TicketRegistry, secret []byte) http.Handler {
	r := mux.NewRouter()

	auth := func(h http.Handler) http.Handler {
		return RequireIdentity(secret, h)
	}

	r.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)

	r.Handle("/events", auth(HandleCreateEvent(ledger))).Methods(http.MethodPost)
	r.Handle("/events/{id}", HandleGetEvent(ledger)).Methods(http.MethodGet)
	r.Handle("/events/{id}/purchase", auth(HandlePurchaseTicket(ledger))).Methods(http.MethodPost)
	r.Handle("/events/{id}/active", auth(HandleSetEventActive(ledger))).Methods(http.MethodPost)
	r.Handle("/events/{id}/withdraw", auth(HandleWithdrawEventProceeds(ledger))).Methods(http.MethodPost)

	r.Handle("/tickets/{id}", HandleGetTicket(registry)).Methods(http.MethodGet)
	r.Handle("/tickets/{id}/validate", auth(HandleValidateTicket(ledger))).Methods(http.MethodPost)
	r.Handle("/tickets/{id}/transfer", auth(HandleTransferTicket(registry))).Methods(http.MethodPost)
	r.Handle("/tickets/{id}/approve", auth(HandleApproveTicket(registry))).Methods(http.MethodPost)

	r.Handle("/admin/validators/{account}", auth(HandleValidatorMembership(ledger))).Methods(http.MethodPut, http.MethodDelete)
	r.Handle("/admin/issuers/{account}", auth(HandleIssuerMembership(registry))).Methods(http.MethodPut, http.MethodDelete)
	r.Handle("/admin/base-uri", auth(HandleSetBaseURI(registry))).Methods(http.MethodPut)
	r.Handle("/admin/withdraw", auth(HandleRegistryWithdraw(registry))).Methods(http.MethodPost)
	r.Handle("/deposit", auth(HandleDeposit(registry))).Methods(http.MethodPost)

	r.NotFoundHandler = NotFoundHandler()
	return r
}
