package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cimillas/ticket-ledger/internal/app"
	"github.com/cimillas/ticket-ledger/internal/clock"
	"github.com/cimillas/ticket-ledger/internal/domain"
	"github.com/cimillas/ticket-ledger/internal/notify"
	"github.com/cimillas/ticket-ledger/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("routes-test-secret")

// newTestServer wires the full stack over the in-memory store, mirroring the
// composition root.
func newTestServer(t *testing.T, now time.Time) http.Handler {
	t.Helper()

	store := memory.NewStore(notify.Discard{})
	registry := app.NewTicketRegistry("registry-owner", store)
	ledger := app.NewEventLedger("ledger-owner", "event-ledger", store, registry, clock.NewFixed(now))

	require.NoError(t, registry.AddIssuer(context.Background(), "registry-owner", "event-ledger"))

	return NewRouter(ledger, registry, testSecret)
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string, account domain.Account) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if account != domain.NoAccount {
		token, err := SignIdentity(testSecret, account, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_TicketLifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	srv := newTestServer(t, now)

	// Organizer creates an event.
	rec := doRequest(t, srv, http.MethodPost, "/events",
		`{"name":"Launch Party","date":"2025-06-01T20:00:00Z","price":100,"max_tickets":2}`, "organizer")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var event eventResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&event))
	assert.Equal(t, int64(1), event.ID)
	assert.True(t, event.Active)

	// Events are publicly readable.
	rec = doRequest(t, srv, http.MethodGet, "/events/1", "", domain.NoAccount)
	require.Equal(t, http.StatusOK, rec.Code)

	// Buyer overpays and gets the difference back.
	rec = doRequest(t, srv, http.MethodPost, "/events/1/purchase", `{"payment":130}`, "buyer")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var purchase purchaseResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&purchase))
	assert.Equal(t, int64(1), purchase.TicketID)
	assert.Equal(t, "buyer", purchase.Owner)
	assert.Equal(t, int64(30), purchase.Refund)

	// Door staff cannot validate until enrolled.
	rec = doRequest(t, srv, http.MethodPost, "/tickets/1/validate", "", "staff")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, srv, http.MethodPut, "/admin/validators/staff", "", "ledger-owner")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodPost, "/tickets/1/validate", "", "staff")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var validated validateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&validated))
	assert.True(t, validated.Used)

	// The same ticket does not get in twice.
	rec = doRequest(t, srv, http.MethodPost, "/tickets/1/validate", "", "staff")
	require.Equal(t, http.StatusConflict, rec.Code)

	// Ticket state is publicly readable.
	rec = doRequest(t, srv, http.MethodGet, "/tickets/1", "", domain.NoAccount)
	require.Equal(t, http.StatusOK, rec.Code)

	var ticket ticketResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ticket))
	assert.True(t, ticket.Used)
	assert.Equal(t, "buyer", ticket.Owner)

	// Organizer sweeps the proceeds.
	rec = doRequest(t, srv, http.MethodPost, "/events/1/withdraw", "", "organizer")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payout withdrawResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payout))
	assert.Equal(t, int64(100), payout.Amount)
	assert.Equal(t, "organizer", payout.Recipient)
}

func TestRouter_TransferFlow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	srv := newTestServer(t, now)

	rec := doRequest(t, srv, http.MethodPost, "/events",
		`{"name":"Show","date":"2025-06-01T20:00:00Z","price":50,"max_tickets":10}`, "organizer")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/events/1/purchase", `{"payment":50}`, "buyer")
	require.Equal(t, http.StatusCreated, rec.Code)

	// A stranger cannot move the ticket.
	rec = doRequest(t, srv, http.MethodPost, "/tickets/1/transfer", `{"from":"buyer","to":"friend"}`, "mallory")
	require.Equal(t, http.StatusForbidden, rec.Code)

	// The owner approves a broker, who then completes the transfer.
	rec = doRequest(t, srv, http.MethodPost, "/tickets/1/approve", `{"to":"broker"}`, "buyer")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodPost, "/tickets/1/transfer", `{"from":"buyer","to":"friend"}`, "broker")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodGet, "/tickets/1", "", domain.NoAccount)
	require.Equal(t, http.StatusOK, rec.Code)

	var ticket ticketResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ticket))
	assert.Equal(t, "friend", ticket.Owner)
}

func TestRouter_Authentication(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	srv := newTestServer(t, now)

	t.Run("state changes need a token", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/events",
			`{"name":"Show","date":"2025-06-01T20:00:00Z","price":50,"max_tickets":10}`, domain.NoAccount)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("health is open", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/health", "", domain.NoAccount)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown route is a structured 404", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/nope", "", domain.NoAccount)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
