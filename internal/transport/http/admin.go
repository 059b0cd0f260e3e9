package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cimillas/ticket-ledger/internal/domain"
	"github.com/gorilla/mux"
)

// ValidatorAdmin is the minimal interface for validator allow-list changes.
type ValidatorAdmin interface {
	AddValidator(ctx context.Context, caller, account domain.Account) error
	RemoveValidator(ctx context.Context, caller, account domain.Account) error
}

// IssuerAdmin is the minimal interface for issuer allow-list changes.
type IssuerAdmin interface {
	AddIssuer(ctx context.Context, caller, account domain.Account) error
	RemoveIssuer(ctx context.Context, caller, account domain.Account) error
}

// RegistryAdmin is the minimal interface for registry-level administration.
type RegistryAdmin interface {
	SetBaseURI(ctx context.Context, caller domain.Account, uri string) error
	Withdraw(ctx context.Context, caller domain.Account) (int64, error)
}

// DepositTaker is the minimal interface for crediting the registry's direct
// balance.
type DepositTaker interface {
	Deposit(ctx context.Context, from domain.Account, amount int64) error
}

// HandleValidatorMembership returns an HTTP handler that adds (PUT) or
// removes (DELETE) a validator.
func HandleValidatorMembership(svc ValidatorAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}
		account := domain.Account(mux.Vars(r)["account"])
		if account == domain.NoAccount {
			writeError(w, http.StatusBadRequest, codeInvalidID, "missing account")
			return
		}

		var err error
		switch r.Method {
		case http.MethodPut:
			err = svc.AddValidator(r.Context(), caller, account)
		case http.MethodDelete:
			err = svc.RemoveValidator(r.Context(), caller, account)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleIssuerMembership returns an HTTP handler that adds (PUT) or removes
// (DELETE) an issuer.
func HandleIssuerMembership(svc IssuerAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}
		account := domain.Account(mux.Vars(r)["account"])
		if account == domain.NoAccount {
			writeError(w, http.StatusBadRequest, codeInvalidID, "missing account")
			return
		}

		var err error
		switch r.Method {
		case http.MethodPut:
			err = svc.AddIssuer(r.Context(), caller, account)
		case http.MethodDelete:
			err = svc.RemoveIssuer(r.Context(), caller, account)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleSetBaseURI returns an HTTP handler for the registry-wide metadata
// base.
func HandleSetBaseURI(svc RegistryAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}

		var req setBaseURIRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if err := svc.SetBaseURI(r.Context(), caller, req.BaseURI); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleRegistryWithdraw returns an HTTP handler that sweeps the registry's
// direct balance to its owner.
func HandleRegistryWithdraw(svc RegistryAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}

		amount, err := svc.Withdraw(r.Context(), caller)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := withdrawResponse{Amount: amount, Recipient: string(caller)}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleDeposit returns an HTTP handler for paying into the registry's
// direct balance.
func HandleDeposit(svc DepositTaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOr401(w, r)
		if !ok {
			return
		}

		var req depositRequest
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

		if err := svc.Deposit(r.Context(), caller, req.Amount); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type setBaseURIRequest struct {
	BaseURI string `json:"base_uri"`
}

type depositRequest struct {
	Amount int64 `json:"amount" validate:"gte=0"`
}
