package domain

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrEventNotFound       = errors.New("event not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrTicketAlreadyUsed   = errors.New("ticket already used")
	ErrInvalidDate         = errors.New("event date must be in the future")
	ErrInvalidCapacity     = errors.New("max tickets must be greater than zero")
	ErrInvalidPrice        = errors.New("price must not be negative")
	ErrEventInactive       = errors.New("event is not active")
	ErrEventElapsed        = errors.New("event has already occurred")
	ErrSoldOut             = errors.New("event is sold out")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrNotTicketOwner      = errors.New("not the ticket owner")
	ErrTransferNotApproved = errors.New("transfer not approved")
)
