package domain

import "errors"

var (
	// ErrUnavailable marks a value that a provider could not supply this
	// cycle (quote, close, positions). It is never fatal; callers treat
	// the value as absent.
	ErrUnavailable = errors.New("data unavailable")

	// ErrOrderInFlight is returned when a decision is suppressed because a
	// prior order for the same instrument has not reached a terminal
	// status yet.
	ErrOrderInFlight = errors.New("order already in flight for instrument")

	ErrInvalidOrder = errors.New("invalid order parameters")
)
