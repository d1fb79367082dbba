// Package services defines the business logic of the sales ledger: the
// per-message lifecycle, leaderboards, undo and the daily summary.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing texts or HTTP status codes is performed by the
// chat command layer and the HTTP handlers.
package services

import "errors"

var (
	// ErrNothingToUndo is returned by Undo when the user has no entry in the
	// current day. It is a normal outcome, not a system failure.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrDestinationNotFound is returned by a Poster when the configured
	// summary channel cannot be resolved.
	ErrDestinationNotFound = errors.New("destination channel not found")

	// ErrInvalidDayOffset is returned for day offsets outside the supported
	// range (see MaxDayOffset).
	ErrInvalidDayOffset = errors.New("invalid day offset")

	// ErrMissingUser is returned when an operation needs an acting user id.
	ErrMissingUser = errors.New("user id is required")
)
