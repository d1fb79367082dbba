// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them instead of
// on messages. Every error response carries an HTTP status and one code.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "nothing_to_undo",
//	  "message": "no entries found today"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeInvalidDay        = "invalid_day"
	ErrCodeNothingToUndo     = "nothing_to_undo"
	ErrCodeLeaderboardFailed = "leaderboard_failed"
	ErrCodeUndoFailed        = "undo_failed"
)
