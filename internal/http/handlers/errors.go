// Package handlers defines HTTP-layer error codes used across all endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Every error response carries one of these codes in the
// ErrorResponse envelope, e.g.
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "handle_not_found",
//	  "message": "handle not found"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeHandleNotFound  = "handle_not_found"
	ErrCodeProfileNotFound = "profile_not_found"
	ErrCodeResolveFailed   = "resolve_failed"
)
