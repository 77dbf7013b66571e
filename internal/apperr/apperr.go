// Package apperr defines the error taxonomy communicated to clients over
// the wire protocol (§7). Handlers classify a failure against the store
// or registry themselves (errors.Is against store.ErrNotFound etc.) and
// pass the resulting Code straight to ackError/sendError; there is no
// wrapped-error carrier type, since nothing in the tree needs to thread
// a Code through an error return.
package apperr

// Code is a machine-readable error code sent to the client.
type Code string

const (
	Unauthorized Code = "UNAUTHORIZED"
	Forbidden    Code = "FORBIDDEN"
	Invalid      Code = "INVALID_MESSAGE"
	NotFound     Code = "NOT_FOUND"
	Conflict     Code = "CONFLICT"
	RateLimited  Code = "RATE_LIMITED"
	Internal     Code = "INTERNAL"
)
