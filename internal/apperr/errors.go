// Package apperr holds sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrInvalidMention marks mention-shaped tokens whose target is not a UUID.
	ErrInvalidMention = errors.New("invalid mention token")

	// ErrUnresolvedPlaceholder marks a [[resource:new:path]] token with no matching resource.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder mention")
)
