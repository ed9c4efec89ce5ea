// Package core defines the fundamental types and errors for InboxPilot.
package core

import "errors"

// Core errors that can occur across the engine. None of these abort an
// evaluation run: malformed configuration falls back to defaults, bad rules
// resolve to non-match, and persistence failures are isolated per rule and
// per email.
var (
	// Configuration errors
	ErrMalformedConfig = errors.New("malformed configuration")
	ErrMalformedRule   = errors.New("malformed rule definition")
	ErrConditionDepth  = errors.New("condition tree too deep")

	// Storage errors
	ErrMigrationFailed = errors.New("migration failed")
	ErrRecordNotFound  = errors.New("record not found")
	ErrDuplicateLink   = errors.New("link already exists for project and email")
)
