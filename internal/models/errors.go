package models

import "errors"

// ErrCreationNotFound is returned when an object's log has no identifiable
// creation record.
var ErrCreationNotFound = errors.New("creation not found in log")

// ErrConflictingTransaction is returned when a self-managed save is attempted
// while the session already has an active transaction.
var ErrConflictingTransaction = errors.New("conflicting transaction")

// ErrChangeSetNotFound indicates a change set lookup by ID found nothing.
var ErrChangeSetNotFound = errors.New("change set not found")
