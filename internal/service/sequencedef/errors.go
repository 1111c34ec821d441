package sequencedef

import "errors"

// Sentinel errors for the sequence definition service.
var (
	ErrNotFound         = errors.New("sequence not found")
	ErrDuplicateTrigger = errors.New("another active sequence already uses this trigger key")
	ErrInvalidSequence  = errors.New("invalid sequence definition")
)
