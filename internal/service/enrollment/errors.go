package enrollment

import "errors"

// Sentinel errors for the enrollment service layer.
var (
	ErrNotFound           = errors.New("enrollment not found")
	ErrSequenceNotFound   = errors.New("sequence not found")
	ErrSubscriberNotFound = errors.New("subscriber not found")
)
