// Package enrollment implements sequence enrollment lifecycle management.
//
// Enroll is the trigger-input entry point called from request handlers
// right after a subscriber row is created or updated. It never fails the
// surrounding request over sequencing concerns: a missing sequence is a
// skipped outcome, an existing enrollment is returned unchanged.
//
// Repository implementations live in repository/postgres/.
package enrollment
