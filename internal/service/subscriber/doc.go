// Package subscriber implements subscriber lifecycle management.
//
// The service layer contains all business logic for signup, re-subscribe,
// and unsubscribe. It depends on repository interfaces defined in this
// package and should never import from api/.
//
// Repository implementations live in repository/postgres/.
package subscriber
