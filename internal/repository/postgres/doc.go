// Package postgres implements the service repository contracts and the
// processor store against PostgreSQL using database/sql and lib/pq.
//
// All multi-row invariants live here as single atomic statements: the
// subscriber upsert, the enrollment ON CONFLICT insert, the SKIP LOCKED
// batch claim, and the partial-unique send log insert.
package postgres
