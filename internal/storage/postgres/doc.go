// Package postgres implements the job store on PostgreSQL using pgx.
//
// Status updates are guarded in SQL: an UPDATE only applies when the stored
// status is one the state machine allows, so concurrent redeliveries cannot
// move a job out of a terminal state.
package postgres
