package models

import "database/sql"

// QueueEntry is a row of the device-local offline_queue table.
// Times are stored as RFC 3339 text, payloads and conflicts as JSON.
type QueueEntry struct {
	Sequence      int64          `db:"seq"`
	EntryID       string         `db:"entry_id"`
	OperationType string         `db:"operation_type"`
	Payload       string         `db:"payload"`
	Attempts      int            `db:"attempts"`
	LastAttempt   sql.NullString `db:"last_attempt"`
	NextAttemptAt sql.NullString `db:"next_attempt_at"`
	Status        string         `db:"status"`
	FailureKind   string         `db:"failure_kind"`
	LastError     string         `db:"last_error"`
	Conflict      sql.NullString `db:"conflict"`
	CreatedAt     string         `db:"created_at"`
}

// StatusCount is one row of a per-status count.
type StatusCount struct {
	Status string `db:"status"`
	Count  int    `db:"n"`
}
