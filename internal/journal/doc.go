// Package journal records core availability transitions in PostgreSQL.
//
// The watchdog reports transitions on the event loop; Writer queues them in a
// bounded buffer and a background goroutine inserts them in batches. When the
// buffer is full new transitions are dropped rather than blocking the loop.
package journal
