// Package database provides the PostgreSQL connection pool used by the
// availability journal.
package database
