// Package postgres implements store.MemoryStore on PostgreSQL through the
// pgx database/sql driver. The schema ships embedded in the binary and is
// applied with goose.
package postgres
