// Package storage provides the local key-value persistence used for the
// roster.
//
// Drivers:
//   - "file": a single JSON object document, rewritten atomically
//   - "sqlite": a kv table in a SQLite database file
//   - "memory": process-local map (tests, ephemeral runs)
package storage
