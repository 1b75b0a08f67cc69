// Package storage opens the bot's sqlite database.
//
// It owns connection setup only: pragmas, connection limits and schema
// migration. Domain-level persistence (the reminder store) lives in
// internal/reminder and works against the *sql.DB returned here.
package storage
