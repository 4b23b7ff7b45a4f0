// Package postgres implements the identity and refresh record stores on
// PostgreSQL through database/sql and the pgx driver, and owns the embedded
// goose migrations that create their schema.
package postgres
