//go:build integration

// Package testdb provides helpers for tests that run against a real PostgreSQL
// database. Tests using it are built only with the integration tag and skip
// themselves when no database URL is configured.
//
// Two isolation styles are supported. WithTx runs a test inside a transaction
// that is always rolled back, which suits single-connection tests. Tests that
// need several connections, such as races between concurrent revocations,
// commit their rows and remove them with CleanupIdentity.
package testdb
