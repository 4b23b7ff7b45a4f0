// Package store defines the persistence contracts of the authentication core:
// the identity store and the refresh record store. The refresh record store is the
// single source of truth for session validity, so its implementations must provide
// an atomic conditional revoke.
package store
