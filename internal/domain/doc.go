// Package domain contains the entities of the authentication core: identities,
// the refresh records issued to them, and the explicit validation functions that
// guard registration and login input. It has no knowledge of storage or transport.
package domain
