// Package mocks provides shared test doubles for the store and service interfaces.
//
// The in-memory stores behave like the real ones, including the atomic
// conditional revoke, and are safe for concurrent use, so service and HTTP
// tests can exercise real control flow without a database. Each store also
// exposes function fields that override a method when a test needs to inject
// a failure.
//
//	identities := mocks.NewIdentityStore()
//	identities.GetByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
//	    return nil, errors.New("database down")
//	}
package mocks
