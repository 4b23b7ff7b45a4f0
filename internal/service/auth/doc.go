// Package auth implements the server side of the token lifecycle: credential
// verification, token issuance, refresh token rotation and session revocation.
//
// Access tokens are stateless HS256 JWTs. Refresh tokens are JWTs signed with a
// separate key and backed by a RefreshRecord, which is the only source of
// truth for whether a session is still valid.
package auth
