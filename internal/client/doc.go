// Package client is the Go client for the auth API. Its Coordinator makes
// sure that when several in-flight calls discover an expired access token at
// the same time, exactly one refresh runs and every call is retried once with
// the new token.
package client
