// Package api exposes the authentication core over HTTP. Handlers decode and
// validate JSON requests, call the auth services and translate their errors
// into a small set of public responses.
package api
