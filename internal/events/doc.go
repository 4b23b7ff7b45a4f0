// Package events carries security events from the authentication services to
// whoever needs to react to them.
//
// Services emit a SecurityEvent through an EventEmitter without knowing which
// handlers exist. The server registers a handler that logs each event and
// counts it in Prometheus, so replayed refresh tokens raise an alert.
package events
