// Package testutils wires the auth services over in-memory stores for tests
// that need the full HTTP surface, and provides a controllable clock.
package testutils
