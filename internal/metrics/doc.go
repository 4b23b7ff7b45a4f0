// Package metrics owns the Prometheus collectors of the authentication
// service and the /metrics handler that exposes them.
//
// All recording methods are safe on a nil *Metrics so services can run
// without instrumentation in tests.
package metrics
