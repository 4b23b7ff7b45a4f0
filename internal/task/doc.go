// Package task runs periodic background work for the auth service, such as
// the retention sweep that removes expired refresh records. Tasks run on their
// own tickers and stop cleanly when the Runner is stopped.
package task
