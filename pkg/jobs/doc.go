// Package jobs runs periodic maintenance work inside the service process.
//
// Each registered job gets its own goroutine that sleeps until the
// schedule's next fire time. Overlapping runs are skipped, panics are
// recovered and logged, and an optional Locker keeps replicas from running
// the same job concurrently.
package jobs
