// Package retry retries an operation with exponential backoff.
//
// [Do] runs an operation up to a bounded number of attempts. It is used for
// probes whose target may still be starting, such as the application status
// endpoint right after a rollout. Errors marked with [Fatal] stop the loop.
package retry
