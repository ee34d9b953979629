// Package retry runs backend requests with bounded attempts and exponential
// backoff.
//
// Do wraps a single-attempt function and always returns an Outcome: either the
// value produced by a successful attempt or the terminal failure once attempts
// run out, a non-retryable error occurs, or the context is cancelled. The wait
// before attempt i+1 is BaseDelay * 2^i, capped at MaxDelay, unless the backend
// supplied a Retry-After header.
//
// StatusError is the typed HTTP failure both backend clients return for
// non-2xx responses. RetryAll and RetryServerErrors are the two classifiers
// used by the text and image pipelines respectively.
package retry
