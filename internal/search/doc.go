// Package search evaluates compiled queries against a session repository.
//
// A Service owns at most one live search. Each call takes a snapshot of the
// session list, evaluates the expression tree with batched, time-bounded
// content fetches and then re-scans the matched sessions to build results.
// Fetch failures and timeouts only drop the affected session; cancellation
// yields an empty response rather than an error.
package search
