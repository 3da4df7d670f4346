// Package runner executes scenarios against the backend under test.
//
// Each scenario moves through an explicit state machine:
//
//	Pending -> Running -> Passed
//	                   -> Failed
//	                   -> Retrying -> Running ...
//
// Scenarios run in a bounded pool of worker slots. Attempts within a
// scenario are strictly sequential and separated by an exponential backoff.
// Transport, protocol and assertion failures are retried up to the retry
// budget. Cancelling the run context, or the first failure under fail-fast,
// finalizes every remaining scenario as failed; no result is left pending.
package runner
