// Package http provides the probe client used to reach the backend under test.
//
// It wraps the standard library's http package with additional features:
//   - Base URL resolution for scenario paths
//   - Per-call timeouts through context deadlines
//   - JSON body encoding and response decoding
//   - Typed transport and protocol errors
//   - A readiness preflight (WaitFor)
package http
