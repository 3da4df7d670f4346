// Package output renders run results.
//
// Supported output formats:
//   - console: colored terminal output, one line per scenario plus a summary
//   - json: one machine-readable document for the whole invocation
//   - junit: JUnit XML for CI test report ingestion
//   - tap: Test Anything Protocol version 13
//
// Every formatter implements Formatter. Formats that produce a single
// document (json, junit, tap) also implement Flushable and write nothing
// until Flush is called.
package output
