// Package history stores run summaries in a local SQLite database so runs
// can be compared over time and notifications can detect recoveries.
package history
