// Package cmd implements the hitprobe command line.
//
// Commands:
//   - run: execute scenarios against a backend, once or in watch mode
//   - list: show the scenarios a run would select
//   - validate: check scenario files without sending requests
//   - mock: serve a local backend for trying hitprobe out
//   - history: show runs recorded with --history-db
//
// Exit codes are listed in exitcodes.go.
package cmd
