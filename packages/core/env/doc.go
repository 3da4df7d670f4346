// Package env handles .env files and {{placeholder}} resolution for
// scenario files.
//
// It provides:
//   - Loading .env files, optionally exporting them to the process
//   - Variable interpolation using {{variable}} syntax
//   - OS environment lookups using {{$NAME}}
//   - Template function calls such as {{uuid()}} (see package builtin)
package env
