// Package builtin provides the template functions available in scenario files.
//
// Available functions:
//   - now(): current UTC time in RFC3339
//   - timestamp(), timestampMs(): Unix time in seconds or milliseconds
//   - uuid(), shortId(): random identifiers
//   - randomString(n), randomEmail(): random values for unique test data
//   - lower(s): lower-cases its argument
//
// Functions are used as {{uuid()}} inside scenario variables, paths,
// headers and bodies.
package builtin
