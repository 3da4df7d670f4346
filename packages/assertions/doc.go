// Package assertions evaluates responses for hitprobe scenarios.
//
// Code-defined scenarios compose helper checks (Status2xx, JSONEquals,
// JSONPathEquals, BodyContains, ...). Scenario files use declarative
// Expectations evaluated by an Evaluator:
//   - Status checks (status ok, status equals 201)
//   - Header validation (header Content-Type contains application/json)
//   - Body checks (body icontains graphql)
//   - gjson path queries (body.data.createUser.username equals alice)
//   - JSON Schema validation (body schema ./user.schema.json)
//
// Every failure is reported as an *AssertionError carrying expected and
// actual values.
package assertions
