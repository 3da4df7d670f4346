// Package scenario defines hitprobe scenarios: a request plus the check
// applied to its response.
//
// Scenarios come from two places. Backend returns the built-in smoke suite
// for the GraphQL backend. Scenario files (*.probe.yaml) describe requests
// and declarative expectations:
//
//	vars:
//	  suffix: "{{timestampMs()}}"
//	scenarios:
//	  - name: create user
//	    vars:
//	      username: e2euser_{{suffix}}
//	    request:
//	      graphql:
//	        query: mutation ($u: String!) { createUser(username: $u) { id username } }
//	        variables: {u: "{{username}}"}
//	    expect:
//	      - {subject: status, op: ok}
//	      - {subject: body.data.createUser.username, value: "{{username}}"}
package scenario
