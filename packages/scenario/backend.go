package scenario

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/assertions"
	"github.com/abdul-hamid-achik/hitprobe/packages/http"
	"github.com/google/uuid"
)

// Identity is the account a state-creating scenario registers.
type Identity struct {
	Username string
	Email    string
	Password string
}

// IDGenerator returns a fresh identity. Two calls must never collide, since
// the backend keeps every user created by previous runs.
type IDGenerator func() Identity

const defaultPassword = "password123"

// UniqueIdentity combines the current time with a random suffix, so
// identities stay distinct across runs and across parallel CI jobs.
func UniqueIdentity() Identity {
	suffix := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return Identity{
		Username: "e2euser_" + suffix,
		Email:    "e2e_" + suffix + "@example.com",
		Password: defaultPassword,
	}
}

// BuiltinSource marks scenarios defined in code.
const BuiltinSource = "builtin"

const createUserMutation = `mutation CreateUser($u: String!, $e: String!, $p: String!) { createUser(username: $u, email: $e, password: $p) { id username email } }`

var explorerPattern = regexp.MustCompile(`(?i)graphql|query`)

// Backend returns the smoke suite for the GraphQL backend: health check,
// explorer page, hello query and user creation.
func Backend(ids IDGenerator) Suite {
	if ids == nil {
		ids = UniqueIdentity
	}
	user := ids()

	graphql := func(body map[string]any) http.Request {
		return http.Request{
			Method:  "POST",
			Path:    "/graphql",
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    body,
		}
	}
	explorer := http.Request{
		Method:  "GET",
		Path:    "/graphql",
		Headers: map[string]string{"Accept": "text/html"},
	}

	return Suite{
		{
			Name:    "GET /ping returns pong",
			Request: http.Request{Method: "GET", Path: "/ping"},
			Assert: assertions.All(
				assertions.Status2xx(),
				assertions.JSONEquals(map[string]any{"message": "pong"}),
			),
			Tags:   []string{"api", "health"},
			Source: BuiltinSource,
		},
		{
			Name:    "GET /graphql serves explorer UI",
			Request: explorer,
			Assert: assertions.All(
				assertions.Status2xx(),
				assertions.BodyMatches(explorerPattern),
				assertions.BodyContains("GraphiQL"),
			),
			Tags:   []string{"api", "graphql"},
			Source: BuiltinSource,
		},
		{
			Name:    "POST /graphql hello query",
			Request: graphql(map[string]any{"query": "query { hello }"}),
			Assert: assertions.All(
				assertions.Status2xx(),
				assertions.JSONPathEquals("data.hello", "world"),
			),
			Tags:   []string{"api", "graphql"},
			Source: BuiltinSource,
		},
		{
			Name: "POST /graphql createUser mutation",
			Request: graphql(map[string]any{
				"query": createUserMutation,
				"variables": map[string]any{
					"u": user.Username,
					"e": user.Email,
					"p": user.Password,
				},
			}),
			Assert: assertions.All(
				assertions.Status2xx(),
				assertions.JSONPathFalsy("errors"),
				assertions.JSONPathEquals("data.createUser.username", user.Username),
			),
			Tags:   []string{"api", "graphql", "mutation"},
			Source: BuiltinSource,
		},
		{
			Name:    "GraphiQL page is served and contains UI",
			Request: explorer,
			Assert: assertions.All(
				assertions.Status2xx(),
				assertions.BodyMatches(explorerPattern),
			),
			Tags:   []string{"exploratory"},
			Source: BuiltinSource,
		},
	}
}
