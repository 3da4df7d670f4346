package mock

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   any            `json:"data,omitempty"`
	Errors []graphQLError `json:"errors,omitempty"`
}

const graphiQLPage = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>GraphiQL</title>
  <link href="https://unpkg.com/graphiql/graphiql.min.css" rel="stylesheet">
</head>
<body style="margin: 0;">
  <div id="graphiql" style="height: 100vh;"></div>
  <script src="https://unpkg.com/graphiql/graphiql.min.js"></script>
  <script>
    const fetcher = GraphiQL.createFetcher({ url: '/graphql' });
    ReactDOM.render(React.createElement(GraphiQL, { fetcher, defaultQuery: 'query { hello }' }),
      document.getElementById('graphiql'));
  </script>
</body>
</html>
`

var (
	createUserArgs = regexp.MustCompile(`createUser\s*\(([^)]*)\)`)
	argPattern     = regexp.MustCompile(`(\w+)\s*:\s*(\$\w+|"(?:[^"\\]|\\.)*")`)
	helloField     = regexp.MustCompile(`\bhello\b`)
)

func (s *Server) handleGraphQLGet(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("query"); q != "" {
		s.execute(w, graphQLRequest{Query: q})
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(graphiQLPage))
		return
	}
	writeJSON(w, http.StatusBadRequest, graphQLResponse{
		Errors: []graphQLError{{Message: "Must provide query string."}},
	})
}

func (s *Server) handleGraphQLPost(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, graphQLResponse{
			Errors: []graphQLError{{Message: "invalid request body: " + err.Error()}},
		})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, graphQLResponse{
			Errors: []graphQLError{{Message: "Must provide query string."}},
		})
		return
	}
	s.execute(w, req)
}

// execute understands exactly two operations: query { hello } and the
// createUser mutation. Anything else is reported as a GraphQL error.
func (s *Server) execute(w http.ResponseWriter, req graphQLRequest) {
	query := strings.TrimSpace(req.Query)

	if m := createUserArgs.FindStringSubmatch(query); m != nil {
		args := resolveArgs(m[1], req.Variables)
		user, err := s.createUser(args["username"], args["email"], args["password"])
		if err != nil {
			writeJSON(w, http.StatusOK, graphQLResponse{
				Data:   map[string]any{"createUser": nil},
				Errors: []graphQLError{{Message: err.Error()}},
			})
			return
		}
		writeJSON(w, http.StatusOK, graphQLResponse{
			Data: map[string]any{"createUser": user},
		})
		return
	}

	if helloField.MatchString(query) {
		writeJSON(w, http.StatusOK, graphQLResponse{
			Data: map[string]any{"hello": "world"},
		})
		return
	}

	writeJSON(w, http.StatusOK, graphQLResponse{
		Errors: []graphQLError{{Message: "Cannot query field in document: " + truncate(query, 60)}},
	})
}

func resolveArgs(raw string, variables map[string]any) map[string]string {
	args := make(map[string]string)
	for _, m := range argPattern.FindAllStringSubmatch(raw, -1) {
		name, value := m[1], m[2]
		if strings.HasPrefix(value, "$") {
			if v, ok := variables[value[1:]]; ok {
				if str, ok := v.(string); ok {
					args[name] = str
				}
			}
			continue
		}
		if unquoted, err := strconv.Unquote(value); err == nil {
			args[name] = unquoted
		}
	}
	return args
}

type userError string

func (e userError) Error() string { return string(e) }

func (s *Server) createUser(username, email, password string) (*User, error) {
	switch {
	case username == "":
		return nil, userError("username is required")
	case !strings.Contains(email, "@"):
		return nil, userError("a valid email is required")
	case len(password) < 8:
		return nil, userError("password must be at least 8 characters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return nil, userError("username " + strconv.Quote(username) + " is already taken")
	}

	s.nextID++
	user := &User{
		ID:       strconv.Itoa(s.nextID),
		Username: username,
		Email:    email,
	}
	s.users[username] = user
	return user, nil
}

// Users returns the number of users created so far.
func (s *Server) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
