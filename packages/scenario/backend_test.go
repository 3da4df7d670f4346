package scenario

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/hitprobe/packages/http"
	"github.com/abdul-hamid-achik/hitprobe/packages/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runOnce(t *testing.T, client *http.Client, sc *Scenario) error {
	t.Helper()
	resp, err := client.Send(context.Background(), &sc.Request, 0)
	require.NoError(t, err, sc.Name)
	return sc.Assert(resp)
}

func TestBackend_PassesAgainstFake(t *testing.T) {
	server := httptest.NewServer(mock.NewServer())
	defer server.Close()
	client := http.NewClient(http.WithBaseURL(server.URL))

	suite := Backend(nil)
	require.NoError(t, suite.Validate())
	assert.Len(t, suite, 5)

	for _, sc := range suite {
		t.Run(sc.Name, func(t *testing.T) {
			assert.NoError(t, runOnce(t, client, sc))
			assert.Equal(t, BuiltinSource, sc.Source)
		})
	}
}

func TestBackend_DuplicateUserFails(t *testing.T) {
	server := httptest.NewServer(mock.NewServer())
	defer server.Close()
	client := http.NewClient(http.WithBaseURL(server.URL))

	fixed := func() Identity {
		return Identity{Username: "same", Email: "same@example.com", Password: "password123"}
	}
	first := Backend(fixed)[3]
	second := Backend(fixed)[3]

	require.NoError(t, runOnce(t, client, first))
	err := runOnce(t, client, second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body.errors")
}

func TestBackend_UsesGeneratedIdentity(t *testing.T) {
	calls := 0
	ids := func() Identity {
		calls++
		return Identity{Username: "u1", Email: "u1@example.com", Password: "password123"}
	}

	suite := Backend(ids)
	assert.Equal(t, 1, calls)

	body := suite[3].Request.Body.(map[string]any)
	assert.Equal(t, map[string]any{"u": "u1", "e": "u1@example.com", "p": "password123"}, body["variables"])
	assert.Contains(t, body["query"], "createUser(username: $u, email: $e, password: $p)")
}

func TestUniqueIdentity(t *testing.T) {
	a, b := UniqueIdentity(), UniqueIdentity()

	assert.NotEqual(t, a.Username, b.Username)
	assert.True(t, strings.HasPrefix(a.Username, "e2euser_"))
	assert.True(t, strings.HasSuffix(a.Email, "@example.com"))
	assert.Equal(t, "password123", a.Password)
}
