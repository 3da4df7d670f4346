package env

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDotEnv(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{"simple", "BASE_URL=http://localhost:8080", map[string]string{"BASE_URL": "http://localhost:8080"}},
		{"several keys", "A=1\nB=2\n\n\nC=3", map[string]string{"A": "1", "B": "2", "C": "3"}},
		{"double quoted", `API_KEY="secret with spaces"`, map[string]string{"API_KEY": "secret with spaces"}},
		{"double quoted escapes", `MSG="line1\nline2\t\"q\" \\"`, map[string]string{"MSG": "line1\nline2\t\"q\" \\"}},
		{"single quoted is literal", `MSG='a\nb # c'`, map[string]string{"MSG": `a\nb # c`}},
		{"comments and blanks", "# comment\n\nAPI_KEY=secret\n  # indented comment", map[string]string{"API_KEY": "secret"}},
		{"whitespace trimmed", "  API_KEY  =  secret  ", map[string]string{"API_KEY": "secret"}},
		{"equals in value", "DSN=postgres://u:p@host/db?ssl=true", map[string]string{"DSN": "postgres://u:p@host/db?ssl=true"}},
		{"inline comment", "RETRIES=2 # on CI", map[string]string{"RETRIES": "2"}},
		{"hash without space", "COLOR=#fff", map[string]string{"COLOR": "#fff"}},
		{"export prefix", "export BASE_URL=http://localhost:9090", map[string]string{"BASE_URL": "http://localhost:9090"}},
		{"empty value", "EMPTY=", map[string]string{"EMPTY": ""}},
		{"later wins", "A=1\nA=2", map[string]string{"A": "2"}},
		{"empty input", "", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars, err := ParseDotEnv(strings.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, vars)
		})
	}
}

func TestParseDotEnv_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing equals", "A=1\nJUSTAWORD", "line 2: expected KEY=value"},
		{"bad key", "1ABC=x", "line 1: expected KEY=value"},
		{"key with space", "MY KEY=x", "line 1: expected KEY=value"},
		{"unterminated double quote", `A="open`, "line 1: A: unterminated quoted value"},
		{"unterminated single quote", `A='open`, "line 1: A: unterminated quoted value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDotEnv(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("A=1\nbroken\n"), 0o644))

	_, err := LoadDotEnv(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path+": line 2")

	_, err = LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadAndExportDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "HITPROBE_DOTENV_NEW=from-file\nHITPROBE_DOTENV_SET=from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("HITPROBE_DOTENV_SET", "from-process")
	t.Setenv("HITPROBE_DOTENV_NEW", "")
	require.NoError(t, os.Unsetenv("HITPROBE_DOTENV_NEW"))

	vars, err := LoadAndExportDotEnv(path)
	require.NoError(t, err)
	assert.Len(t, vars, 2)
	assert.Equal(t, "from-file", os.Getenv("HITPROBE_DOTENV_NEW"))
	assert.Equal(t, "from-process", os.Getenv("HITPROBE_DOTENV_SET"))
}
