package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, env string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `app:
  env: ` + env + `
  logLevel: error
database:
  driver: memory
stripe:
  webhookSecret: whsec_test
auth:
  jwtSecret: test-secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	prev := configPath
	configPath = path
	t.Cleanup(func() { configPath = prev })
}

func TestTokenCommand_IssuesUserToken(t *testing.T) {
	writeConfig(t, "development")

	var out bytes.Buffer
	cmd := newTokenCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--user", "u1", "--email", "u1@example.com", "--ttl", "1h"})
	require.NoError(t, cmd.Execute())

	claims, err := auth.NewManager("test-secret", time.Hour).Validate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, auth.ScopeUser, claims.Scope)
	assert.Equal(t, "u1@example.com", claims.UserEmail)
}

func TestTokenCommand_DisabledInProduction(t *testing.T) {
	writeConfig(t, "production")

	cmd := newTokenCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--user", "u1"})
	assert.Error(t, cmd.Execute())
}

func TestTokenCommand_RequiresUser(t *testing.T) {
	writeConfig(t, "development")

	cmd := newTokenCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)
	assert.Error(t, cmd.Execute())
}
