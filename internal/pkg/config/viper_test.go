package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  name: otpreset
  server:
    cors: "http://a.test, ,http://b.test"
modules:
  reset:
    verified_ttl_seconds: 300
    attempt_window_minutes: 60
crypto:
  secret_key: "AAECAw=="
`

func TestNewViperFromBytes(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte(sampleYAML), map[string]any{
		"modules.reset.attempt_limit": 5,
		"app.name":                    "ignored-default",
	})
	require.NoError(t, err)

	assert.Equal(t, "otpreset", cfg.GetString("app.name"))
	assert.Equal(t, 5, cfg.GetInt("modules.reset.attempt_limit"))
	assert.Equal(t, 300*time.Second, cfg.GetSecond("modules.reset.verified_ttl_seconds"))
	assert.Equal(t, time.Hour, cfg.GetMinute("modules.reset.attempt_window_minutes"))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.GetArray("app.server.cors"))
	assert.Equal(t, []byte{0, 1, 2, 3}, cfg.GetBinary("crypto.secret_key"))
	assert.Empty(t, cfg.GetArray("missing.key"))
	assert.NoError(t, cfg.Close())
}

func TestNewViperFromBytes_EnvOverride(t *testing.T) {
	t.Setenv("OTPRESET_APP_NAME", "from-env")

	cfg, err := NewViperFromBytes("yaml", []byte(sampleYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.GetString("app.name"))
}

func TestNewViperFromBytes_Errors(t *testing.T) {
	_, err := NewViperFromBytes("", []byte(sampleYAML), nil)
	assert.ErrorIs(t, err, ErrConfigTypeRequired)

	_, err = NewViperFromBytes("yaml", []byte("app: [unclosed"), nil)
	assert.Error(t, err)
}
