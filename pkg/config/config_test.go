package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Run("Should poll both jobs every three seconds", func(t *testing.T) {
		cfg := Default()
		assert.Equal(t, 3*time.Second, cfg.PollInterval("parse"))
		assert.Equal(t, 3*time.Second, cfg.PollInterval("export"))
		assert.Zero(t, cfg.PollInterval("import"))
	})

	t.Run("Should resolve usernames per settings module", func(t *testing.T) {
		cfg := Default()
		cfg.CLI.UsernameParser = "alice"
		assert.Equal(t, "alice", cfg.Username("parser"))
		assert.Empty(t, cfg.Username("exporter"))
		assert.Empty(t, cfg.Username("other"))
	})
}

func TestFields(t *testing.T) {
	t.Run("Should map env vars and flags from struct tags", func(t *testing.T) {
		envMap := EnvToPath()
		assert.Equal(t, "server.url", envMap["WATCHDECK_SERVER_URL"])
		assert.Equal(t, "jobs.parse_poll_interval", envMap["WATCHDECK_PARSE_POLL_INTERVAL"])

		flagMap := FlagToPath()
		assert.Equal(t, "server.url", flagMap["server-url"])
		assert.Equal(t, "runtime.log_level", flagMap["log-level"])
		assert.NotContains(t, flagMap, "cookies")
	})

	t.Run("Should describe a leaf key", func(t *testing.T) {
		f, ok := Lookup("setup.cookies")
		require.True(t, ok)
		assert.Equal(t, "WATCHDECK_COOKIES", f.Env)
		assert.True(t, f.Sensitive)

		f, ok = Lookup("setup.parser_module")
		require.True(t, ok)
		assert.False(t, f.Sensitive)

		_, ok = Lookup("setup")
		assert.False(t, ok)
	})
}

func TestSensitiveString(t *testing.T) {
	t.Run("Should redact the cookie header when printed", func(t *testing.T) {
		s := SensitiveString("sessionid=abc; csrftoken=def")
		assert.Equal(t, "[REDACTED]", s.String())
		assert.Equal(t, "[REDACTED]", fmt.Sprint(s))
		assert.Equal(t, "sessionid=abc; csrftoken=def", s.Value())
		assert.Empty(t, SensitiveString("").String())
	})

	t.Run("Should marshal redacted and unmarshal the raw value", func(t *testing.T) {
		data, err := json.Marshal(SetupConfig{Cookies: "sid=1"})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"[REDACTED]"`)
		assert.NotContains(t, string(data), "sid=1")

		var s SensitiveString
		require.NoError(t, json.Unmarshal([]byte(`"sid=2"`), &s))
		assert.Equal(t, "sid=2", s.Value())
	})
}
