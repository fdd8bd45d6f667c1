package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noEnvFile points -env-file at a path that does not exist.
func noEnvFile(t *testing.T) string {
	return "-env-file=" + filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{noEnvFile(t)})

	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "library.db", cfg.DBPath)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 5.0, cfg.GatewayRPS)
	assert.Equal(t, time.Hour, cfg.OverdueInterval)
	assert.False(t, cfg.SeedSample)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.PolicyPath)
}

func TestLoad_Precedence(t *testing.T) {
	// GIVEN: A .env file, an environment variable and a flag for PORT
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`
# comment
LIBRARY_DB="from-dotenv.db"
PORT=7000
`), 0o600))
	t.Setenv("PORT", "9000")
	t.Setenv("SEED_SAMPLE", "yes")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Cleanup(func() { os.Unsetenv("LIBRARY_DB") })

	// WHEN: Loading with -port
	cfg, err := Load([]string{"-env-file=" + envFile, "-port=3000", "-overdue-interval=0"})

	// THEN: Flag beats env beats .env
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "from-dotenv.db", cfg.DBPath)
	assert.True(t, cfg.SeedSample)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, time.Duration(0), cfg.OverdueInterval)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"port not a number", []string{"-port=http"}},
		{"port out of range", []string{"-port=70000"}},
		{"bad timeout", []string{"-gateway-timeout=soon"}},
		{"bad rps", []string{"-gateway-rps=fast"}},
		{"negative interval", []string{"-overdue-interval=-1m"}},
		{"bad env", []string{"-env=test"}},
		{"bad level", []string{"-log-level=loud"}},
		{"unknown flag", []string{"-verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(append(tt.args, noEnvFile(t)))
			assert.Error(t, err)
		})
	}
}

func TestValidate_AllEnvironments(t *testing.T) {
	for env, valid := range map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"DEVELOPMENT": false,
		"":            false,
	} {
		cfg := &Config{Environment: env, LogLevel: "info", Port: 8080, DBPath: "x.db"}
		if valid {
			assert.NoError(t, cfg.Validate(), env)
		} else {
			assert.Error(t, cfg.Validate(), env)
		}
	}
}
