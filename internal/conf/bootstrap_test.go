package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
data:
  database:
    source: "user:pass@tcp(127.0.0.1:3306)/farmlokal?parseTime=true"
`

// Test loading a minimal config: required field present, defaults applied.
func TestNewBootstrap_Defaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	bc, err := NewBootstrap(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", bc.Server.HTTP.Addr)
	assert.Equal(t, "127.0.0.1:6379", bc.Data.Redis.Addr)
	assert.Equal(t, time.Minute, bc.RateLimit.Window)
	assert.Equal(t, 100, bc.RateLimit.MaxRequests)
	assert.Equal(t, 5, bc.Breaker.FailureThreshold)
	assert.Equal(t, 2, bc.Breaker.SuccessThreshold)
	assert.Equal(t, 30*time.Second, bc.Breaker.Timeout)
	assert.Equal(t, 5*time.Second, bc.Upstream.OAuth.LockTTL)
	assert.Equal(t, 100*time.Millisecond, bc.Upstream.OAuth.RetryDelay)
	assert.Equal(t, 60*time.Second, bc.Upstream.OAuth.SafetyMargin)
	assert.Equal(t, "info", bc.Log.Level)
}

// Test explicit values override defaults.
func TestNewBootstrap_Overrides(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
rate_limit:
  window: 30s
  max_requests: 10
breaker:
  failure_threshold: 3
server:
  http:
    addr: ":9999"
`)

	bc, err := NewBootstrap(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, bc.RateLimit.Window)
	assert.Equal(t, 10, bc.RateLimit.MaxRequests)
	assert.Equal(t, 3, bc.Breaker.FailureThreshold)
	assert.Equal(t, ":9999", bc.Server.HTTP.Addr)
}

// Test environment variable override for the database DSN.
func TestNewBootstrap_EnvOverride(t *testing.T) {
	t.Setenv("MYSQL_DSN", "env:dsn@tcp(db:3306)/farmlokal")

	path := writeConfig(t, `
log:
  level: debug
`)

	bc, err := NewBootstrap(path)
	require.NoError(t, err)
	assert.Equal(t, "env:dsn@tcp(db:3306)/farmlokal", bc.Data.Database.Source)
	assert.Equal(t, "debug", bc.Log.Level)
}

// Test that a missing database source fails validation.
func TestNewBootstrap_MissingDSN(t *testing.T) {
	path := writeConfig(t, `
log:
  level: info
`)

	_, err := NewBootstrap(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.database.source")
}

// Test Validate rejections.
func TestValidate(t *testing.T) {
	valid := &Bootstrap{
		Data: &Data{Database: &Database{Source: "dsn"}},
	}
	assert.NoError(t, Validate(valid))

	negative := &Bootstrap{
		Data:      &Data{Database: &Database{Source: "dsn"}},
		RateLimit: &RateLimit{MaxRequests: -1},
	}
	assert.Error(t, Validate(negative))

	badKey := &Bootstrap{
		Data: &Data{Database: &Database{Source: "dsn"}},
		Auth: &Auth{Encryption: &Encryption{Key: "short"}},
	}
	assert.Error(t, Validate(badKey))

	goodKey := &Bootstrap{
		Data: &Data{Database: &Database{Source: "dsn"}},
		Auth: &Auth{Encryption: &Encryption{Key: "0123456789abcdef0123456789abcdef"}},
	}
	assert.NoError(t, Validate(goodKey))
}
