package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("PG_LOCK_TIMEOUT", "750ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "billtrack_session", cfg.SessionCookie)
	require.False(t, cfg.IsProduction())

	opts := cfg.PoolOptions()
	require.Equal(t, int32(10), opts.MaxConns)
	require.Equal(t, 10*time.Second, opts.StatementTimeout)
	require.Equal(t, 750*time.Millisecond, opts.LockTimeout)
	require.Equal(t, "127.0.0.1:6379", cfg.RedisOptions().Addr)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "c")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestParseFlag(t *testing.T) {
	for raw, want := range map[string]bool{"1": true, "true": true, "0": false, "": false, "yes": false} {
		require.Equal(t, want, parseFlag(raw), raw)
	}
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLevel(&Config{LogLevel: "debug"}).String())
	require.Equal(t, "WARN", parseLevel(&Config{LogLevel: "WARNING"}).String())
	require.Equal(t, "INFO", parseLevel(&Config{LogLevel: "bogus"}).String())
	require.Equal(t, "INFO", parseLevel(nil).String())
}
