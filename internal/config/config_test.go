package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "default", cfg.Deployment)
	require.Equal(t, 100, cfg.CacheCap)
	require.Equal(t, 500, cfg.BatchMax)
	require.Equal(t, 60*time.Second, cfg.LockTTL)
	require.Equal(t, 30*time.Second, cfg.WriterPeriod)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEPLOYMENT", "eu-1")
	t.Setenv("BATCH_MAX", "50")
	t.Setenv("LOCK_TTL", "90s")
	t.Setenv("CACHE_CAP", "not-a-number")

	cfg := Load()

	require.Equal(t, "eu-1", cfg.Deployment)
	require.Equal(t, 50, cfg.BatchMax)
	require.Equal(t, 90*time.Second, cfg.LockTTL)
	require.Equal(t, 100, cfg.CacheCap, "bad int should fall back to default")
}
