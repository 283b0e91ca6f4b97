package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, "postgres", cfg.StoreDriver)
	require.Equal(t, time.Minute, cfg.PurgeInterval)
	require.Equal(t, 0, cfg.MergeWriteConcurrency)
	require.Equal(t, 16, cfg.PurgeConcurrency)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TIMER_STORE_DRIVER", "memory")
	t.Setenv("TIMER_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TIMER_MERGE_WRITE_CONCURRENCY", "8")
	t.Setenv("TIMER_PURGE_INTERVAL", "30s")
	t.Setenv("TIMER_PURGE_CONCURRENCY", "4")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 8, cfg.MergeWriteConcurrency)
	require.Equal(t, 30*time.Second, cfg.PurgeInterval)
	require.Equal(t, 4, cfg.PurgeConcurrency)
}

func TestLoadKeepsPurgeAndMergeConcurrencyApart(t *testing.T) {
	t.Setenv("TIMER_MERGE_WRITE_CONCURRENCY", "0")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 0, cfg.MergeWriteConcurrency)
	require.Equal(t, 16, cfg.PurgeConcurrency)
}

func TestLoadRejectsNonPositivePurgeConcurrency(t *testing.T) {
	t.Setenv("TIMER_PURGE_CONCURRENCY", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("TIMER_STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
}
