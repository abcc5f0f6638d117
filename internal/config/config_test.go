package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EVENT_STORE", "")
	t.Setenv("DISPATCHER", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("COMMAND_MAX_ATTEMPTS", "")
	chdir(t, t.TempDir())

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, EventStoreMemory, cfg.EventStore)
	assert.Equal(t, DispatcherLocal, cfg.Dispatcher)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3, cfg.CommandMaxAttempts)
}

func TestLoad_FromEnvFile(t *testing.T) {
	t.Setenv("EVENT_STORE", "")
	t.Setenv("KAFKA_BROKERS", "")
	os.Unsetenv("EVENT_STORE")
	os.Unsetenv("KAFKA_BROKERS")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EVENT_STORE=postgres\nKAFKA_BROKERS=a:9092,b:9092\n"), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, EventStorePostgres, cfg.EventStore)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
}

func TestLoad_DefaultEnvFileInWorkingDir(t *testing.T) {
	t.Setenv("DISPATCHER", "")
	os.Unsetenv("DISPATCHER")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DISPATCHER=nats\n"), 0o600))
	chdir(t, dir)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, DispatcherNATS, cfg.Dispatcher)
}

func TestLoad_MissingNamedFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	t.Setenv("EVENT_STORE", "dynamo")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EVENT_STORE=postgres\n"), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, EventStoreDynamo, cfg.EventStore)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown event store", "EVENT_STORE", "cassandra"},
		{"unknown dispatcher", "DISPATCHER", "rabbit"},
		{"non-positive attempts", "COMMAND_MAX_ATTEMPTS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			chdir(t, t.TempDir())

			_, err := Load()

			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestInt_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 7, Int("SOME_INT", 7))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
