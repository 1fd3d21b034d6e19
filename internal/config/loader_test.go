package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
server:
  port: 8080
broker:
  rabbitmq:
    host: localhost
    user: guest
    password: guest
database:
  mongodb:
    uri: mongodb://localhost:27017
relay:
  buffer_capacity: 500
  worker_count: 4
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Broker.RabbitMQ.Host)
	assert.Equal(t, 500, cfg.Relay.BufferCapacity)
	assert.Equal(t, 4, cfg.Relay.WorkerCount)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 8080
broker:
  rabbitmq:
    host: rabbit
database:
  mongodb:
    uri: mongodb://localhost:27017
`))
	require.NoError(t, err)

	assert.Equal(t, 5672, cfg.Broker.RabbitMQ.Port)
	assert.Equal(t, "/", cfg.Broker.RabbitMQ.VHost)
	assert.Equal(t, 10, cfg.Broker.RabbitMQ.PrefetchCount)
	assert.Equal(t, 1000, cfg.Relay.BufferCapacity)
	assert.Equal(t, 3, cfg.Relay.WorkerCount)
	assert.Equal(t, "healthflow", cfg.Database.MongoDB.Database)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{
			name: "missing broker host",
			config: `
server:
  port: 8080
database:
  mongodb:
    uri: mongodb://localhost:27017
`,
		},
		{
			name: "missing mongodb uri",
			config: `
server:
  port: 8080
broker:
  rabbitmq:
    host: rabbit
`,
		},
		{
			name: "bad server port",
			config: `
server:
  port: 99999
broker:
  rabbitmq:
    host: rabbit
database:
  mongodb:
    uri: mongodb://localhost:27017
`,
		},
		{
			name: "negative buffer capacity",
			config: `
server:
  port: 8080
broker:
  rabbitmq:
    host: rabbit
database:
  mongodb:
    uri: mongodb://localhost:27017
relay:
  buffer_capacity: -1
`,
		},
		{
			name: "idempotency without redis",
			config: `
server:
  port: 8080
broker:
  rabbitmq:
    host: rabbit
database:
  mongodb:
    uri: mongodb://localhost:27017
idempotency:
  enabled: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config))
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BROKER_RABBITMQ_HOST", "rabbit-from-env")
	t.Setenv("RELAY_WORKER_COUNT", "7")

	cfg, err := Load(writeConfig(t, `
server:
  port: 8080
broker:
  rabbitmq:
    host: rabbit-from-file
database:
  mongodb:
    uri: mongodb://localhost:27017
`))
	require.NoError(t, err)

	assert.Equal(t, "rabbit-from-env", cfg.Broker.RabbitMQ.Host)
	assert.Equal(t, 7, cfg.Relay.WorkerCount)
}
