package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, "sql", cfg.TokenStore)
	assert.Equal(t, "sqlite", cfg.StateDriver)
	assert.Equal(t, "default", cfg.Profile)
	assert.Equal(t, 10*time.Second, cfg.PredictionWait)
	assert.Equal(t, "predictions/completed/+", cfg.MqttTopic)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("INFRA_API_URL", "http://env.example:9000/")
	t.Setenv("INFRA_PROFILE", "ops")

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "http://env.example:9000", cfg.APIURL, "末尾斜杠应去掉")
	assert.Equal(t, "ops", cfg.Profile)

	cfg, err = Load(newFlags(t, "--api-url", "http://flag.example", "--token-store", "FILE", "--prediction-wait", "3s"))
	require.NoError(t, err)
	assert.Equal(t, "http://flag.example", cfg.APIURL)
	assert.Equal(t, "file", cfg.TokenStore)
	assert.Equal(t, 3*time.Second, cfg.PredictionWait)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: http://file.example\nstate_driver: pgx\nstate_dsn: postgres://localhost/console\n"), 0o600))

	cfg, err := Load(newFlags(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, "http://file.example", cfg.APIURL)
	assert.Equal(t, "pgx", cfg.StateDriver)
	assert.Equal(t, "postgres://localhost/console", cfg.StateDSN)
}

func TestValidate(t *testing.T) {
	_, err := Load(newFlags(t, "--token-store", "redis"))
	assert.Error(t, err)

	_, err = Load(newFlags(t, "--state-driver", "mysql"))
	assert.Error(t, err)

	cfg := &Config{TokenStore: "sql", StateDriver: "sqlite", APIURL: "http://x", PredictionWait: -time.Second}
	assert.Error(t, cfg.Validate())
}
