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

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Bool("strict", false, "")
	fs.String("format", "table", "")
	fs.Uint64("seed", 1, "")
	fs.Duration("latency-max", 300*time.Millisecond, "")
	return fs
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.False(t, cfg.Strict)
	assert.False(t, cfg.FullOuterJoin)
	assert.Equal(t, 100*time.Millisecond, cfg.LatencyMin)
	assert.Equal(t, 300*time.Millisecond, cfg.LatencyMax)
	assert.Equal(t, uint64(1), cfg.Seed)
	assert.Equal(t, "table", cfg.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestFileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kqlmock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
strict: true
full_outer_join: true
latency_min: 0s
latency_max: 50ms
seed: 7
format: csv
log:
  level: debug
`), 0o644))

	t.Setenv("KQLMOCK_SEED", "9")
	t.Setenv("KQLMOCK_LOG_FORMAT", "json")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--format", "json"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.True(t, cfg.Strict)
	assert.True(t, cfg.FullOuterJoin)
	assert.Equal(t, time.Duration(0), cfg.LatencyMin)
	assert.Equal(t, 50*time.Millisecond, cfg.LatencyMax)
	assert.Equal(t, uint64(9), cfg.Seed, "env beats file")
	assert.Equal(t, "json", cfg.Format, "flag beats file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestUnchangedFlagDoesNotOverride(t *testing.T) {
	t.Setenv("KQLMOCK_STRICT", "true")
	fs := testFlags()
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.True(t, cfg.Strict)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("KQLMOCK_LATENCY_MIN", "2s")
	_, err := Load("", nil)
	assert.ErrorContains(t, err, "greater than latency_max")

	t.Setenv("KQLMOCK_LATENCY_MIN", "0s")
	t.Setenv("KQLMOCK_LOG_LEVEL", "shout")
	_, err = Load("", nil)
	assert.ErrorContains(t, err, "unknown log level")
}
