package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	for _, name := range []string{"RAW_PATH", "MODELED_DIR", "API_TOKEN", "PORT", "API_PORT", "DATABASE_URL", "OUTPUT_FILE", "MAX_LIMIT"} {
		t.Setenv(name, "")
	}

	t.Run("should use defaults", func(t *testing.T) {
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "raw_data.parquet", cfg.RawPath)
		assert.Equal(t, "modeled", cfg.ModeledDir)
		assert.Equal(t, ":8080", cfg.ListenAddr())
		assert.Empty(t, cfg.BearerToken)
		assert.Equal(t, 5000, cfg.Connector.MaxLimit)
	})

	t.Run("should force the connector output to the raw path", func(t *testing.T) {
		t.Setenv("RAW_PATH", "/data/raw.parquet")
		t.Setenv("OUTPUT_FILE", "elsewhere.parquet")
		t.Setenv("API_TOKEN", "tok")
		t.Setenv("API_PORT", "9001")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "/data/raw.parquet", cfg.Connector.OutputFile)
		assert.Equal(t, "tok", cfg.BearerToken)
		assert.Equal(t, 9001, cfg.Port)
	})

	t.Run("should prefer PORT over API_PORT", func(t *testing.T) {
		t.Setenv("PORT", "7000")
		t.Setenv("API_PORT", "9001")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.Port)
	})

	t.Run("should reject invalid values", func(t *testing.T) {
		t.Setenv("PORT", "http")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "invalid PORT")

		t.Setenv("PORT", "")
		t.Setenv("MAX_LIMIT", "-5")
		_, err = FromEnv()
		assert.ErrorContains(t, err, "invalid MAX_LIMIT")
	})
}
