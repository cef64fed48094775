package logging

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	t.Run("should only log to stderr without LOG_FILE", func(t *testing.T) {
		t.Setenv("LOG_FILE", "")
		closer, err := Setup()
		require.NoError(t, err)
		assert.NoError(t, closer.Close())
	})

	t.Run("should append to the log file by default", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "connector.log")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o644))
		t.Setenv("LOG_FILE", path)
		t.Setenv("LOG_FILE_MODE", "")

		closer, err := Setup()
		require.NoError(t, err)
		log.Print("hello")
		require.NoError(t, closer.Close())
		log.SetOutput(os.Stderr)

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(b), "previous")
		assert.Contains(t, string(b), "hello")
	})

	t.Run("should truncate in w mode and create parent dirs", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "connector.log")
		t.Setenv("LOG_FILE", path)
		t.Setenv("LOG_FILE_MODE", "w")

		closer, err := Setup()
		require.NoError(t, err)
		log.Print("first")
		require.NoError(t, closer.Close())

		closer, err = Setup()
		require.NoError(t, err)
		log.Print("second")
		require.NoError(t, closer.Close())
		log.SetOutput(os.Stderr)

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(b), "first")
		assert.Contains(t, string(b), "second")
	})
}
