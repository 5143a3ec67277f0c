package log

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	originalLogger := logger
	defer func() {
		logger = originalLogger
	}()

	t.Run("text format", func(t *testing.T) {
		err := Init(Config{Level: "info", Format: "text", Output: "stdout"})
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, logger.Level)
		_, ok := logger.Formatter.(*logrus.TextFormatter)
		assert.True(t, ok)
	})

	t.Run("json format", func(t *testing.T) {
		err := Init(Config{Level: "debug", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, logger.Level)
		_, ok := logger.Formatter.(*logrus.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		err := Init(Config{Level: "verbose", Format: "text"})
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, logger.Level)
	})

	t.Run("file output creates directory", func(t *testing.T) {
		dir := t.TempDir()
		err := Init(Config{
			Level:    "info",
			Format:   "json",
			Output:   "file",
			Filename: filepath.Join(dir, "nested", "storefront.log"),
			MaxSize:  1,
		})
		require.NoError(t, err)
		assert.DirExists(t, filepath.Join(dir, "nested"))
	})
}

func TestWithFields(t *testing.T) {
	originalLogger := logger
	defer func() {
		logger = originalLogger
	}()

	require.NoError(t, Init(Config{Level: "info", Format: "json"}))
	var buf bytes.Buffer
	SetOutput(&buf)

	WithFields(Fields{"user_id": "42", "reason": "order_update"}).Warn("Direct message failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "42", entry["user_id"])
	assert.Equal(t, "order_update", entry["reason"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "Direct message failed", entry["msg"])
}

func TestGetLoggerWithoutInit(t *testing.T) {
	l := GetLogger()
	assert.NotNil(t, l)
	assert.Same(t, l, WithFields(Fields{"k": "v"}).Logger)
}

func TestSetLevel(t *testing.T) {
	originalLogger := logger
	defer func() {
		logger = originalLogger
	}()
	logger = logrus.New()

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	assert.Error(t, SetLevel("verbose"))
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}
