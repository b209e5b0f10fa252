package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger, file, err := New().FromWriter(&buf).Level("warn").Make()
	require.NoError(t, err)
	assert.Nil(t, file)

	logger.Info().Msg("quiet")
	logger.Warn().Str("action", "restore").Msg("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, `"action":"restore"`)
}

func TestFromPathAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.log")
	logger, file, err := New().FromPath(path).Make()
	require.NoError(t, err)
	require.NotNil(t, file)
	logger.Info().Msg("written")
	require.NoError(t, file.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
}
