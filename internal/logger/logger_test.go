package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONFile(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	root := t.TempDir()
	log, err := New(root, false, "debug")
	require.NoError(t, err)
	log.Debugw("lead delivered", "form", "contact")
	_ = log.Sync()

	files, err := filepath.Glob(filepath.Join(root, "logs", "*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"logger online"`)
	assert.Contains(t, string(raw), `"level":"debug"`)
	assert.Contains(t, string(raw), `"form":"contact"`)
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	log, err := New(t.TempDir(), false, "chatty")
	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(zap.DebugLevel))
	assert.True(t, log.Desugar().Core().Enabled(zap.InfoLevel))
}

func TestFromContext(t *testing.T) {
	l := zap.NewNop().Sugar()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
	assert.Same(t, zap.S(), FromContext(context.Background()))
}
