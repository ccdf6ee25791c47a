package debug

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyike/FinCortex/config"
)

func TestEinoDebuggerDisabled(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	d := NewEinoDebugger(cfg, nil)

	assert.False(t, d.IsEnabled())
	assert.Empty(t, d.GetDebugURL())
	assert.NoError(t, d.Initialize(context.Background()))
}

func TestEinoDebuggerURL(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.EinoDebugEnabled = true
	d := NewEinoDebugger(cfg, nil)

	assert.True(t, d.IsEnabled())
	assert.Equal(t, "http://localhost:52538", d.GetDebugURL())
}
