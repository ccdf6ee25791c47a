package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLeveled(t *testing.T) {
	l, level, err := NewLeveled("prod", "warn")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, zapcore.WarnLevel, level.Level())

	level.SetLevel(zapcore.DebugLevel)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_Errors(t *testing.T) {
	_, err := NewLogger("staging")
	require.Error(t, err)

	_, err = NewLogger("dev", "loud")
	require.Error(t, err)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestFromContextOr(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, FromContextOr(context.Background(), fallback))

	l := zap.NewExample()
	assert.Same(t, l, FromContextOr(ContextWithLogger(context.Background(), l), fallback))
}
