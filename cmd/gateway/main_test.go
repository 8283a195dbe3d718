package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type syncBuffer struct {
	bytes.Buffer
	synced int
}

func (b *syncBuffer) Sync() error {
	b.synced++
	return nil
}

func newBufferedLogger(buf *syncBuffer) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, buf, zap.InfoLevel))
}

func TestExitCodeFlushesFailure(t *testing.T) {
	var buf syncBuffer
	code := exitCode(newBufferedLogger(&buf), errors.New("listen tcp :8080: address in use"))

	assert.Equal(t, 1, code)
	assert.Equal(t, 1, buf.synced)
	assert.Contains(t, buf.String(), `"msg":"gateway stopped"`)
	assert.Contains(t, buf.String(), "address in use")
}

func TestExitCodeCleanShutdown(t *testing.T) {
	var buf syncBuffer
	assert.Equal(t, 0, exitCode(newBufferedLogger(&buf), nil))
	assert.Equal(t, 1, buf.synced)
	assert.Empty(t, buf.String())
}
