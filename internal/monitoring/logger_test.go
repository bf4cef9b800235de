package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	Logf("session started")
	assert.Equal(t, "session started", got)

	// nil installs a no-op, never a nil func.
	got = ""
	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("dropped") })
	assert.Empty(t, got)
}

func TestLogfDefault(t *testing.T) {
	assert.NotNil(t, Logf)
	assert.NotPanics(t, func() { Logf("default logger: %d", 1) })
}
