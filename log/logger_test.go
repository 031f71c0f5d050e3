package log

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerWritesToSink(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stderr)

	l := New("gi-test")
	l.Infof("planned %d directions", 20)
	l.Warnf("readback skipped")

	out := buf.String()
	assert.Contains(t, out, "[gi-test]")
	assert.Contains(t, out, "planned 20 directions")
	assert.Contains(t, out, "readback skipped")
}

func TestDebugIsGatedPerLogger(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stderr)

	l := New("gi-debug")
	l.Debugf("hidden")
	assert.NotContains(t, buf.String(), "hidden")

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.SetDebug(true)
	assert.False(t, l.DebugEnabled())
	l.Errorf("nothing %s", "happens")
}
