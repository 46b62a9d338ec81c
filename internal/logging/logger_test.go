package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger returns a logger writing into the given buffers.
func testLogger(out, errOut *bytes.Buffer, verbose bool) *Logger {
	return &Logger{
		mu:      &sync.Mutex{},
		out:     out,
		errOut:  errOut,
		verbose: verbose,
	}
}

func TestLoggerLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := testLogger(&out, &errOut, false)

	l.Info("processing %d items", 3)
	l.Warn("skipping %s", "patient02")
	l.Error("boom")
	l.Debug("hidden")

	assert.Contains(t, out.String(), "[INFO] processing 3 items")
	assert.Contains(t, errOut.String(), "[WARN] skipping patient02")
	assert.Contains(t, errOut.String(), "[ERROR] boom")
	assert.NotContains(t, out.String(), "hidden")
}

func TestLoggerDebugOnlyWhenVerbose(t *testing.T) {
	var out bytes.Buffer
	l := testLogger(&out, &out, true)
	l.Debug("step detail")
	assert.Contains(t, out.String(), "[DEBUG] step detail")
}

func TestWithPrefix(t *testing.T) {
	var out bytes.Buffer
	l := testLogger(&out, &out, false)

	child := l.WithPrefix("patient01")
	child.Info("started")
	assert.Contains(t, out.String(), "[patient01] started")

	grandchild := child.WithPrefix("register")
	grandchild.Info("done")
	assert.Contains(t, out.String(), "[patient01 register] done")

	// The parent prefix is unchanged.
	l.Info("batch complete")
	assert.Contains(t, out.String(), "] batch complete")
	assert.NotContains(t, out.String(), "[patient01] batch complete")
}

func TestLoggerFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mrireg.log")
	l, err := NewLogger(false, path)
	require.NoError(t, err)
	l.out = new(bytes.Buffer)
	l.errOut = l.out

	l.Info("first line")
	l.Error("second line")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first line")
	assert.Contains(t, string(data), "second line")
}

func TestDiscardIsSafe(t *testing.T) {
	l := Discard()
	l.Info("nothing")
	l.WithPrefix("x").Warn("nothing")
	assert.NoError(t, l.Close())
}
