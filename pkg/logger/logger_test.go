package logger

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"setupsync/pkg/config"
	"setupsync/pkg/progress"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"empty level defaults to info", &config.LoggingConfig{}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewWithOptions(tt.cfg, Options{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithOptions(&config.LoggingConfig{Level: "info"}, Options{Console: &buf})
	require.NoError(t, err)

	l.Debug("hidden")
	l.WithField("link", "https://example.test/setups/1").Info("Setup installed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Setup installed")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "https://example.test/setups/1")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setupsync.log")
	l, err := NewWithOptions(&config.LoggingConfig{Level: "debug", File: path}, Options{})
	require.NoError(t, err)

	l.ErrorWithFields("transfer failed", map[string]interface{}{"status": 503})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"transfer failed"`)
	assert.Contains(t, string(data), `"status":503`)
}

func TestEventWriter(t *testing.T) {
	ch := progress.NewChannel(8)
	l, err := NewWithOptions(&config.LoggingConfig{Level: "info"}, Options{Extra: []io.Writer{NewEventWriter(ch)}})
	require.NoError(t, err)

	l.WithError(errors.New("no setup files")).WarnWithFields("Archive kept", map[string]interface{}{"archive": "a.zip"})

	ev := <-ch.Events()
	assert.Equal(t, progress.KindLog, ev.Kind)
	assert.Equal(t, "warn", ev.Level)
	assert.Equal(t, "Archive kept archive=a.zip error=no setup files", ev.Message)
}

func TestEventWriterNonJSON(t *testing.T) {
	ch := progress.NewChannel(1)
	n, err := NewEventWriter(ch).Write([]byte("plain line\n"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "plain line", (<-ch.Events()).Message)
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("link", "a")
	child.WithField("attempt", 2).Info("retrying")
	tl.Info("parent")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, map[string]interface{}{"link": "a", "attempt": 2}, msgs[0].Fields)
	assert.Empty(t, msgs[1].Fields)
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()
	tl.InfoWithFields("Found setups", map[string]interface{}{"count": 3})
	tl.WithError(errors.New("boom")).Error("Run failed")

	assert.True(t, tl.HasMessage("Found setups"))
	assert.True(t, tl.HasMessageContaining("Run"))
	assert.True(t, tl.HasError())
	assert.Len(t, tl.GetMessagesByLevel("INFO"), 1)
	assert.Equal(t, "boom", tl.GetMessagesByLevel("ERROR")[0].Fields["error"])
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.WithField("a", 1).WithError(errors.New("x")).InfoWithFields("ignored", nil)
	})
}
