package logging

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    log.Level
		wantErr bool
	}{
		{in: "", want: log.InfoLevel},
		{in: "debug", want: log.DebugLevel},
		{in: "INFO", want: log.InfoLevel},
		{in: "warn", want: log.WarnLevel},
		{in: "warning", want: log.WarnLevel},
		{in: "error", want: log.ErrorLevel},
		{in: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Output: &buf, Level: "warn"})
	require.NoError(t, err)

	logger.Info("cache hit", "key", "name:sol ring")
	logger.Warn("cache write dropped", "namespace", "cards")

	out := buf.String()
	assert.NotContains(t, out, "cache hit")
	assert.Contains(t, out, "cache write dropped")
	assert.Contains(t, out, "namespace=cards")
}

func TestNewVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Output: &buf, Level: "error", Verbose: true})
	require.NoError(t, err)

	logger.Debug("loading deck", "name", "Omnath")
	assert.Contains(t, buf.String(), "loading deck")
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "nope"})
	assert.Error(t, err)
}
