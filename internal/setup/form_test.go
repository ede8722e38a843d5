package setup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/boatpub/internal/core/config"
)

func TestFieldTitle(t *testing.T) {
	assert.Equal(t, "Topic *", fieldTitle("Topic", true))
	assert.Equal(t, "Username", fieldTitle("Username", false))
}

func TestRequiredValidator(t *testing.T) {
	v := requiredValidator("Broker host")

	assert.NoError(t, v("localhost"))
	assert.EqualError(t, v(""), "Broker host is required")
	assert.EqualError(t, v("   "), "Broker host is required")
}

func TestValidators(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	tests := []struct {
		name    string
		fn      func(string) error
		input   string
		wantErr bool
	}{
		{"port empty", portValidator, "", false},
		{"port valid", portValidator, "8883", false},
		{"port zero", portValidator, "0", true},
		{"port too large", portValidator, "70000", true},
		{"port text", portValidator, "mqtt", true},
		{"count valid", positiveIntValidator, "500", false},
		{"count zero", positiveIntValidator, "0", true},
		{"duration valid", durationValidator, "500ms", false},
		{"duration zero", durationValidator, "0s", false},
		{"duration negative", durationValidator, "-1s", true},
		{"duration text", durationValidator, "half a second", true},
		{"file empty", fileValidator, "", false},
		{"file exists", fileValidator, file, false},
		{"file missing", fileValidator, filepath.Join(dir, "nope.pem"), true},
		{"file is dir", fileValidator, dir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnswers_RoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Broker.Host = "broker.local"
	cfg.Broker.TLS.Enabled = true

	a := AnswersFromConfig(&cfg)
	assert.Equal(t, "", a.Port)
	assert.Equal(t, "500ms", a.Interval)

	a.Port = "8884"
	a.Count = "10"
	a.QoS = "1"

	require.NoError(t, a.Apply(&cfg))
	assert.Equal(t, "broker.local", cfg.Broker.Host)
	assert.Equal(t, 8884, cfg.Broker.Port)
	assert.Equal(t, 10, cfg.Publish.Count)
	assert.Equal(t, 500*time.Millisecond, cfg.Publish.Interval)
	assert.Equal(t, 1, cfg.Publish.QoS)
}

func TestAnswers_ApplyInvalid(t *testing.T) {
	cfg := config.DefaultConfig()
	a := AnswersFromConfig(&cfg)
	a.Interval = "soon"

	assert.Error(t, a.Apply(&cfg))
}
