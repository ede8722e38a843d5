package runlog

import (
	"crypto/tls"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hay-kot/boatpub/internal/broker"
	"github.com/hay-kot/boatpub/internal/publisher"
)

func TestFromReport(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	opts := broker.Options{
		Host:     "broker.example.com",
		Port:     8883,
		ClientID: "publish-7",
		TLS:      &tls.Config{MinVersion: tls.VersionTLS12},
		QoS:      1,
	}
	report := publisher.Report{
		Requested:  500,
		Attempted:  500,
		Accepted:   498,
		Rejected:   2,
		Acks:       broker.AckSummary{Acknowledged: 497, Unacknowledged: 1},
		State:      publisher.StateStopped,
		StartedAt:  start,
		FinishedAt: start.Add(250 * time.Second),
	}

	e := FromReport("abc123", opts, "/boat/velocity", report, nil)

	assert.Equal(t, "abc123", e.ID)
	assert.Equal(t, "broker.example.com:8883", e.Broker)
	assert.Equal(t, "publish-7", e.ClientID)
	assert.True(t, e.TLS)
	assert.Equal(t, 1, e.QoS)
	assert.Equal(t, 498, e.Accepted)
	assert.Equal(t, 497, e.Acknowledged)
	assert.Equal(t, 1, e.Unacknowledged)
	assert.Equal(t, 250*time.Second, e.Duration())
	assert.True(t, e.Failed())
	assert.Empty(t, e.Error)
}

func TestFromReport_ConnectError(t *testing.T) {
	runErr := &broker.ConnectError{Kind: broker.KindRejected, Broker: "localhost:1883", Code: 5}
	report := publisher.Report{Requested: 500, State: publisher.StateStopped}

	e := FromReport("def456", broker.Options{Host: "localhost", Port: 1883}, "/boat/velocity", report, runErr)

	assert.Equal(t, broker.KindRejected, e.ErrorKind)
	assert.Contains(t, e.Error, "code 5")
	assert.Zero(t, e.Attempted)
	assert.True(t, e.Failed())
}

func TestEntry_Failed(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{"clean run", Entry{Accepted: 500}, false},
		{"rejected publishes", Entry{Accepted: 499, Rejected: 1}, true},
		{"startup error", Entry{Error: errors.New("boom").Error()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Failed())
		})
	}
}
