package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/boatpub/internal/broker"
	"github.com/hay-kot/boatpub/internal/core/runlog"
)

func seedHistory(t *testing.T, flags *Flags) {
	t.Helper()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []runlog.Entry{
		{ID: "ok0001", Broker: "127.0.0.1:1883", Topic: "/boat/velocity", Requested: 5, Attempted: 5, Accepted: 5, StartedAt: start, FinishedAt: start.Add(3 * time.Second)},
		{ID: "bad002", Broker: "127.0.0.1:8883", Topic: "/boat/velocity", Requested: 5, Error: "connect 127.0.0.1:8883: certificate validation failed", ErrorKind: broker.KindCertificate, StartedAt: start.Add(time.Minute), FinishedAt: start.Add(time.Minute)},
		{ID: "ok0003", Broker: "127.0.0.1:1883", Topic: "/boat/velocity", Requested: 5, Attempted: 5, Accepted: 5, StartedAt: start.Add(2 * time.Minute), FinishedAt: start.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, flags.RunStore.Save(context.Background(), e))
	}
}

func TestHistoryCmd_List(t *testing.T) {
	flags := testFlags(t)
	seedHistory(t, flags)

	var out bytes.Buffer
	app := testApp(t, NewHistoryCmd(flags).Register, &out)
	require.NoError(t, app.Run(testContext(&out), []string{"boatpub", "history"}))

	text := out.String()
	assert.Contains(t, text, "ID")
	assert.Contains(t, text, "ok0001")
	assert.Contains(t, text, "certificate")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("ok0003")), bytes.Index(out.Bytes(), []byte("ok0001")), "newest first")
}

func TestHistoryCmd_JSON(t *testing.T) {
	flags := testFlags(t)
	seedHistory(t, flags)

	var out bytes.Buffer
	app := testApp(t, NewHistoryCmd(flags).Register, &out)
	require.NoError(t, app.Run(testContext(&out), []string{"boatpub", "history", "--json"}))

	var entries []runlog.Entry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "ok0003", entries[0].ID)
}

func TestHistoryCmd_LastFailed(t *testing.T) {
	flags := testFlags(t)
	seedHistory(t, flags)

	var out bytes.Buffer
	app := testApp(t, NewHistoryCmd(flags).Register, &out)
	require.NoError(t, app.Run(testContext(&out), []string{"boatpub", "history", "--last-failed"}))

	assert.Contains(t, out.String(), "Run bad002")
	assert.Contains(t, out.String(), "certificate validation failed")
	assert.NotContains(t, out.String(), "ok0003")
}

func TestHistoryCmd_Clear(t *testing.T) {
	flags := testFlags(t)
	seedHistory(t, flags)

	var out bytes.Buffer
	app := testApp(t, NewHistoryCmd(flags).Register, &out)
	require.NoError(t, app.Run(testContext(&out), []string{"boatpub", "history", "--clear"}))
	assert.Contains(t, out.String(), "Run history cleared")

	entries, err := flags.RunStore.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	out.Reset()
	app = testApp(t, NewHistoryCmd(flags).Register, &out)
	require.NoError(t, app.Run(testContext(&out), []string{"boatpub", "history", "--last-failed"}))
	assert.Contains(t, out.String(), "No failed runs")
}

func TestHistoryCmd_Show(t *testing.T) {
	flags := testFlags(t)
	seedHistory(t, flags)

	var out bytes.Buffer
	app := testApp(t, NewHistoryCmd(flags).Register, &out)
	require.NoError(t, app.Run(testContext(&out), []string{"boatpub", "history", "ok0003"}))
	assert.Contains(t, out.String(), "Run ok0003")
	assert.NotContains(t, out.String(), "bad002")

	out.Reset()
	app = testApp(t, NewHistoryCmd(flags).Register, &out)
	require.NoError(t, app.Run(testContext(&out), []string{"boatpub", "history", "--json", "bad002"}))

	var e runlog.Entry
	require.NoError(t, json.Unmarshal(out.Bytes(), &e))
	assert.Equal(t, broker.KindCertificate, e.ErrorKind)

	out.Reset()
	app = testApp(t, NewHistoryCmd(flags).Register, &out)
	err := app.Run(testContext(&out), []string{"boatpub", "history", "nope00"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
