package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/boatpub/internal/broker/brokertest"
)

func TestDoctorCmd_JSON(t *testing.T) {
	srv := brokertest.New(t)
	flags := testFlags(t)
	flags.Config.Broker.Host = srv.Host()
	flags.Config.Broker.Port = srv.Port()

	var out bytes.Buffer
	app := testApp(t, NewDoctorCmd(flags).Register, &out)

	require.NoError(t, app.Run(testContext(&out), []string{"boatpub", "doctor", "--format", "json"}))

	var got struct {
		Healthy bool `json:"healthy"`
		Checks  []struct {
			Name string `json:"name"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))

	assert.True(t, got.Healthy)
	names := make([]string, 0, len(got.Checks))
	for _, c := range got.Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Configuration", "Broker", "Run History"}, names)
}

func TestDoctorCmd_BrokerDown(t *testing.T) {
	srv := brokertest.New(t, brokertest.WithReturnCode(4))
	flags := testFlags(t)
	flags.Config.Broker.Host = srv.Host()
	flags.Config.Broker.Port = srv.Port()

	var out bytes.Buffer
	app := testApp(t, NewDoctorCmd(flags).Register, &out)

	err := app.Run(testContext(&out), []string{"boatpub", "doctor"})
	require.Error(t, err)
	assert.Contains(t, out.String(), "Broker")
	assert.Contains(t, out.String(), "1 failed")
}

func TestDoctorCmd_BrokerDownJSON(t *testing.T) {
	srv := brokertest.New(t, brokertest.WithReturnCode(4))
	flags := testFlags(t)
	flags.Config.Broker.Host = srv.Host()
	flags.Config.Broker.Port = srv.Port()

	var out bytes.Buffer
	app := testApp(t, NewDoctorCmd(flags).Register, &out)

	err := app.Run(testContext(&out), []string{"boatpub", "doctor", "--format", "json"})
	require.Error(t, err)

	var got struct {
		Healthy bool `json:"healthy"`
		Summary struct {
			Failed int `json:"failed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.False(t, got.Healthy)
	assert.Equal(t, 1, got.Summary.Failed)
}
