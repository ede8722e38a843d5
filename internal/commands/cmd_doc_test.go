package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/boatpub/internal/core/config"
	"github.com/hay-kot/boatpub/internal/setup"
)

func TestDocCmd_ConfigListsSettableKeys(t *testing.T) {
	var out bytes.Buffer
	app := testApp(t, NewDocCmd().Register, &out)

	require.NoError(t, app.Run(testContext(&out), []string{"boatpub", "doc", "config"}))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "# Configuration"), "non-terminal output is raw markdown")
	assert.Contains(t, text, config.PasswordEnvVar)
	for _, key := range setup.SettableKeys() {
		assert.Contains(t, text, "`"+key+"`")
	}
}

func TestDocCmd_Payload(t *testing.T) {
	var out bytes.Buffer
	app := testApp(t, NewDocCmd().Register, &out)

	require.NoError(t, app.Run(testContext(&out), []string{"boatpub", "doc", "--raw", "payload"}))
	assert.Contains(t, out.String(), config.DefaultTopic)
	assert.Contains(t, out.String(), "Send `")
}

func TestRenderMarkdown(t *testing.T) {
	out, err := renderMarkdown("# Payload\n\nvelocity in knots\n", "notty", 80)
	require.NoError(t, err)
	assert.Contains(t, out, "Payload")
	assert.Contains(t, out, "velocity in knots")
}
