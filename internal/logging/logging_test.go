package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	defer SetupOutput(os.Stdout, "info", "text")

	var buf bytes.Buffer
	SetupOutput(&buf, "debug", "json")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	logrus.WithField("code", "ABC123").Info("Session created")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ABC123", line["code"])
	assert.Equal(t, "Session created", line["msg"])
}

func TestSetupUnknownLevel(t *testing.T) {
	defer SetupOutput(os.Stdout, "info", "text")

	SetupOutput(&bytes.Buffer{}, "loud", "text")
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
