package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutputCarriesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New("broadcast", Config{Level: "debug", Format: "json", Output: &buf})

	log.WithFields(Fields{"account": "alice"}).Info("transaction submitted")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "broadcast", line["component"])
	assert.Equal(t, "alice", line["account"])
	assert.Equal(t, "transaction submitted", line["msg"])
	assert.Equal(t, "info", line["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New("test", Config{Level: "warn", Format: "json", Output: &buf})

	log.Info("suppressed")
	assert.Zero(t, buf.Len())

	log.Warn("emitted")
	assert.NotZero(t, buf.Len())
}

func TestWithErrorAndField(t *testing.T) {
	var buf bytes.Buffer
	log := New("test", Config{Level: "debug", Format: "json", Output: &buf})

	log.WithError(errors.New("boom")).WithField("key", "k1").Error("operation failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "k1", line["key"])
}

func TestWithContextIsChainable(t *testing.T) {
	var buf bytes.Buffer
	log := New("test", Config{Level: "debug", Format: "json", Output: &buf})

	// Context attachment must not lose previously attached fields.
	log.WithFields(Fields{"a": 1}).WithContext(context.Background()).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.EqualValues(t, 1, line["a"])
}
