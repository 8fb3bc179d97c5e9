package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONOutputEmitsOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	WithComponent("test").Info().Msg("hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "test", rec["component"])
	assert.Equal(t, "hello", rec["message"])
}

func TestInitConsoleOutputIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: false, Output: &buf})

	WithComponent("test").Warn().Msg("uh oh")

	assert.Contains(t, buf.String(), "uh oh")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestInitDefaultsUnknownLevelToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: Level("not-a-real-level"), JSONOutput: true, Output: &buf})

	WithComponent("test").Debug().Msg("should be filtered")
	assert.Empty(t, buf.String())

	WithComponent("test").Info().Msg("should pass")
	assert.NotEmpty(t, buf.String())
}

func TestWithScanIDAndWithRootURITagFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	WithScanID("scan-1").Info().Msg("scan tagged")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "scan-1", rec["scan_id"])

	buf.Reset()
	WithRootURI("/data").Info().Msg("root tagged")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "/data", rec["root_uri"])
}
