package scheduler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/disktree/pkg/types"
)

func TestWorkerMessageRoundTrip(t *testing.T) {
	msg := workerMessage{
		Kind:          msgResult,
		BlobID:        "blob-1",
		RootSize:      1024,
		RootNChildren: 3,
		RootNDesc:     10,
		ErrorPaths:    []string{"/a", "/b"},
		RootKind:      types.KindDir,
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var got workerMessage
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, msg, got)
}

func TestWorkerMessageProgressOmitsResultFields(t *testing.T) {
	msg := workerMessage{Kind: msgProgress, ItemsFound: 42, ErrorCount: 1}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "blob_id")
	assert.Contains(t, string(data), `"items_found":42`)
}
