package transfer_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagekit/stevedore/pkg/transfer"
)

func samplePayload() *transfer.Payload {
	return &transfer.Payload{
		ExportedAt: time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC),
		Tables: map[string]*transfer.TableData{
			"trips": {
				Columns: []string{"id", "name"},
				Rows:    [][]any{{1, "Caribbean"}, {2, "Mediterranean"}},
				Count:   2,
			},
			"settings": {
				Columns: []string{"key", "value"},
				Count:   0,
			},
		},
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	payload := samplePayload()

	var buf bytes.Buffer
	require.NoError(t, payload.Encode(&buf))

	decoded, err := transfer.ReadPayload(&buf)
	require.NoError(t, err)

	if diff := cmp.Diff(payload, decoded); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestPayloadEncodeIsReadable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, samplePayload().Encode(&buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "exported_at:"))
	assert.Contains(t, out, "tables:")
	assert.Contains(t, out, "  trips:")
	assert.Contains(t, out, "columns:")
}

func TestPayloadTable(t *testing.T) {
	payload := samplePayload()

	require.NotNil(t, payload.Table("trips"))
	assert.Nil(t, payload.Table("unknown"))

	var nilPayload *transfer.Payload
	assert.Nil(t, nilPayload.Table("trips"))
	assert.Nil(t, (&transfer.Payload{}).Table("trips"))
}

func TestPayloadFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.yaml")
	payload := samplePayload()

	require.NoError(t, transfer.WritePayloadFile(path, payload))

	loaded, err := transfer.LoadPayloadFile(path)
	require.NoError(t, err)

	if diff := cmp.Diff(payload, loaded); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPayloadFileMissing(t *testing.T) {
	_, err := transfer.LoadPayloadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open payload:")
}

func TestReadPayloadInvalid(t *testing.T) {
	_, err := transfer.ReadPayload(strings.NewReader("tables: [not, a, map]"))
	require.Error(t, err)
}
