package postgres

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudit_SmallPayloadStaysUncompressed(t *testing.T) {
	svc, err := NewAuditService(nil)
	require.NoError(t, err)

	entry := AuditEntry{Changes: json.RawMessage(`{"from":"DRAFT","to":"SENT"}`)}
	svc.compressEntry(&entry)

	assert.Equal(t, CompressionNone, entry.CompressionAlgo)
	assert.NotEmpty(t, entry.Changes)
	assert.Empty(t, entry.ChangesCompressed)
}

func TestAudit_LargePayloadRoundTripsThroughZstd(t *testing.T) {
	svc, err := NewAuditService(nil)
	require.NoError(t, err)

	// A line-heavy document snapshot well past the 10KB threshold.
	payload := json.RawMessage(`{"lines":"` + string(bytes.Repeat([]byte("x"), 20*1024)) + `"}`)
	entry := AuditEntry{Changes: payload}

	svc.compressEntry(&entry)
	require.Equal(t, CompressionZstd, entry.CompressionAlgo)
	assert.Nil(t, entry.Changes)
	assert.NotEmpty(t, entry.ChangesCompressed)
	assert.Less(t, len(entry.ChangesCompressed), len(payload))

	require.NoError(t, svc.decompressEntry(&entry))
	assert.Equal(t, payload, entry.Changes)
	assert.Empty(t, entry.ChangesCompressed)
}

func TestAudit_DecompressRejectsCorruptPayload(t *testing.T) {
	svc, err := NewAuditService(nil)
	require.NoError(t, err)

	entry := AuditEntry{
		CompressionAlgo:   CompressionZstd,
		ChangesCompressed: []byte("not a zstd frame"),
	}
	assert.Error(t, svc.decompressEntry(&entry))
}
