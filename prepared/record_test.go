package prepared

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.matview.dev/core/depgraph"
)

func TestRecordRoundTrip(t *testing.T) {
	var rec = Record{
		Version: recordVersion,
		Keys: []depgraph.Key{
			{Entity: "post", PK: 10},
			{Entity: "user", PK: 1},
		},
		Metadata: RecordMetadata{
			PreparedAt:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
			SourceSession:  "session-1",
			SavepointDepth: 2,
		},
	}

	var data, err = MarshalRecord(rec)
	require.NoError(t, err)
	require.Equal(t, []byte{0x1f, 0x8b}, data[:2]) // Compressed on the wire.

	var got Record
	got, err = UnmarshalRecord(data)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestRecordAcceptsPlainJSON(t *testing.T) {
	var doc, err = json.Marshal(Record{
		Version: recordVersion,
		Keys:    []depgraph.Key{{Entity: "user", PK: 1}},
	})
	require.NoError(t, err)

	var rec Record
	rec, err = UnmarshalRecord(doc)
	require.NoError(t, err)
	require.Equal(t, []depgraph.Key{{Entity: "user", PK: 1}}, rec.Keys)
}

func TestRecordRejectsUnknownVersion(t *testing.T) {
	var data, err = MarshalRecord(Record{Version: 99})
	require.NoError(t, err)

	_, err = UnmarshalRecord(data)
	require.EqualError(t, err, "unsupported record version 99")
}

func TestRecordRejectsGarbage(t *testing.T) {
	var _, err = UnmarshalRecord([]byte("\x00not a record"))
	require.ErrorContains(t, err, "decoding record")

	// A gzip header over garbage fails at decompression.
	_, err = UnmarshalRecord([]byte{0x1f, 0x8b, 0x00, 0x00})
	require.Error(t, err)
}
