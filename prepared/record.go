package prepared

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"go.matview.dev/core/depgraph"
)

// recordVersion tags the persisted schema. Readers reject versions they
// don't know rather than guessing at field semantics.
const recordVersion = 1

// Record is the serialized form of a prepared transaction's refresh queue.
type Record struct {
	// Version of the record schema, for forward-compatible evolution.
	Version int `json:"version"`
	// Keys owed recomputation, as captured at prepare time.
	Keys []depgraph.Key `json:"keys"`
	// Metadata about the record's origin.
	Metadata RecordMetadata `json:"metadata"`
}

// RecordMetadata describes when and by whom a Record was produced.
type RecordMetadata struct {
	// PreparedAt is the wall time of the prepare.
	PreparedAt time.Time `json:"preparedAt"`
	// SourceSession identifies the engine process which prepared the
	// transaction. Recovery may run in any process.
	SourceSession string `json:"sourceSession"`
	// SavepointDepth is the savepoint nesting depth at prepare time,
	// recorded for diagnostics.
	SavepointDepth int `json:"savepointDepth"`
}

// MarshalRecord serializes and gzip-compresses |rec|.
func MarshalRecord(rec Record) ([]byte, error) {
	var doc, err = json.Marshal(rec)
	if err != nil {
		return nil, errors.WithMessage(err, "encoding record")
	}
	var buf bytes.Buffer
	var zw = gzip.NewWriter(&buf)
	if _, err = zw.Write(doc); err == nil {
		err = zw.Close()
	}
	if err != nil {
		return nil, errors.WithMessage(err, "compressing record")
	}
	return buf.Bytes(), nil
}

// UnmarshalRecord deserializes a Record produced by MarshalRecord. Plain
// (uncompressed) JSON is also accepted, which eases manual repair of flagged
// records.
func UnmarshalRecord(data []byte) (Record, error) {
	var rec Record

	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b { // gzip magic.
		var zr, err = gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return rec, errors.WithMessage(err, "opening compressed record")
		}
		if data, err = io.ReadAll(zr); err != nil {
			return rec, errors.WithMessage(err, "decompressing record")
		}
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, errors.WithMessage(err, "decoding record")
	}
	if rec.Version != recordVersion {
		return rec, errors.Errorf("unsupported record version %d", rec.Version)
	}
	return rec, nil
}
