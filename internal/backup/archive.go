package backup

import (
	"bytes"
	"encoding/json"
)

// Row is one table row as an opaque column/value mapping. The serializer
// does not validate row shape; the restore engine binds columns explicitly.
type Row map[string]any

// Archive is the plaintext logical backup document. It exists only in
// memory: the serialized form is always encrypted before it leaves the
// process.
type Archive struct {
	Timestamp string           `json:"timestamp"`
	Type      string           `json:"type"`
	Tables    map[string][]Row `json:"tables"`
}

// Rows returns the archived rows for a table; a missing table key means
// zero rows, never an error.
func (a *Archive) Rows(table string) []Row {
	if a.Tables == nil {
		return nil
	}
	return a.Tables[table]
}

// Serialize encodes the archive as UTF-8 JSON. Round-trips exactly through
// Deserialize.
func Serialize(a *Archive) ([]byte, error) {
	return json.Marshal(a)
}

// Deserialize parses serialized archive bytes, returning ErrMalformedArchive
// if the bytes are not valid JSON or the document lacks a tables field.
func Deserialize(data []byte) (*Archive, error) {
	var probe struct {
		Tables json.RawMessage `json:"tables"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&probe); err != nil || probe.Tables == nil {
		return nil, ErrMalformedArchive
	}

	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, ErrMalformedArchive
	}
	if a.Tables == nil {
		a.Tables = make(map[string][]Row)
	}
	return &a, nil
}
