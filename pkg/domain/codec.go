package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// EncodeDocument serializes a canonical document as indented JSON. The output
// is the backup/export wire format as well as the persisted layout.
func EncodeDocument(doc Document) ([]byte, error) {
	if doc.SchemaVersion == 0 {
		doc.SchemaVersion = SchemaVersionCurrent
	}
	if doc.Units == nil {
		doc.Units = make(map[UnitID]map[DayKey]DayEntry)
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDocument parses a canonical (schema_version >= 2) document with full
// validation. It rejects anything that is not a well-formed versioned
// envelope; legacy payloads are the migrator's job, not this decoder's.
func DecodeDocument(data []byte) (Document, error) {
	if !utf8.Valid(data) {
		return Document{}, CorruptDataError{Reason: "payload is not valid UTF-8"}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Document{}, CorruptDataError{Reason: fmt.Sprintf("payload is not a canonical document: %v", err)}
	}
	if doc.SchemaVersion < SchemaVersionCurrent {
		return Document{}, CorruptDataError{Reason: fmt.Sprintf("schema_version %d is below %d", doc.SchemaVersion, SchemaVersionCurrent)}
	}
	if doc.Units == nil {
		doc.Units = make(map[UnitID]map[DayKey]DayEntry)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}
