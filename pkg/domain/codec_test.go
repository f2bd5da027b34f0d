package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeDocument(t *testing.T) {
	doc := NewDocument()
	entry := doc.EnsureEntry("comisaria-5", "2026-04-10")
	entry.Slots["a1"] = Slot{ID: "a1", Category: "ROBO", Label: "ROBO #1", Planned: 1, Reference: "Prev. 55/26"}
	entry.Slots["a2"] = Slot{ID: "a2", Category: "ROBO", Label: "ROBO #2", Planned: 1, Loaded: 1}

	data, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"schema_version": 2`) {
		t.Fatalf("encoded document misses version envelope:\n%s", data)
	}

	back, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := back.Entry("comisaria-5", "2026-04-10")
	if !ok || len(got.Slots) != 2 {
		t.Fatalf("round trip lost slots: %+v", back)
	}
	if got.Slots["a1"].Reference != "Prev. 55/26" {
		t.Fatalf("reference lost in round trip: %+v", got.Slots["a1"])
	}
}

func TestEncodeDocumentFillsDefaults(t *testing.T) {
	data, err := EncodeDocument(Document{})
	if err != nil {
		t.Fatalf("encode zero document: %v", err)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("decode zero document: %v", err)
	}
	if doc.SchemaVersion != SchemaVersionCurrent || doc.Units == nil {
		t.Fatalf("defaults not applied: %+v", doc)
	}
}

func TestDecodeDocumentRejections(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "{{"},
		{"invalid utf8", "\xff\xfe"},
		{"unknown field", `{"schema_version":2,"units":{},"extra":1}`},
		{"stale version", `{"schema_version":1,"units":{}}`},
		{"missing version", `{"units":{}}`},
		{"empty entry", `{"schema_version":2,"units":{"u1":{"2026-01-02":{"slots":{}}}}}`},
		{"bad day", `{"schema_version":2,"units":{"u1":{"bad":{"slots":{"x":{"id":"x","category":"c","planned":1,"loaded":0}}}}}}`},
	}
	for _, tc := range cases {
		if _, err := DecodeDocument([]byte(tc.data)); !errors.Is(err, ErrCorruptData) {
			t.Fatalf("%s: expected corrupt-data error, got %v", tc.name, err)
		}
	}
}
