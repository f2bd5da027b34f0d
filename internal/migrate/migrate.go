// Package migrate normalizes persisted agenda payloads into the canonical
// per-slot document form. It is the one sanctioned place where loosely shaped
// legacy JSON is accepted; everything else decodes strictly.
package migrate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"agendacore/pkg/domain"
)

// Decode parses raw document bytes. Canonical payloads (carrying a
// schema_version envelope) decode strictly. Unversioned payloads are treated
// as legacy input and rewritten into canonical form; migrated reports whether
// the caller must persist the result so future loads skip the rewrite.
// Anything else fails with CorruptDataError.
func Decode(data []byte) (doc domain.Document, migrated bool, err error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return domain.NewDocument(), true, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return domain.Document{}, false, domain.CorruptDataError{Reason: fmt.Sprintf("payload is not a JSON object: %v", err)}
	}
	if _, versioned := probe["schema_version"]; versioned {
		doc, err := domain.DecodeDocument(data)
		if err != nil {
			return domain.Document{}, false, err
		}
		return doc, false, nil
	}

	doc, err = decodeLegacy(probe)
	if err != nil {
		return domain.Document{}, false, err
	}
	return doc, true, nil
}

// Legacy container keys used by the historical producers. A day entry may
// hold its per-category map under any of these, or be the map itself.
var legacyContainers = []string{"slots", "hechos", "delitos"}

func decodeLegacy(units map[string]json.RawMessage) (domain.Document, error) {
	doc := domain.NewDocument()
	for rawUnit, daysRaw := range units {
		unit := domain.UnitID(strings.TrimSpace(rawUnit))
		if unit == "" {
			return domain.Document{}, domain.CorruptDataError{Reason: "legacy document has an empty unit key"}
		}
		var days map[string]json.RawMessage
		if err := json.Unmarshal(daysRaw, &days); err != nil {
			return domain.Document{}, domain.CorruptDataError{Reason: fmt.Sprintf("unit %s does not map days to entries: %v", unit, err)}
		}
		for rawDay, entryRaw := range days {
			day, err := domain.ParseDayKey(rawDay)
			if err != nil {
				return domain.Document{}, domain.CorruptDataError{Reason: fmt.Sprintf("unit %s has invalid day key %q", unit, rawDay)}
			}
			slots, err := decodeLegacyEntry(entryRaw)
			if err != nil {
				return domain.Document{}, domain.CorruptDataError{Reason: fmt.Sprintf("unit %s day %s: %v", unit, day, err)}
			}
			if len(slots) == 0 {
				// Empty day entries are never persisted in canonical form.
				continue
			}
			entry := doc.EnsureEntry(unit, day)
			for _, slot := range slots {
				entry.Slots[slot.ID] = slot
			}
		}
	}
	if err := doc.Validate(); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// decodeLegacyEntry expands one day entry into canonical slots.
func decodeLegacyEntry(entryRaw json.RawMessage) ([]domain.Slot, error) {
	var entry map[string]json.RawMessage
	if err := json.Unmarshal(entryRaw, &entry); err != nil {
		return nil, fmt.Errorf("day entry is not an object: %v", err)
	}
	container := entry
	for _, key := range legacyContainers {
		raw, ok := entry[key]
		if !ok {
			continue
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("container %q is not an object: %v", key, err)
		}
		container = inner
		break
	}

	// Deterministic expansion order keeps migration output stable for tests
	// and diffs.
	keys := make([]string, 0, len(container))
	for k := range container {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []domain.Slot
	for _, key := range keys {
		var value map[string]json.RawMessage
		if err := json.Unmarshal(container[key], &value); err != nil {
			// The historical producers skip non-object values; keep that
			// tolerance inside the sanctioned fallback.
			continue
		}
		if id := stringField(value, "id"); id != "" {
			out = append(out, canonicalFromLegacy(key, id, value))
			continue
		}
		out = append(out, expandAggregate(key, value)...)
	}
	return out, nil
}

// canonicalFromLegacy normalizes a per-slot legacy record that already
// carries an identifier.
func canonicalFromLegacy(key, id string, value map[string]json.RawMessage) domain.Slot {
	loaded := 0
	if intField(value, "loaded", intField(value, "cargados", 0)) > 0 {
		loaded = 1
	}
	category := stringField(value, "category")
	if category == "" {
		category = stringField(value, "etiqueta")
	}
	if category == "" {
		category = key
	}
	label := stringField(value, "label")
	if label == "" {
		label = stringField(value, "etiqueta")
	}
	reference := firstStringField(value, "reference", "referencia", "preventivo")
	return domain.Slot{
		ID:        domain.SlotID(id),
		Category:  category,
		Label:     label,
		Planned:   1,
		Loaded:    loaded,
		Reference: domain.NormalizeReference(reference),
	}
}

// expandAggregate decomposes one aggregate-count category record into
// individually addressable slots: planned P yields P slots, the first C of
// them loaded, and a single shared reference attaches only to the first slot
// so the same case number is not implied for everything.
func expandAggregate(category string, value map[string]json.RawMessage) []domain.Slot {
	planned := intField(value, "plan", intField(value, "planned", 0))
	loaded := intField(value, "cargados", intField(value, "loaded", 0))
	if loaded < 0 {
		loaded = 0
	}
	if planned <= 0 {
		planned = loaded
		if planned < 1 {
			planned = 1
		}
	}
	if loaded > planned {
		loaded = planned
	}

	refs := referenceList(value, planned)

	out := make([]domain.Slot, 0, planned)
	for i := 0; i < planned; i++ {
		slot := domain.Slot{
			ID:       domain.NewSlotID(),
			Category: category,
			Label:    category,
			Planned:  1,
		}
		if i < loaded {
			slot.Loaded = 1
		}
		if i < len(refs) {
			slot.Reference = refs[i]
		}
		out = append(out, slot)
	}
	return out
}

// referenceList resolves legacy reference fields: an explicit per-slot list
// wins; a single shared value applies to the first slot only.
func referenceList(value map[string]json.RawMessage, planned int) []string {
	if raw, ok := value["preventivos"]; ok {
		var list []any
		if err := json.Unmarshal(raw, &list); err == nil {
			out := make([]string, 0, len(list))
			for _, item := range list {
				s, _ := item.(string)
				out = append(out, domain.NormalizeReference(s))
			}
			if len(out) > planned {
				out = out[:planned]
			}
			return out
		}
	}
	if ref := domain.NormalizeReference(firstStringField(value, "preventivo", "referencia", "reference")); ref != "" {
		return []string{ref}
	}
	return nil
}

func stringField(value map[string]json.RawMessage, key string) string {
	raw, ok := value[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstStringField(value map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		if s := stringField(value, key); s != "" {
			return s
		}
	}
	return ""
}

func intField(value map[string]json.RawMessage, key string, fallback int) int {
	raw, ok := value[key]
	if !ok {
		return fallback
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return fallback
	}
	return int(n)
}
