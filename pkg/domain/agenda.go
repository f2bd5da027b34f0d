// Package domain defines the persistent entities, value types, and error
// taxonomy of the assignment-calendar engine.
package domain

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaVersionCurrent is the version tag written on canonical documents.
// Documents without a version envelope are treated as legacy input and routed
// through the migrator.
const SchemaVersionCurrent = 2

// UnitID identifies an organizational unit (e.g. a police station). Units are
// supplied by the authentication layer and never created or destroyed here.
type UnitID string

// SlotID is the opaque unique identifier of a slot, stable for its lifetime.
type SlotID string

// DayKey is a calendar date serialized as an ISO date string (2006-01-02).
// It is a grouping key, not an owned entity.
type DayKey string

// dayLayout is the wire format of DayKey.
const dayLayout = "2006-01-02"

// NewDayKey builds the key for a calendar date, dropping any time component.
func NewDayKey(t time.Time) DayKey {
	return DayKey(t.Format(dayLayout))
}

// ParseDayKey validates a raw day string.
func ParseDayKey(raw string) (DayKey, error) {
	if _, err := time.Parse(dayLayout, raw); err != nil {
		return "", InvalidArgumentError{Field: "day", Reason: fmt.Sprintf("invalid ISO date %q", raw)}
	}
	return DayKey(raw), nil
}

// Time returns the calendar date the key encodes.
func (d DayKey) Time() (time.Time, error) {
	return time.Parse(dayLayout, string(d))
}

// Valid reports whether the key parses as an ISO date.
func (d DayKey) Valid() bool {
	_, err := d.Time()
	return err == nil
}

// Before orders two valid day keys chronologically. Unparseable keys sort
// last; they never survive decoding, so this only matters for zero values.
func (d DayKey) Before(other DayKey) bool {
	dt, errD := d.Time()
	ot, errO := other.Time()
	if errD != nil {
		return false
	}
	if errO != nil {
		return true
	}
	return dt.Before(ot)
}

// NewSlotID generates a fresh slot identifier: 32 lowercase hex characters,
// byte-for-byte compatible with IDs already present in stored documents.
func NewSlotID() SlotID {
	u := uuid.New()
	return SlotID(hex.EncodeToString(u[:]))
}

// Slot is one discrete, individually trackable unit of assignable work.
// Planned is always normalized to exactly 1; a plan of N decomposes into N
// independent slots at creation time. Loaded is capped at Planned, so it is
// effectively a boolean completion flag.
type Slot struct {
	ID        SlotID `json:"id"`
	Category  string `json:"category"`
	Label     string `json:"label,omitempty"`
	Planned   int    `json:"planned"`
	Loaded    int    `json:"loaded"`
	Reference string `json:"reference,omitempty"`
}

// IsLoaded reports whether the slot has been consumed.
func (s Slot) IsLoaded() bool { return s.Loaded >= s.Planned && s.Planned > 0 }

// Remaining returns the pending count for the slot (0 or 1).
func (s Slot) Remaining() int {
	r := s.Planned - s.Loaded
	if r < 0 {
		return 0
	}
	return r
}

// Validate checks the slot invariants under the given map key.
func (s Slot) Validate(key SlotID) error {
	if s.ID == "" {
		return CorruptDataError{Reason: "slot with empty id"}
	}
	if key != "" && s.ID != key {
		return CorruptDataError{Reason: fmt.Sprintf("slot id %s does not match its key %s", s.ID, key)}
	}
	if s.Planned != 1 {
		return CorruptDataError{Reason: fmt.Sprintf("slot %s has planned=%d, want 1", s.ID, s.Planned)}
	}
	if s.Loaded < 0 || s.Loaded > s.Planned {
		return CorruptDataError{Reason: fmt.Sprintf("slot %s has loaded=%d outside [0,%d]", s.ID, s.Loaded, s.Planned)}
	}
	return nil
}

// DayEntry is the set of slots assigned to one (unit, day) pair. An entry
// whose slot set becomes empty is removed from the document entirely.
type DayEntry struct {
	Slots map[SlotID]Slot `json:"slots"`
}

// Remaining sums the pending counts across the entry.
func (e DayEntry) Remaining() int {
	total := 0
	for _, slot := range e.Slots {
		total += slot.Remaining()
	}
	return total
}

// Clone returns a deep copy of the entry.
func (e DayEntry) Clone() DayEntry {
	out := DayEntry{Slots: make(map[SlotID]Slot, len(e.Slots))}
	for id, slot := range e.Slots {
		out.Slots[id] = slot
	}
	return out
}

// Document is the whole persisted state: units mapping to their per-day
// entries. It is always read and written in full.
type Document struct {
	SchemaVersion int                           `json:"schema_version"`
	Units         map[UnitID]map[DayKey]DayEntry `json:"units"`
}

// NewDocument returns an empty canonical document.
func NewDocument() Document {
	return Document{SchemaVersion: SchemaVersionCurrent, Units: make(map[UnitID]map[DayKey]DayEntry)}
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := Document{SchemaVersion: d.SchemaVersion, Units: make(map[UnitID]map[DayKey]DayEntry, len(d.Units))}
	for unit, days := range d.Units {
		cp := make(map[DayKey]DayEntry, len(days))
		for day, entry := range days {
			cp[day] = entry.Clone()
		}
		out.Units[unit] = cp
	}
	return out
}

// Validate checks the document invariants: unique non-empty slot IDs across
// the whole document, valid day keys, no empty day entries, loaded within
// planned.
func (d Document) Validate() error {
	seen := make(map[SlotID]struct{})
	for unit, days := range d.Units {
		if unit == "" {
			return CorruptDataError{Reason: "empty unit identifier"}
		}
		for day, entry := range days {
			if !day.Valid() {
				return CorruptDataError{Reason: fmt.Sprintf("unit %s has invalid day key %q", unit, day)}
			}
			if len(entry.Slots) == 0 {
				return CorruptDataError{Reason: fmt.Sprintf("unit %s day %s has an empty slot set", unit, day)}
			}
			for key, slot := range entry.Slots {
				if err := slot.Validate(key); err != nil {
					return err
				}
				if _, dup := seen[slot.ID]; dup {
					return CorruptDataError{Reason: fmt.Sprintf("duplicate slot id %s", slot.ID)}
				}
				seen[slot.ID] = struct{}{}
			}
		}
	}
	return nil
}

// Entry returns the day entry for (unit, day), if present.
func (d Document) Entry(unit UnitID, day DayKey) (DayEntry, bool) {
	days, ok := d.Units[unit]
	if !ok {
		return DayEntry{}, false
	}
	entry, ok := days[day]
	return entry, ok
}

// EnsureEntry returns the mutable day entry for (unit, day), creating the
// unit map and entry as needed.
func (d *Document) EnsureEntry(unit UnitID, day DayKey) DayEntry {
	if d.Units == nil {
		d.Units = make(map[UnitID]map[DayKey]DayEntry)
	}
	days, ok := d.Units[unit]
	if !ok {
		days = make(map[DayKey]DayEntry)
		d.Units[unit] = days
	}
	entry, ok := days[day]
	if !ok || entry.Slots == nil {
		entry = DayEntry{Slots: make(map[SlotID]Slot)}
		days[day] = entry
	}
	return entry
}

// DropEntryIfEmpty garbage-collects a (unit, day) whose slot set is empty,
// and the unit itself once it holds no days.
func (d *Document) DropEntryIfEmpty(unit UnitID, day DayKey) {
	days, ok := d.Units[unit]
	if !ok {
		return
	}
	if entry, ok := days[day]; ok && len(entry.Slots) == 0 {
		delete(days, day)
	}
	if len(days) == 0 {
		delete(d.Units, unit)
	}
}

// PlannedDays returns every day with at least one slot ever assigned to the
// unit, ascending by date.
func (d Document) PlannedDays(unit UnitID) []DayKey {
	days := d.Units[unit]
	out := make([]DayKey, 0, len(days))
	for day := range days {
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// SlotRef pins down one slot for operator-side operations. It is the explicit
// wizard context passed by the caller; the engine keeps no session state
// between calls.
type SlotRef struct {
	Unit UnitID
	Day  DayKey
	Slot SlotID
}

// Validate rejects structurally unusable references up front.
func (r SlotRef) Validate() error {
	if strings.TrimSpace(string(r.Unit)) == "" {
		return InvalidArgumentError{Field: "unit", Reason: "must not be empty"}
	}
	if !r.Day.Valid() {
		return InvalidArgumentError{Field: "day", Reason: fmt.Sprintf("invalid ISO date %q", r.Day)}
	}
	if r.Slot == "" {
		return InvalidArgumentError{Field: "slot", Reason: "must not be empty"}
	}
	return nil
}

// NormalizeReference trims administrator-supplied reference text; blank input
// collapses to the empty string, which means "absent".
func NormalizeReference(raw string) string {
	return strings.TrimSpace(raw)
}
