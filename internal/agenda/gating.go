package agenda

import "agendacore/pkg/domain"

// firstPendingDay returns the oldest day with at least one pending slot for
// the unit. The second return is false when the unit has no pending work.
func firstPendingDay(doc domain.Document, unit domain.UnitID) (domain.DayKey, bool) {
	var (
		first domain.DayKey
		found bool
	)
	for day, entry := range doc.Units[unit] {
		if entry.Remaining() == 0 {
			continue
		}
		if !found || day.Before(first) {
			first = day
			found = true
		}
	}
	return first, found
}

// canWorkOn checks whether the referenced slot may be completed right now.
// Checks run in a fixed order so a slot that is both missing and out of
// order reports the missing condition first.
func canWorkOn(doc domain.Document, ref domain.SlotRef) error {
	entry, ok := doc.Entry(ref.Unit, ref.Day)
	if !ok {
		return domain.NotFoundError{Kind: "slot", ID: string(ref.Slot)}
	}
	slot, ok := entry.Slots[ref.Slot]
	if !ok {
		return domain.NotFoundError{Kind: "slot", ID: string(ref.Slot)}
	}
	if slot.IsLoaded() {
		return domain.AlreadyCompletedError{Slot: ref.Slot}
	}
	if first, found := firstPendingDay(doc, ref.Unit); found && first.Before(ref.Day) {
		return domain.OutOfOrderError{FirstPending: first}
	}
	return nil
}
