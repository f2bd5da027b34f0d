// Package agenda implements the assignment-calendar engine: quota slots
// grouped per unit and day, persisted as one JSON document in a remote
// object store and mutated through full load-mutate-save cycles.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"agendacore/internal/migrate"
	"agendacore/pkg/domain"
)

// Service is the facade all calendar reads and mutations go through. Every
// operation performs a full document cycle against the configured store;
// mutations are serialized through an in-process lock so concurrent callers
// in the same process never interleave their read-modify-write windows.
type Service struct {
	store      domain.DocumentStore
	logger     Logger
	metrics    MetricsRecorder
	tracer     Tracer
	clock      Clock
	catalog    []string
	optimistic bool

	mu sync.Mutex
}

// ServiceOption customizes Service construction.
type ServiceOption func(*Service)

// WithLogger installs a logger for the service.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics installs a metrics recorder for the service.
func WithMetrics(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		s.metrics = rec
	}
}

// WithTracer installs a tracer for the service.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithClock overrides the time source used for instrumentation.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithCatalog restricts Assign to the given set of category names. An empty
// catalog accepts any non-blank category.
func WithCatalog(categories []string) ServiceOption {
	return func(s *Service) {
		s.catalog = append([]string(nil), categories...)
	}
}

// WithOptimisticLocking makes every save conditional on the revision observed
// at load time, surfacing domain.ErrRevisionConflict instead of silently
// overwriting a concurrent writer from another process. Off by default: the
// last write wins, matching how the document has historically been shared.
func WithOptimisticLocking() ServiceOption {
	return func(s *Service) {
		s.optimistic = true
	}
}

// NewService constructs the facade over a document store.
func NewService(store domain.DocumentStore, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("agenda: document store is required")
	}
	s := &Service{
		store:  store,
		logger: noopLogger{},
		clock:  ClockFunc(time.Now),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SlotView is the read-model projection of a slot.
type SlotView struct {
	ID        domain.SlotID `json:"id"`
	Category  string        `json:"category"`
	Label     string        `json:"label,omitempty"`
	Planned   int           `json:"planned"`
	Loaded    int           `json:"loaded"`
	Remaining int           `json:"remaining"`
	Reference string        `json:"reference,omitempty"`
}

// DaySummary aggregates one day's slots for a unit.
type DaySummary struct {
	Day       domain.DayKey `json:"day"`
	Planned   int           `json:"planned"`
	Loaded    int           `json:"loaded"`
	Remaining int           `json:"remaining"`
	Complete  bool          `json:"complete"`
}

func newSlotView(slot domain.Slot) SlotView {
	return SlotView{
		ID:        slot.ID,
		Category:  slot.Category,
		Label:     slot.Label,
		Planned:   slot.Planned,
		Loaded:    slot.Loaded,
		Remaining: slot.Remaining(),
		Reference: slot.Reference,
	}
}

// instrument wraps one facade operation with metrics, tracing, and error
// logging.
func (s *Service) instrument(ctx context.Context, operation string, fn func(context.Context) error) error {
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	start := s.clock.Now()
	err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, duration)
	}
	if span != nil {
		span.End(err)
	}
	if err != nil {
		s.logger.Debug("agenda operation failed", "operation", operation, "error", err)
	}
	return err
}

// load runs the store's Load and applies the recovery policy for corrupt
// payloads: log, substitute an empty document, and persist it so the remote
// state converges on something readable again.
func (s *Service) load(ctx context.Context) (domain.Document, domain.Revision, error) {
	doc, rev, err := s.store.Load(ctx)
	if err == nil {
		return doc, rev, nil
	}
	var corrupt domain.CorruptDataError
	if !errors.As(err, &corrupt) {
		return domain.Document{}, "", err
	}
	s.logger.Warn("stored calendar document is corrupt, resetting to empty", "reason", corrupt.Reason)
	doc = domain.NewDocument()
	rev, saveErr := s.store.Save(ctx, doc, "")
	if saveErr != nil {
		return domain.Document{}, "", saveErr
	}
	return doc, rev, nil
}

func (s *Service) save(ctx context.Context, doc domain.Document, rev domain.Revision) error {
	expected := domain.Revision("")
	if s.optimistic {
		expected = rev
	}
	_, err := s.store.Save(ctx, doc, expected)
	return err
}

func validUnit(unit domain.UnitID) error {
	if strings.TrimSpace(string(unit)) == "" {
		return domain.InvalidArgumentError{Field: "unit", Reason: "must not be blank"}
	}
	return nil
}

func (s *Service) categoryAllowed(category string) bool {
	if len(s.catalog) == 0 {
		return true
	}
	for _, c := range s.catalog {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}

// Assign creates count fresh slots for the unit and day, each planned at
// exactly one. When a reference is supplied it attaches to the first created
// slot only. Returns the new slot IDs in creation order.
func (s *Service) Assign(ctx context.Context, unit domain.UnitID, day domain.DayKey, category string, count int, reference string) ([]domain.SlotID, error) {
	var ids []domain.SlotID
	err := s.instrument(ctx, "assign", func(ctx context.Context) error {
		if err := validUnit(unit); err != nil {
			return err
		}
		if !day.Valid() {
			return domain.InvalidArgumentError{Field: "day", Reason: fmt.Sprintf("invalid ISO date %q", string(day))}
		}
		category = strings.TrimSpace(category)
		if category == "" {
			return domain.InvalidArgumentError{Field: "category", Reason: "must not be blank"}
		}
		if !s.categoryAllowed(category) {
			return domain.InvalidArgumentError{Field: "category", Reason: fmt.Sprintf("%q is not in the configured catalog", category)}
		}
		if count < 1 {
			return domain.InvalidArgumentError{Field: "count", Reason: "must be at least 1"}
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		doc, rev, err := s.load(ctx)
		if err != nil {
			return err
		}
		entry := doc.EnsureEntry(unit, day)
		base := len(entry.Slots)
		ids = make([]domain.SlotID, 0, count)
		for i := 0; i < count; i++ {
			slot := domain.Slot{
				ID:       domain.NewSlotID(),
				Category: category,
				Label:    fmt.Sprintf("%s #%d", category, base+i+1),
				Planned:  1,
			}
			if i == 0 {
				slot.Reference = domain.NormalizeReference(reference)
			}
			entry.Slots[slot.ID] = slot
			ids = append(ids, slot.ID)
		}
		if err := s.save(ctx, doc, rev); err != nil {
			ids = nil
			return err
		}
		s.logger.Info("slots assigned", "unit", unit, "day", day, "category", category, "count", count)
		return nil
	})
	return ids, err
}

// UpdateReference replaces the reference attached to one slot. A blank value
// clears it.
func (s *Service) UpdateReference(ctx context.Context, ref domain.SlotRef, reference string) error {
	return s.instrument(ctx, "update_reference", func(ctx context.Context) error {
		if err := ref.Validate(); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		doc, rev, err := s.load(ctx)
		if err != nil {
			return err
		}
		entry, ok := doc.Entry(ref.Unit, ref.Day)
		if !ok {
			return domain.NotFoundError{Kind: "slot", ID: string(ref.Slot)}
		}
		slot, ok := entry.Slots[ref.Slot]
		if !ok {
			return domain.NotFoundError{Kind: "slot", ID: string(ref.Slot)}
		}
		slot.Reference = domain.NormalizeReference(reference)
		entry.Slots[ref.Slot] = slot
		return s.save(ctx, doc, rev)
	})
}

// Remove deletes one pending slot. Slots with a registered completion are
// immutable history and refuse removal. When the last slot of a day goes, the
// day entry goes with it.
func (s *Service) Remove(ctx context.Context, ref domain.SlotRef) error {
	return s.instrument(ctx, "remove", func(ctx context.Context) error {
		if err := ref.Validate(); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		doc, rev, err := s.load(ctx)
		if err != nil {
			return err
		}
		entry, ok := doc.Entry(ref.Unit, ref.Day)
		if !ok {
			return domain.NotFoundError{Kind: "slot", ID: string(ref.Slot)}
		}
		slot, ok := entry.Slots[ref.Slot]
		if !ok {
			return domain.NotFoundError{Kind: "slot", ID: string(ref.Slot)}
		}
		if slot.Loaded > 0 {
			return domain.InvalidStateError{Reason: fmt.Sprintf("slot %s has a registered completion and cannot be removed", slot.ID)}
		}
		delete(entry.Slots, ref.Slot)
		doc.DropEntryIfEmpty(ref.Unit, ref.Day)
		if err := s.save(ctx, doc, rev); err != nil {
			return err
		}
		s.logger.Info("slot removed", "unit", ref.Unit, "day", ref.Day, "slot", ref.Slot)
		return nil
	})
}

// RegisterCompletion marks one slot as done and returns how many slots remain
// pending across the whole day entry. Eligibility, including oldest-day
// ordering, is re-checked inside the same document cycle as the write, so a
// stale earlier CanWorkOn answer cannot let work slip past a backlog.
func (s *Service) RegisterCompletion(ctx context.Context, ref domain.SlotRef) (int, error) {
	remaining := 0
	err := s.instrument(ctx, "register_completion", func(ctx context.Context) error {
		if err := ref.Validate(); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		doc, rev, err := s.load(ctx)
		if err != nil {
			return err
		}
		if err := canWorkOn(doc, ref); err != nil {
			return err
		}
		entry, _ := doc.Entry(ref.Unit, ref.Day)
		slot := entry.Slots[ref.Slot]
		slot.Loaded = slot.Planned
		entry.Slots[ref.Slot] = slot
		remaining = entry.Remaining()
		if err := s.save(ctx, doc, rev); err != nil {
			return err
		}
		s.logger.Info("completion registered", "unit", ref.Unit, "day", ref.Day, "slot", ref.Slot, "remaining", remaining)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// PlannedDays lists every day with at least one slot for the unit, oldest
// first.
func (s *Service) PlannedDays(ctx context.Context, unit domain.UnitID) ([]domain.DayKey, error) {
	var days []domain.DayKey
	err := s.instrument(ctx, "planned_days", func(ctx context.Context) error {
		if err := validUnit(unit); err != nil {
			return err
		}
		doc, _, err := s.load(ctx)
		if err != nil {
			return err
		}
		days = doc.PlannedDays(unit)
		return nil
	})
	return days, err
}

// DaySummaries aggregates each planned day of the unit, oldest first. Fully
// loaded days stay in the result with Complete set; callers that only show
// open work filter on it.
func (s *Service) DaySummaries(ctx context.Context, unit domain.UnitID) ([]DaySummary, error) {
	var summaries []DaySummary
	err := s.instrument(ctx, "day_summaries", func(ctx context.Context) error {
		if err := validUnit(unit); err != nil {
			return err
		}
		doc, _, err := s.load(ctx)
		if err != nil {
			return err
		}
		for _, day := range doc.PlannedDays(unit) {
			entry, _ := doc.Entry(unit, day)
			sum := DaySummary{Day: day}
			for _, slot := range entry.Slots {
				sum.Planned += slot.Planned
				sum.Loaded += slot.Loaded
			}
			sum.Remaining = entry.Remaining()
			sum.Complete = sum.Remaining == 0
			summaries = append(summaries, sum)
		}
		return nil
	})
	return summaries, err
}

// Detail lists every slot of one (unit, day), ordered by label then ID. An
// unplanned day yields an empty result, not an error.
func (s *Service) Detail(ctx context.Context, unit domain.UnitID, day domain.DayKey) ([]SlotView, error) {
	return s.slotViews(ctx, "detail", unit, day, false)
}

// Pending lists only the slots of one (unit, day) that still await a
// completion, ordered by label then ID.
func (s *Service) Pending(ctx context.Context, unit domain.UnitID, day domain.DayKey) ([]SlotView, error) {
	return s.slotViews(ctx, "pending", unit, day, true)
}

func (s *Service) slotViews(ctx context.Context, operation string, unit domain.UnitID, day domain.DayKey, pendingOnly bool) ([]SlotView, error) {
	var views []SlotView
	err := s.instrument(ctx, operation, func(ctx context.Context) error {
		if err := validUnit(unit); err != nil {
			return err
		}
		doc, _, err := s.load(ctx)
		if err != nil {
			return err
		}
		entry, ok := doc.Entry(unit, day)
		if !ok {
			views = []SlotView{}
			return nil
		}
		views = make([]SlotView, 0, len(entry.Slots))
		for _, slot := range entry.Slots {
			if pendingOnly && slot.Remaining() == 0 {
				continue
			}
			views = append(views, newSlotView(slot))
		}
		sort.Slice(views, func(i, j int) bool {
			if views[i].Label != views[j].Label {
				return views[i].Label < views[j].Label
			}
			return views[i].ID < views[j].ID
		})
		return nil
	})
	return views, err
}

// FirstPendingDay returns the oldest day with pending work for the unit. The
// boolean is false when the unit's backlog is clear.
func (s *Service) FirstPendingDay(ctx context.Context, unit domain.UnitID) (domain.DayKey, bool, error) {
	var (
		day   domain.DayKey
		found bool
	)
	err := s.instrument(ctx, "first_pending_day", func(ctx context.Context) error {
		if err := validUnit(unit); err != nil {
			return err
		}
		doc, _, err := s.load(ctx)
		if err != nil {
			return err
		}
		day, found = firstPendingDay(doc, unit)
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return day, found, nil
}

// CanWorkOn reports whether the referenced slot may be completed right now: a
// nil return means yes, otherwise the error names the blocking condition
// (missing slot, already completed, or an older day still pending). The
// answer is advisory; RegisterCompletion re-checks on its own cycle.
func (s *Service) CanWorkOn(ctx context.Context, ref domain.SlotRef) error {
	return s.instrument(ctx, "can_work_on", func(ctx context.Context) error {
		if err := ref.Validate(); err != nil {
			return err
		}
		doc, _, err := s.load(ctx)
		if err != nil {
			return err
		}
		return canWorkOn(doc, ref)
	})
}

// Export returns the whole calendar document in its canonical encoding.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.instrument(ctx, "export", func(ctx context.Context) error {
		doc, _, err := s.load(ctx)
		if err != nil {
			return err
		}
		data, err = domain.EncodeDocument(doc)
		return err
	})
	return data, err
}

// Import replaces the whole calendar document with the supplied payload,
// accepting both canonical and legacy encodings. Unlike Load, a payload that
// fails to decode aborts the import instead of resetting state. The write is
// unconditional: importing is by definition a wholesale replacement.
func (s *Service) Import(ctx context.Context, data []byte) error {
	return s.instrument(ctx, "import", func(ctx context.Context) error {
		doc, _, err := migrate.Decode(data)
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if _, err := s.store.Save(ctx, doc, ""); err != nil {
			return err
		}
		s.logger.Info("calendar document imported", "units", len(doc.Units))
		return nil
	})
}
