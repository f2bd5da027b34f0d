// Command agendactl operates on the assignment-calendar document from the
// command line: inspecting per-unit status, assigning and completing slots,
// and moving whole documents in and out for backup or migration.
//
// The storage backend is selected through AGENDACORE_* environment variables;
// see agenda.OpenDocumentStore.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"agendacore/internal/agenda"
	"agendacore/pkg/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "agendactl: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: agendactl <command> [flags]

commands:
  status     show per-day summaries for a unit
  pending    list pending slots for a unit and day
  assign     create slots for a unit and day
  complete   register a completion on a slot
  remove     delete a pending slot
  reference  set or clear a slot's reference
  export     write the whole document to a file or stdout
  import     replace the whole document from a file or stdin`)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return fmt.Errorf("missing command")
	}

	store, err := agenda.OpenDocumentStore(ctx)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc, err := agenda.NewService(store, agenda.WithLogger(agenda.NewSlogLogger(logger)))
	if err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "status":
		return runStatus(ctx, svc, rest, out)
	case "pending":
		return runPending(ctx, svc, rest, out)
	case "assign":
		return runAssign(ctx, svc, rest, out)
	case "complete":
		return runComplete(ctx, svc, rest, out)
	case "remove":
		return runRemove(ctx, svc, rest, out)
	case "reference":
		return runReference(ctx, svc, rest, out)
	case "export":
		return runExport(ctx, svc, rest, out)
	case "import":
		return runImport(ctx, svc, rest, out)
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		usage(out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runStatus(ctx context.Context, svc *agenda.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	unit := fs.String("unit", "", "unit identifier (required)")
	all := fs.Bool("all", false, "include fully completed days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	summaries, err := svc.DaySummaries(ctx, domain.UnitID(*unit))
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintf(out, "unit %s has no planned days\n", *unit)
		return nil
	}
	for _, sum := range summaries {
		if sum.Complete && !*all {
			continue
		}
		fmt.Fprintf(out, "%s  planned=%d loaded=%d remaining=%d\n", sum.Day, sum.Planned, sum.Loaded, sum.Remaining)
	}
	if first, ok, err := svc.FirstPendingDay(ctx, domain.UnitID(*unit)); err == nil && ok {
		fmt.Fprintf(out, "first pending day: %s\n", first)
	}
	return nil
}

func runPending(ctx context.Context, svc *agenda.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("pending", flag.ContinueOnError)
	unit := fs.String("unit", "", "unit identifier (required)")
	day := fs.String("day", "", "ISO day, e.g. 2026-08-31 (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := domain.ParseDayKey(*day)
	if err != nil {
		return err
	}
	views, err := svc.Pending(ctx, domain.UnitID(*unit), key)
	if err != nil {
		return err
	}
	for _, v := range views {
		line := fmt.Sprintf("%s  %s", v.ID, v.Label)
		if v.Reference != "" {
			line += "  ref=" + v.Reference
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "%d pending\n", len(views))
	return nil
}

func runAssign(ctx context.Context, svc *agenda.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("assign", flag.ContinueOnError)
	unit := fs.String("unit", "", "unit identifier (required)")
	day := fs.String("day", "", "ISO day (required)")
	category := fs.String("category", "", "slot category (required)")
	count := fs.Int("count", 1, "number of slots to create")
	reference := fs.String("reference", "", "reference attached to the first created slot")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := domain.ParseDayKey(*day)
	if err != nil {
		return err
	}
	ids, err := svc.Assign(ctx, domain.UnitID(*unit), key, *category, *count, *reference)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}

func slotRefFlags(fs *flag.FlagSet) (unit, day, slot *string) {
	unit = fs.String("unit", "", "unit identifier (required)")
	day = fs.String("day", "", "ISO day (required)")
	slot = fs.String("slot", "", "slot identifier (required)")
	return unit, day, slot
}

func parseSlotRef(unit, day, slot string) (domain.SlotRef, error) {
	key, err := domain.ParseDayKey(day)
	if err != nil {
		return domain.SlotRef{}, err
	}
	ref := domain.SlotRef{Unit: domain.UnitID(unit), Day: key, Slot: domain.SlotID(slot)}
	return ref, ref.Validate()
}

func runComplete(ctx context.Context, svc *agenda.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("complete", flag.ContinueOnError)
	unit, day, slot := slotRefFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := parseSlotRef(*unit, *day, *slot)
	if err != nil {
		return err
	}
	remaining, err := svc.RegisterCompletion(ctx, ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "completed; %d remaining on %s\n", remaining, ref.Day)
	return nil
}

func runRemove(ctx context.Context, svc *agenda.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	unit, day, slot := slotRefFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := parseSlotRef(*unit, *day, *slot)
	if err != nil {
		return err
	}
	if err := svc.Remove(ctx, ref); err != nil {
		return err
	}
	fmt.Fprintln(out, "removed")
	return nil
}

func runReference(ctx context.Context, svc *agenda.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reference", flag.ContinueOnError)
	unit, day, slot := slotRefFlags(fs)
	value := fs.String("value", "", "new reference (empty clears)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := parseSlotRef(*unit, *day, *slot)
	if err != nil {
		return err
	}
	if err := svc.UpdateReference(ctx, ref, *value); err != nil {
		return err
	}
	fmt.Fprintln(out, "reference updated")
	return nil
}

func runExport(ctx context.Context, svc *agenda.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	path := fs.String("out", "", "destination file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := svc.Export(ctx)
	if err != nil {
		return err
	}
	if *path == "" {
		_, err = out.Write(data)
		return err
	}
	if err := os.WriteFile(*path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "exported %d bytes to %s\n", len(data), *path)
	return nil
}

func runImport(ctx context.Context, svc *agenda.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	path := fs.String("in", "", "source file (default stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if *path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*path)
	}
	if err != nil {
		return err
	}
	if err := svc.Import(ctx, data); err != nil {
		return err
	}
	fmt.Fprintln(out, "imported")
	return nil
}
