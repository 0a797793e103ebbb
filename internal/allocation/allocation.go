// Package allocation assigns booked lesson hours to prepaid package hours in
// chronological order and reports what remains owed.
package allocation

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/plannivo/finance/internal/audit/domain"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	"github.com/plannivo/finance/pkg/money"
	"github.com/shopspring/decimal"
)

// Package is one hour credit fed to Allocate. AvailableHours is the package's
// opening credit, not the projected remaining_hours column.
type Package struct {
	ID             snowflake.ID
	AvailableHours decimal.Decimal
	Active         bool
}

// Event is a booking, live or rebuilt from a deletion snapshot.
type Event struct {
	BookingID snowflake.ID
	Date      time.Time
	StartHour decimal.Decimal
	Duration  decimal.Decimal
	Amount    decimal.Decimal
	Status    bookingdomain.BookingStatus
	Deleted   bool
}

// Line is the outcome for a single event.
type Line struct {
	BookingID    snowflake.ID    `json:"booking_id"`
	CoveredHours decimal.Decimal `json:"covered_hours"`
	UnpaidAmount decimal.Decimal `json:"unpaid_amount"`
	Deleted      bool            `json:"deleted"`
}

type Result struct {
	PackageHoursUsed       decimal.Decimal `json:"package_hours_used"`
	UnpaidIndividualAmount decimal.Decimal `json:"unpaid_individual_amount"`
	RemainingPackageHours  decimal.Decimal `json:"remaining_package_hours"`
	Lines                  []Line          `json:"lines"`
}

// Allocate consumes package hours greedily in (date, start_hour) order. Events
// sharing a slot keep their input order. Cancelled events and events without
// a positive duration are skipped.
func Allocate(packages []Package, events []Event) Result {
	remaining := decimal.Zero
	for _, pkg := range packages {
		if pkg.Active && pkg.AvailableHours.IsPositive() {
			remaining = remaining.Add(pkg.AvailableHours)
		}
	}

	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.StartHour.LessThan(b.StartHour)
	})

	used := decimal.Zero
	unpaid := decimal.Zero
	lines := make([]Line, 0, len(ordered))

	for _, event := range ordered {
		if event.Status == bookingdomain.BookingStatusCancelled {
			continue
		}
		d := event.Duration
		if !d.IsPositive() {
			continue
		}

		line := Line{BookingID: event.BookingID, Deleted: event.Deleted, CoveredHours: decimal.Zero, UnpaidAmount: decimal.Zero}
		switch {
		case remaining.GreaterThanOrEqual(d):
			remaining = remaining.Sub(d)
			used = used.Add(d)
			line.CoveredHours = d
		case remaining.IsPositive():
			covered := remaining
			perHour := event.Amount.Div(d)
			owed := d.Sub(covered).Mul(perHour)
			used = used.Add(covered)
			remaining = decimal.Zero
			unpaid = unpaid.Add(owed)
			line.CoveredHours = covered
			line.UnpaidAmount = money.Round(owed)
		default:
			unpaid = unpaid.Add(event.Amount)
			line.UnpaidAmount = money.Round(event.Amount)
		}
		lines = append(lines, line)
	}

	return Result{
		PackageHoursUsed:       used,
		UnpaidIndividualAmount: money.Round(unpaid),
		RemainingPackageHours:  remaining,
		Lines:                  lines,
	}
}

// PackagesFrom maps stored packages to allocation input. Each package is
// seeded with its opening hours, so hours consumed before import stay
// consumed. Only active packages contribute.
func PackagesFrom(packages []bookingdomain.CustomerPackage) []Package {
	out := make([]Package, 0, len(packages))
	for _, pkg := range packages {
		out = append(out, Package{
			ID:             pkg.ID,
			AvailableHours: pkg.OpeningHours,
			Active:         pkg.Status == bookingdomain.PackageStatusActive,
		})
	}
	return out
}

// MergeEvents lists live bookings first and deletion snapshots after them.
// Allocate's stable sort preserves that order for events in the same slot.
// A snapshot whose booking still exists is dropped.
func MergeEvents(bookings []bookingdomain.Booking, deleted []auditdomain.DeletedBooking) []Event {
	live := make(map[snowflake.ID]struct{}, len(bookings))
	events := make([]Event, 0, len(bookings)+len(deleted))
	for _, booking := range bookings {
		live[booking.ID] = struct{}{}
		events = append(events, Event{
			BookingID: booking.ID,
			Date:      booking.Date,
			StartHour: booking.StartHour,
			Duration:  booking.Duration,
			Amount:    booking.Charge(),
			Status:    booking.Status,
		})
	}
	for _, snapshot := range deleted {
		if snapshot.BookingID != 0 {
			if _, ok := live[snapshot.BookingID]; ok {
				continue
			}
		}
		events = append(events, Event{
			BookingID: snapshot.BookingID,
			Date:      snapshot.Date,
			StartHour: snapshot.StartHour,
			Duration:  snapshot.Duration,
			Amount:    snapshot.Amount,
			Status:    snapshot.Status,
			Deleted:   true,
		})
	}
	return events
}
