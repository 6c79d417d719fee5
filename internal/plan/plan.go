// Package plan computes installment plans: how many monthly charges fit
// between today and a registration deadline, how large each charge is,
// and on which dates the remaining charges fall. All functions are pure;
// due dates are a read-time projection, never persisted rows.
package plan

import "time"

// Plan describes an installment split of a total. PerCents is charged
// for every installment except the last; LastCents absorbs the rounding
// remainder so PerCents*(Count-1) + LastCents equals the total exactly.
type Plan struct {
	Count     int
	PerCents  int64
	LastCents int64
}

// MonthsBetweenInclusive counts calendar months from today through the
// deadline, both ends inclusive: September to November is 3. Deadlines
// in the past or current month yield 1.
func MonthsBetweenInclusive(today, deadline time.Time) int {
	months := (deadline.Year()-today.Year())*12 + int(deadline.Month()) - int(today.Month()) + 1
	if months < 1 {
		return 1
	}
	return months
}

// roundHalfUpDiv returns total/count rounded half up, in cents.
func roundHalfUpDiv(total int64, count int64) int64 {
	return (2*total + count) / (2 * count)
}

// Split divides a total into count installments with the last absorbing
// the remainder. When half-up rounding would overdraw the total, the
// per-installment amount falls back to the floor so the last installment
// stays positive.
func Split(totalCents int64, count int) Plan {
	if count < 1 {
		count = 1
	}
	per := roundHalfUpDiv(totalCents, int64(count))
	last := totalCents - per*int64(count-1)
	if last <= 0 && count > 1 {
		per = totalCents / int64(count)
		last = totalCents - per*int64(count-1)
	}
	return Plan{Count: count, PerCents: per, LastCents: last}
}

// Build computes the full plan for a total due by deadline, counting
// months from today.
func Build(totalCents int64, today, deadline time.Time) Plan {
	return Split(totalCents, MonthsBetweenInclusive(today, deadline))
}

// AddMonthsClamped advances t by the given number of calendar months,
// clamping the day to the target month's length: Jan 31 plus one month
// is Feb 28 (or 29), not Mar 2. This mirrors how billing anchors behave
// at the gateway.
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)
	lastDay := daysIn(target.Month(), target.Year())
	if d > lastDay {
		d = lastDay
	}
	return time.Date(target.Year(), target.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Installment is one row of the projected payment schedule.
type Installment struct {
	DueDate     time.Time `json:"due_date"`
	AmountCents int64     `json:"amount_cents"`
	Paid        bool      `json:"paid"`
}

// Schedule projects the installment calendar from the payment anchor:
// installment i falls i calendar months after the anchor (the first one
// on the anchor itself, charged at checkout). The first paidCount rows
// are marked paid.
func Schedule(anchor time.Time, p Plan, paidCount int) []Installment {
	out := make([]Installment, 0, p.Count)
	for i := 0; i < p.Count; i++ {
		amount := p.PerCents
		if i == p.Count-1 {
			amount = p.LastCents
		}
		out = append(out, Installment{
			DueDate:     AddMonthsClamped(anchor, i),
			AmountCents: amount,
			Paid:        i < paidCount,
		})
	}
	return out
}
