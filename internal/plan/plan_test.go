package plan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmhautala/sportsreg/internal/plan"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthsBetweenInclusive(t *testing.T) {
	tests := []struct {
		name     string
		today    time.Time
		deadline time.Time
		want     int
	}{
		{"same month", date(2026, time.September, 1), date(2026, time.September, 28), 1},
		{"three months out", date(2026, time.September, 15), date(2026, time.November, 1), 3},
		{"across year boundary", date(2026, time.November, 20), date(2027, time.February, 5), 4},
		{"deadline in the past clamps to one", date(2026, time.September, 1), date(2026, time.June, 1), 1},
		{"day of month is irrelevant", date(2026, time.September, 30), date(2026, time.October, 1), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, plan.MonthsBetweenInclusive(tt.today, tt.deadline))
		})
	}
}

func TestSplit_RoundingLaw(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		count    int
		wantPer  int64
		wantLast int64
	}{
		{"100.00 in 3", 10000, 3, 3333, 3334},
		{"300.00 in 3 divides evenly", 30000, 3, 10000, 10000},
		{"single installment", 4990, 1, 4990, 4990},
		{"10.01 in 2 rounds half up", 1001, 2, 501, 500},
		{"0.10 in 4", 10, 4, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := plan.Split(tt.total, tt.count)
			assert.Equal(t, tt.count, p.Count)
			assert.Equal(t, tt.wantPer, p.PerCents)
			assert.Equal(t, tt.wantLast, p.LastCents)
			// The law: installments reproduce the total exactly.
			sum := p.PerCents*int64(p.Count-1) + p.LastCents
			assert.Equal(t, tt.total, sum)
		})
	}
}

func TestSplit_SumAlwaysExact(t *testing.T) {
	for total := int64(1); total <= 1000; total += 7 {
		for count := 1; count <= 12; count++ {
			p := plan.Split(total, count)
			sum := p.PerCents*int64(p.Count-1) + p.LastCents
			require.Equal(t, total, sum, "total=%d count=%d", total, count)
			require.Positive(t, p.LastCents, "total=%d count=%d", total, count)
		}
	}
}

func TestBuild_ThreeMonthScenario(t *testing.T) {
	// total $300, deadline 3 months out: 3 installments of $100, first
	// charged at creation, two remaining on the recurring schedule.
	today := date(2026, time.September, 1)
	deadline := date(2026, time.November, 30)
	p := plan.Build(30000, today, deadline)
	assert.Equal(t, 3, p.Count)
	assert.Equal(t, int64(10000), p.PerCents)
	assert.Equal(t, int64(10000), p.LastCents)
	assert.Equal(t, 2, p.Count-1, "remaining recurring charges after the first")
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{"plain month add", date(2026, time.September, 10), 1, date(2026, time.October, 10)},
		{"jan 31 clamps to feb 28", date(2026, time.January, 31), 1, date(2026, time.February, 28)},
		{"jan 31 leap year clamps to feb 29", date(2028, time.January, 31), 1, date(2028, time.February, 29)},
		{"oct 31 to nov 30", date(2026, time.October, 31), 1, date(2026, time.November, 30)},
		{"clamping does not stick", date(2026, time.January, 31), 2, date(2026, time.March, 31)},
		{"across year", date(2026, time.November, 15), 3, date(2027, time.February, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, plan.AddMonthsClamped(tt.from, tt.months))
		})
	}
}

func TestSchedule_Projection(t *testing.T) {
	anchor := date(2026, time.January, 31)
	p := plan.Plan{Count: 3, PerCents: 3333, LastCents: 3334}
	sched := plan.Schedule(anchor, p, 1)

	require.Len(t, sched, 3)
	assert.Equal(t, date(2026, time.January, 31), sched[0].DueDate)
	assert.Equal(t, date(2026, time.February, 28), sched[1].DueDate)
	assert.Equal(t, date(2026, time.March, 31), sched[2].DueDate)

	assert.True(t, sched[0].Paid, "first installment charged at checkout")
	assert.False(t, sched[1].Paid)
	assert.False(t, sched[2].Paid)

	assert.Equal(t, int64(3333), sched[0].AmountCents)
	assert.Equal(t, int64(3333), sched[1].AmountCents)
	assert.Equal(t, int64(3334), sched[2].AmountCents)
}
