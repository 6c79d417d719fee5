package pricing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmhautala/sportsreg/internal/model"
	"github.com/jmhautala/sportsreg/internal/pricing"
)

var testRoom = model.Room{
	ID:              1,
	Name:            "Standard Twin",
	NightlyCents:    8000,
	IncludedGuests:  2,
	MaxGuests:       4,
	ExtraGuestCents: 1500,
	NightlyTaxCents: 800,
}

func day(d int) time.Time {
	return time.Date(2026, time.July, d, 0, 0, 0, 0, time.UTC)
}

func TestQuoteRoom(t *testing.T) {
	t.Run("two nights included occupancy", func(t *testing.T) {
		q, err := pricing.QuoteRoom(testRoom, day(10), day(12), 2)
		require.NoError(t, err)
		assert.Equal(t, 2, q.Nights)
		assert.Equal(t, int64(16000), q.BaseCents)
		assert.Equal(t, int64(0), q.ExtraCents)
		assert.Equal(t, int64(1600), q.TaxCents)
		assert.Equal(t, int64(17600), q.TotalCents)
	})

	t.Run("extra guests add per-night surcharge", func(t *testing.T) {
		q, err := pricing.QuoteRoom(testRoom, day(10), day(13), 4)
		require.NoError(t, err)
		assert.Equal(t, 3, q.Nights)
		assert.Equal(t, int64(24000), q.BaseCents)
		// 2 extra guests x 1500 x 3 nights
		assert.Equal(t, int64(9000), q.ExtraCents)
		assert.Equal(t, int64(2400), q.TaxCents)
		assert.Equal(t, int64(35400), q.TotalCents)
	})

	t.Run("check-in must precede check-out", func(t *testing.T) {
		_, err := pricing.QuoteRoom(testRoom, day(12), day(12), 2)
		assert.ErrorIs(t, err, pricing.ErrInvalidStay)

		_, err = pricing.QuoteRoom(testRoom, day(13), day(12), 2)
		assert.ErrorIs(t, err, pricing.ErrInvalidStay)
	})

	t.Run("occupancy outside room range", func(t *testing.T) {
		_, err := pricing.QuoteRoom(testRoom, day(10), day(12), 5)
		assert.ErrorIs(t, err, pricing.ErrInvalidOccupancy)

		_, err = pricing.QuoteRoom(testRoom, day(10), day(12), 0)
		assert.ErrorIs(t, err, pricing.ErrInvalidOccupancy)
	})
}

func TestComputeCheckout(t *testing.T) {
	roomQuote, err := pricing.QuoteRoom(testRoom, day(10), day(12), 2)
	require.NoError(t, err)

	t.Run("pay now with lodging gets the discount", func(t *testing.T) {
		b := pricing.ComputeCheckout(5000, 2, []pricing.RoomQuote{roomQuote}, model.ModePayNow, 10)
		// fees 10000 + lodging 17600 = 27600, minus 10% = 24840
		assert.Equal(t, int64(24840), b.TotalCents)
		require.Len(t, b.Lines, 3)
		assert.Equal(t, int64(-2760), b.Lines[2].AmountCents)
	})

	t.Run("installment mode is full price", func(t *testing.T) {
		b := pricing.ComputeCheckout(5000, 2, []pricing.RoomQuote{roomQuote}, model.ModeInstallmentPlan, 10)
		assert.Equal(t, int64(27600), b.TotalCents)
		assert.Len(t, b.Lines, 2, "no discount line")
	})

	t.Run("pay now without lodging gets no discount", func(t *testing.T) {
		b := pricing.ComputeCheckout(5000, 3, nil, model.ModePayNow, 10)
		assert.Equal(t, int64(15000), b.TotalCents)
		assert.Len(t, b.Lines, 1)
	})

	t.Run("lines always sum to the total", func(t *testing.T) {
		b := pricing.ComputeCheckout(4990, 5, []pricing.RoomQuote{roomQuote, roomQuote}, model.ModePayNow, 15)
		var sum int64
		for _, l := range b.Lines {
			sum += l.AmountCents
		}
		assert.Equal(t, b.TotalCents, sum)
	})
}
