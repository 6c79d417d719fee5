// Package pricing computes checkout totals and room quotes. Everything
// here is pure: amounts in, amounts out, no storage access. Amounts are
// int64 cents at the edges; percentage arithmetic goes through
// shopspring/decimal so discount rounding is exact and explicit.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmhautala/sportsreg/internal/model"
)

// ErrInvalidStay is returned when check-in is not before check-out.
var ErrInvalidStay = errors.New("check-in must be before check-out")

// ErrInvalidOccupancy is returned when the guest count is outside the
// room's allowed range.
var ErrInvalidOccupancy = errors.New("occupancy not accepted by room")

// RoomQuote is the priced result of one room stay.
type RoomQuote struct {
	Nights     int
	BaseCents  int64 // nightly base x nights
	ExtraCents int64 // per-guest surcharge beyond included guests
	TaxCents   int64 // nightly tax x nights
	TotalCents int64 // base + extra + tax
}

// QuoteRoom validates and prices a stay. The base price covers the
// room's included guests; each guest beyond that adds the per-guest
// surcharge per night, up to the room's maximum.
func QuoteRoom(room model.Room, checkIn, checkOut time.Time, occupancy int) (RoomQuote, error) {
	if !checkIn.Before(checkOut) {
		return RoomQuote{}, ErrInvalidStay
	}
	if occupancy < 1 || occupancy > room.MaxGuests {
		return RoomQuote{}, ErrInvalidOccupancy
	}
	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	extraGuests := occupancy - room.IncludedGuests
	if extraGuests < 0 {
		extraGuests = 0
	}
	q := RoomQuote{
		Nights:     nights,
		BaseCents:  room.NightlyCents * int64(nights),
		ExtraCents: room.ExtraGuestCents * int64(extraGuests) * int64(nights),
		TaxCents:   room.NightlyTaxCents * int64(nights),
	}
	q.TotalCents = q.BaseCents + q.ExtraCents + q.TaxCents
	return q, nil
}

// Breakdown is the structured price composition of a checkout. Lines sum
// to TotalCents exactly.
type Breakdown struct {
	Lines      []model.BreakdownLine
	TotalCents int64
}

// ComputeCheckout builds the price breakdown for a checkout: one
// registration line per selected player, one line per quoted room stay,
// and (only in single-payment mode with lodging attached) a negative
// discount line. Installment checkouts are always full price.
func ComputeCheckout(eventFeeCents int64, playerCount int, roomQuotes []RoomQuote, mode model.CheckoutMode, lodgingDiscountPct int) Breakdown {
	var b Breakdown
	fees := eventFeeCents * int64(playerCount)
	b.Lines = append(b.Lines, model.BreakdownLine{
		Label:       fmt.Sprintf("registration x%d", playerCount),
		AmountCents: fees,
	})
	b.TotalCents = fees
	for i, q := range roomQuotes {
		b.Lines = append(b.Lines, model.BreakdownLine{
			Label:       fmt.Sprintf("lodging #%d (%d nights)", i+1, q.Nights),
			AmountCents: q.TotalCents,
		})
		b.TotalCents += q.TotalCents
	}
	if mode == model.ModePayNow && len(roomQuotes) > 0 && lodgingDiscountPct > 0 {
		discount := discountCents(b.TotalCents, lodgingDiscountPct)
		if discount > 0 {
			b.Lines = append(b.Lines, model.BreakdownLine{
				Label:       fmt.Sprintf("lodging discount %d%%", lodgingDiscountPct),
				AmountCents: -discount,
			})
			b.TotalCents -= discount
		}
	}
	return b
}

// discountCents returns pct percent of total, rounded half-up to a cent.
func discountCents(totalCents int64, pct int) int64 {
	d := decimal.NewFromInt(totalCents).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return d.IntPart()
}
