package game

import (
	"math"
	"slices"
)

// Settlement is the result of splitting a pot.
type Settlement struct {
	Rake    int64
	Payouts []Payout
}

// Total returns the chips paid out, rake excluded.
func (s Settlement) Total() int64 {
	var total int64
	for _, p := range s.Payouts {
		total += p.Amount
	}
	return total
}

// RakeBasisPoints converts a rake fraction to whole basis points so the
// rake can be computed in integer arithmetic.
func RakeBasisPoints(fraction float64) int64 {
	if fraction <= 0 {
		return 0
	}
	return int64(math.Round(fraction * 10000))
}

// Settle splits pot among winners after taking floor(pot * rake) for the
// house. The remainder is shared evenly and the first remainder%len(winners)
// winners by seat position get one extra chip each.
func Settle(pot int64, winners []*Player, rake float64) Settlement {
	if len(winners) == 0 || pot <= 0 {
		return Settlement{}
	}

	taken := pot * RakeBasisPoints(rake) / 10000
	remainder := pot - taken

	ordered := slices.Clone(winners)
	slices.SortFunc(ordered, func(a, b *Player) int { return a.Position - b.Position })

	if len(ordered) == 1 {
		p := ordered[0]
		return Settlement{
			Rake:    taken,
			Payouts: []Payout{{PlayerID: p.ID, UserID: p.UserID, Position: p.Position, Amount: remainder}},
		}
	}

	n := int64(len(ordered))
	base, extra := remainder/n, remainder%n
	payouts := make([]Payout, len(ordered))
	for i, p := range ordered {
		amount := base
		if int64(i) < extra {
			amount++
		}
		payouts[i] = Payout{PlayerID: p.ID, UserID: p.UserID, Position: p.Position, Amount: amount}
	}
	return Settlement{Rake: taken, Payouts: payouts}
}
