// Package evaluator ranks seven-card hold'em hands.
package evaluator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/viettienlv97/game-server/internal/deck"
)

var (
	// ErrCardCount is returned when the input is not exactly seven cards.
	ErrCardCount = errors.New("evaluator: hand evaluation requires exactly 7 cards")
	// ErrInvalidCard is returned for unknown or repeated cards.
	ErrInvalidCard = errors.New("evaluator: invalid card")
)

// Evaluate returns the best five-card hand in cards. Categories are checked
// from strongest to weakest and the first match wins.
func Evaluate(cards []deck.Card) (Hand, error) {
	if len(cards) != 7 {
		return Hand{}, fmt.Errorf("%w: got %d", ErrCardCount, len(cards))
	}

	sorted := slices.Clone(cards)
	seen := make(map[deck.Card]bool, len(sorted))
	for _, c := range sorted {
		if !c.Valid() {
			return Hand{}, fmt.Errorf("%w: %v", ErrInvalidCard, c)
		}
		if seen[c] {
			return Hand{}, fmt.Errorf("%w: duplicate %v", ErrInvalidCard, c)
		}
		seen[c] = true
	}
	// Rank descending, then suit, so the result never depends on input order.
	slices.SortFunc(sorted, func(a, b deck.Card) int {
		if a.Rank != b.Rank {
			return int(b.Rank) - int(a.Rank)
		}
		return int(a.Suit) - int(b.Suit)
	})

	var counts [15]int
	var suitCounts [4]int
	for _, c := range sorted {
		counts[c.Rank]++
		suitCounts[c.Suit]++
	}

	flushSuit := deck.Suit(-1)
	for s, n := range suitCounts {
		if n >= 5 {
			flushSuit = deck.Suit(s)
		}
	}

	if flushSuit >= 0 {
		suited := filterSuit(sorted, flushSuit)
		if high := straightHigh(rankSet(suited)); high > 0 {
			ranks := straightRanks(high)
			if high == int(deck.Ace) {
				return build(RoyalFlush, []int{high}, pick(suited, ranks)), nil
			}
			return build(StraightFlush, []int{high}, pick(suited, ranks)), nil
		}
	}

	quads := ranksWithCount(counts, 4)
	if len(quads) > 0 {
		q := quads[0]
		k := kickers(sorted, 1, q)
		return build(FourOfAKind, append([]int{q}, k...), pick(sorted, append([]int{q, q, q, q}, k...))), nil
	}

	trips := ranksWithCount(counts, 3)
	pairs := ranksWithCount(counts, 2)
	if len(trips) > 0 {
		t := trips[0]
		// A second set of trips plays as the pair.
		candidates := append(slices.Clone(trips[1:]), pairs...)
		slices.SortFunc(candidates, func(a, b int) int { return b - a })
		if len(candidates) > 0 {
			p := candidates[0]
			return build(FullHouse, []int{t, p}, pick(sorted, []int{t, t, t, p, p})), nil
		}
	}

	if flushSuit >= 0 {
		suited := filterSuit(sorted, flushSuit)[:5]
		values := make([]int, 0, 5)
		for _, c := range suited {
			values = append(values, int(c.Rank))
		}
		return build(Flush, values, suited), nil
	}

	if high := straightHigh(rankSet(sorted)); high > 0 {
		return build(Straight, []int{high}, pick(sorted, straightRanks(high))), nil
	}

	if len(trips) > 0 {
		t := trips[0]
		k := kickers(sorted, 2, t)
		return build(ThreeOfAKind, append([]int{t}, k...), pick(sorted, append([]int{t, t, t}, k...))), nil
	}

	if len(pairs) >= 2 {
		hi, lo := pairs[0], pairs[1]
		k := kickers(sorted, 1, hi, lo)
		return build(TwoPair, append([]int{hi, lo}, k...), pick(sorted, append([]int{hi, hi, lo, lo}, k...))), nil
	}

	if len(pairs) == 1 {
		p := pairs[0]
		k := kickers(sorted, 3, p)
		return build(OnePair, append([]int{p}, k...), pick(sorted, append([]int{p, p}, k...))), nil
	}

	k := kickers(sorted, 5)
	return build(HighCard, k, pick(sorted, k)), nil
}

// MustEvaluate is Evaluate for inputs known to be valid.
func MustEvaluate(cards []deck.Card) Hand {
	h, err := Evaluate(cards)
	if err != nil {
		panic(err)
	}
	return h
}

func build(cat Category, ranks []int, cards []deck.Card) Hand {
	values := make([]int, 0, len(ranks)+1)
	values = append(values, int(cat))
	values = append(values, ranks...)
	return Hand{Category: cat, Values: values, Cards: cards}
}

func filterSuit(cards []deck.Card, suit deck.Suit) []deck.Card {
	out := make([]deck.Card, 0, len(cards))
	for _, c := range cards {
		if c.Suit == suit {
			out = append(out, c)
		}
	}
	return out
}

func rankSet(cards []deck.Card) [15]bool {
	var set [15]bool
	for _, c := range cards {
		set[c.Rank] = true
	}
	return set
}

// straightHigh returns the top rank of the best straight, 5 for the wheel,
// or 0 when there is none.
func straightHigh(set [15]bool) int {
	for high := int(deck.Ace); high >= int(deck.Six); high-- {
		if set[high] && set[high-1] && set[high-2] && set[high-3] && set[high-4] {
			return high
		}
	}
	if set[deck.Ace] && set[deck.Two] && set[deck.Three] && set[deck.Four] && set[deck.Five] {
		return int(deck.Five)
	}
	return 0
}

func straightRanks(high int) []int {
	if high == int(deck.Five) {
		return []int{5, 4, 3, 2, int(deck.Ace)}
	}
	return []int{high, high - 1, high - 2, high - 3, high - 4}
}

// ranksWithCount lists ranks held exactly n times, highest first.
func ranksWithCount(counts [15]int, n int) []int {
	var out []int
	for r := int(deck.Ace); r >= int(deck.Two); r-- {
		if counts[r] == n {
			out = append(out, r)
		}
	}
	return out
}

// kickers returns the n highest ranks not in exclude, one per card.
func kickers(sorted []deck.Card, n int, exclude ...int) []int {
	out := make([]int, 0, n)
	for _, c := range sorted {
		if len(out) == n {
			break
		}
		if slices.Contains(exclude, int(c.Rank)) {
			continue
		}
		out = append(out, int(c.Rank))
	}
	return out
}

// pick selects one unused card per requested rank, in request order.
func pick(sorted []deck.Card, ranks []int) []deck.Card {
	used := make([]bool, len(sorted))
	out := make([]deck.Card, 0, len(ranks))
	for _, r := range ranks {
		for i, c := range sorted {
			if !used[i] && int(c.Rank) == r {
				used[i] = true
				out = append(out, c)
				break
			}
		}
	}
	return out
}
