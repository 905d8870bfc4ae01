package deck

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
)

// Size is the number of cards in a standard deck.
const Size = 52

// ErrExhausted is returned by Draw when fewer cards remain than requested.
var ErrExhausted = errors.New("deck exhausted")

// Full returns the 52 distinct cards, spades first, each suit two to ace.
func Full() []Card {
	cards := make([]Card, 0, Size)
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			cards = append(cards, NewCard(suit, rank))
		}
	}
	return cards
}

// Deck is the stack a single game deals from. It is shuffled once when
// created; dealt cards never return to it.
type Deck struct {
	cards []Card
	top   int
}

// NewShuffled returns a full deck shuffled with rng (Fisher-Yates). The
// same seed always yields the same order.
func NewShuffled(rng *rand.Rand) *Deck {
	cards := Full()
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
	return &Deck{cards: cards}
}

// Draw deals n cards off the top.
func (d *Deck) Draw(n int) ([]Card, error) {
	if n < 0 || n > d.Remaining() {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrExhausted, n, d.Remaining())
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.top:d.top+n])
	d.top += n
	return cards, nil
}

// DealN is Draw for a deal that always fits: nine seats take 18 cards and
// the board five.
func (d *Deck) DealN(n int) []Card {
	cards, err := d.Draw(n)
	if err != nil {
		panic(err)
	}
	return cards
}

// Remaining is the number of undealt cards.
func (d *Deck) Remaining() int { return len(d.cards) - d.top }
