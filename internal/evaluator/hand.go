package evaluator

import "github.com/viettienlv97/game-server/internal/deck"

// Category is the ordinal strength of a hand, 1 (High Card) to 10 (Royal Flush).
type Category int

const (
	HighCard Category = iota + 1
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "One Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// Hand is the best five-card ranking found in a seven-card set.
type Hand struct {
	Category Category
	// Values is the tie-break vector. Values[0] is the category, followed by
	// the grouping ranks and then kickers, highest first.
	Values []int
	// Cards are the five cards that make the hand.
	Cards []deck.Card
}

// Name returns the category name, e.g. "Full House".
func (h Hand) Name() string {
	return h.Category.String()
}

// Compare returns 1 if a beats b, -1 if b beats a and 0 on a split.
func Compare(a, b Hand) int {
	n := max(len(a.Values), len(b.Values))
	for i := 0; i < n; i++ {
		var va, vb int
		if i < len(a.Values) {
			va = a.Values[i]
		}
		if i < len(b.Values) {
			vb = b.Values[i]
		}
		switch {
		case va > vb:
			return 1
		case va < vb:
			return -1
		}
	}
	return 0
}
