package deck

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viettienlv97/game-server/internal/randutil"
)

func TestParseCards(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Card
		wantErr  bool
	}{
		{
			name:  "royal flush",
			input: "AsKsQsJsTs",
			expected: []Card{
				{Suit: Spades, Rank: Ace},
				{Suit: Spades, Rank: King},
				{Suit: Spades, Rank: Queen},
				{Suit: Spades, Rank: Jack},
				{Suit: Spades, Rank: Ten},
			},
		},
		{
			name:  "case insensitive with spaces",
			input: "as KH qD jc",
			expected: []Card{
				{Suit: Spades, Rank: Ace},
				{Suit: Hearts, Rank: King},
				{Suit: Diamonds, Rank: Queen},
				{Suit: Clubs, Rank: Jack},
			},
		},
		{name: "invalid rank", input: "XsKs", wantErr: true},
		{name: "invalid suit", input: "AsKx", wantErr: true},
		{name: "odd length", input: "AsK", wantErr: true},
		{name: "empty string", input: "", expected: []Card{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCards(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCardString(t *testing.T) {
	assert.Equal(t, "A♠", NewCard(Spades, Ace).String())
	assert.Equal(t, "10♥", NewCard(Hearts, Ten).String())
	assert.Equal(t, "2♣", NewCard(Clubs, Two).String())
}

func TestCardJSONWireFormat(t *testing.T) {
	b, err := json.Marshal(NewCard(Spades, Ten))
	require.NoError(t, err)
	assert.JSONEq(t, `{"suit":"spades","rank":"10"}`, string(b))

	var c Card
	require.NoError(t, json.Unmarshal([]byte(`{"suit":"diamonds","rank":"Q"}`), &c))
	assert.Equal(t, NewCard(Diamonds, Queen), c)

	assert.Error(t, json.Unmarshal([]byte(`{"suit":"stars","rank":"Q"}`), &c))
	assert.Error(t, json.Unmarshal([]byte(`{"suit":"clubs","rank":"11"}`), &c))
}

func TestShuffledDeckIsAPermutation(t *testing.T) {
	d := NewShuffled(randutil.New(7))
	require.Equal(t, Size, d.Remaining())

	seen := make(map[Card]bool)
	for _, c := range d.DealN(Size) {
		require.True(t, c.Valid(), "card %v", c)
		require.False(t, seen[c], "duplicate card %v", c)
		seen[c] = true
	}
	assert.Len(t, seen, Size)
	assert.Equal(t, 0, d.Remaining())

	_, err := d.Draw(1)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestDraw(t *testing.T) {
	d := NewShuffled(randutil.New(3))

	hole, err := d.Draw(2)
	require.NoError(t, err)
	board, err := d.Draw(5)
	require.NoError(t, err)
	assert.Equal(t, Size-7, d.Remaining())
	assert.NotContains(t, board, hole[0])
	assert.NotContains(t, board, hole[1])

	_, err = d.Draw(-1)
	assert.ErrorIs(t, err, ErrExhausted)
	_, err = d.Draw(Size)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, Size-7, d.Remaining(), "failed draws take nothing")

	assert.Panics(t, func() { d.DealN(Size) })
}

func TestFullIsOrdered(t *testing.T) {
	cards := Full()
	require.Len(t, cards, Size)
	assert.Equal(t, NewCard(Spades, Two), cards[0])
	assert.Equal(t, NewCard(Clubs, Ace), cards[Size-1])
}

func TestShuffleIsDeterministicForSeed(t *testing.T) {
	a := NewShuffled(randutil.New(42)).DealN(10)
	b := NewShuffled(randutil.New(42)).DealN(10)
	c := NewShuffled(randutil.New(43)).DealN(10)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
