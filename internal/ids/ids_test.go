package ids

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()

	assert.Len(t, id, Length)
	assert.NoError(t, Validate(id))
}

func TestNewUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewTimeSorted(t *testing.T) {
	var list []string
	for i := 0; i < 10; i++ {
		list = append(list, New())
		time.Sleep(2 * time.Millisecond)
	}

	for i := 1; i < len(list); i++ {
		assert.Negative(t, strings.Compare(list[i-1], list[i]), "%s >= %s", list[i-1], list[i])
	}
}

func TestGeneratorWithReader(t *testing.T) {
	g := NewGenerator(strings.NewReader(strings.Repeat("x", 64)))

	id := g.New()
	assert.NoError(t, Validate(id))
}

func TestValidate(t *testing.T) {
	valid := New()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"generated", valid, false},
		{"too short", valid[:20], true},
		{"too long", valid + "abc", true},
		{"invalid character", "u" + valid[1:], true},
		{"uppercase", strings.ToUpper(valid), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
