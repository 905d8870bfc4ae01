// Package ids mints identifiers for tables, games, seats and log records:
// UUIDv7 values in a 26-character lowercase base32 form that sorts by
// creation time.
package ids

import (
	"encoding/base32"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Crockford's base32, ascending in ASCII so encoded ids keep UUIDv7 order.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// Length of every encoded id.
const Length = 26

// Generator mints ids. The zero value reads from crypto/rand.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator drawing randomness from r. Tests pass a
// deterministic reader; nil means crypto/rand.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// New returns an id from the default generator.
func New() string {
	return (&Generator{}).New()
}

// New returns a fresh id.
func (g *Generator) New() string {
	var (
		u   uuid.UUID
		err error
	)
	if g.rand != nil {
		u, err = uuid.NewV7FromReader(g.rand)
	} else {
		u, err = uuid.NewV7()
	}
	if err != nil {
		panic("ids: generate uuid: " + err.Error())
	}
	return encoding.EncodeToString(u[:])
}

// Validate checks that id is a well-formed encoded UUID.
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("id must be exactly %d characters, got %d", Length, len(id))
	}
	b, err := encoding.DecodeString(id)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", id, err)
	}
	if len(b) != 16 {
		return fmt.Errorf("invalid id %q: decodes to %d bytes", id, len(b))
	}
	return nil
}
