// Package vertex provides concrete vertex identifiers usable as keys of a
// replay manager. Any comparable type with a filesystem-safe String form
// works; these two cover the common cases.
package vertex

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ID is a random 128-bit execution vertex identifier.
// Its textual form is 32 lowercase hex digits, safe for file names.
type ID uuid.UUID

// NewID returns a fresh random ID.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the 32-digit hex form produced by String.
// The dashed UUID form is accepted as well.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("parse vertex id %q: %w", s, err)
	}
	return ID(u), nil
}

// String returns the hex form of the ID.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Name is a human-assigned vertex identifier such as "tokenizer-3".
type Name string

// String returns the name unchanged.
func (n Name) String() string {
	return string(n)
}
