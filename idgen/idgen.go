// Package idgen produces the identifiers used across a browsing session:
// visit ids, session ids and journal rows.
//
// A Generator is injected wherever ids are minted, so tests can swap in a
// deterministic sequence.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings (time-sortable).
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every id of gen ("vis_", "ses_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator of "<prefix>1", "<prefix>2", ... Safe for
// concurrent use. Meant for tests and reproducible logs.
func Sequence(prefix string) Generator {
	var n atomic.Uint64
	return func() string {
		return fmt.Sprintf("%s%d", prefix, n.Add(1))
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// Visit mints visit ids.
var Visit Generator = Prefixed("vis_", Default)

// Session mints session ids.
var Session Generator = Prefixed("ses_", Default)

// Parse validates the UUID part of an id minted by Default (prefix allowed).
func Parse(id string) (uuid.UUID, error) {
	raw := id
	if len(id) > 36 {
		raw = id[len(id)-36:]
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("idgen: invalid id %q: %w", id, err)
	}
	return u, nil
}
