package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// keyFieldSeparator is the ASCII unit separator, which does not occur in titles or locations.
const keyFieldSeparator = "\x1f"

// StableKey identifies a source event by content. It survives the publisher
// deleting and recreating the event as long as start, end, title and location
// are unchanged.
type StableKey string

func (k StableKey) String() string {
	return string(k)
}

// Short returns a prefix of the key for log lines.
func (k StableKey) Short() string {
	if len(k) > 12 {
		return string(k[:12])
	}
	return string(k)
}

// DeriveKey computes the stable key of a source event from its raw (not
// normalized) title, location, start and end.
//
// An event without a start cannot be identified. DeriveKey then returns
// ErrIdentityDerivation together with a fallback key: a hash of the event's
// store ID when it has one, otherwise a random key. An event with a random
// key is never matched again, so it is created on every run and orphaned on
// the next one.
func DeriveKey(e Event) (StableKey, error) {
	if e.Start.IsZero() {
		if e.ID != "" {
			return digest("uid", e.ID), fmt.Errorf("%w: event %q has no start, falling back to its UID", ErrIdentityDerivation, e.ID)
		}
		return digest("random", uuid.NewString()), fmt.Errorf("%w: event %q has neither start nor UID, using a random key", ErrIdentityDerivation, e.Title)
	}

	start := canonicalTime(e.Start)
	end := start
	if !e.End.IsZero() {
		end = canonicalTime(e.End)
	}
	return digest(start, end, e.Title, e.Location), nil
}

func digest(fields ...string) StableKey {
	sum := sha256.Sum256([]byte(strings.Join(fields, keyFieldSeparator)))
	return StableKey(hex.EncodeToString(sum[:]))
}

// canonicalTime renders t so that dates, zoned date-times and floating
// date-times never share a representation.
func canonicalTime(t Time) string {
	switch {
	case t.AllDay:
		return "D" + t.Value.Format(dateLayout)
	case t.Floating:
		return "F" + t.Value.Format(dateTimeLayout)
	default:
		return "T" + t.Value.UTC().Format(dateTimeLayout) + "Z"
	}
}
