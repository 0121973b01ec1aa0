package tweet

// Identity policy
//
// Two tweets are the same record iff their Text is byte-for-byte equal.
// ID and Stamp take no part in identity: tweets with identical text but
// different ids collapse into one entry and the first one seen survives.
// The API is known to hand out unstable ids, so text is the only field
// that reliably identifies a record across overlapping pages.

// SameIdentity reports whether a and b are the same record.
func SameIdentity(a, b Tweet) bool {
	return a.Text == b.Text
}

// IdentityKey returns the canonical deduplication key of t.
func IdentityKey(t Tweet) string {
	return t.Text
}

// Set is an insertion-ordered collection of tweets with no two elements
// sharing an identity key. The zero value is not usable; call NewSet.
//
// A Set is not safe for concurrent use.
type Set struct {
	index map[string]struct{}
	items []Tweet
}

// NewSet creates an empty set sized for capacity tweets.
func NewSet(capacity int) *Set {
	if capacity < 0 {
		capacity = 0
	}
	return &Set{
		index: make(map[string]struct{}, capacity),
		items: make([]Tweet, 0, capacity),
	}
}

// Add inserts t unless a tweet with the same identity is already present.
// It returns true when t was inserted.
func (s *Set) Add(t Tweet) bool {
	key := IdentityKey(t)
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = struct{}{}
	s.items = append(s.items, t)
	return true
}

// AddAll inserts every tweet of ts in order and returns how many were new.
func (s *Set) AddAll(ts []Tweet) int {
	added := 0
	for _, t := range ts {
		if s.Add(t) {
			added++
		}
	}
	return added
}

// Contains reports whether a tweet with the identity of t is present.
func (s *Set) Contains(t Tweet) bool {
	_, ok := s.index[IdentityKey(t)]
	return ok
}

// Len returns the number of distinct tweets.
func (s *Set) Len() int {
	return len(s.items)
}

// Items returns the tweets in insertion order. The returned slice is a copy.
func (s *Set) Items() []Tweet {
	out := make([]Tweet, len(s.items))
	copy(out, s.items)
	return out
}

// Dedupe returns ts without identity duplicates, keeping first occurrences
// in their original order.
func Dedupe(ts []Tweet) []Tweet {
	s := NewSet(len(ts))
	s.AddAll(ts)
	return s.items
}
