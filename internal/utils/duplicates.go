package utils

// SeenFilter drops repeated strings while keeping first-seen order.
// Not safe for concurrent use.
type SeenFilter struct {
	seen map[string]struct{}
}

// NewSeenFilter creates a filter sized for roughly n entries
func NewSeenFilter(n int) *SeenFilter {
	return &SeenFilter{seen: make(map[string]struct{}, n)}
}

// ShouldInclude returns true the first time word is offered and false afterwards
func (f *SeenFilter) ShouldInclude(word string) bool {
	if _, ok := f.seen[word]; ok {
		return false
	}
	f.seen[word] = struct{}{}
	return true
}

// Len returns the number of distinct words seen so far
func (f *SeenFilter) Len() int {
	return len(f.seen)
}

// Unique returns the distinct values of words in first-seen order
func Unique(words []string) []string {
	f := NewSeenFilter(len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if f.ShouldInclude(w) {
			out = append(out, w)
		}
	}
	return out
}
