// Package search expands a query payload into candidate names and splits them
// into free and reserved using a Lookuper.
package search

import (
	"context"
	"fmt"

	"github.com/bastiangx/dotsearch/internal/utils"
	"github.com/bastiangx/dotsearch/pkg/query"
)

// Lookuper reports for every word whether it is free.
// registry.Registry and transport.Client both satisfy it.
type Lookuper interface {
	BatchLookup(ctx context.Context, words []string) (map[string]bool, error)
}

// Expand builds the candidate names for p, without duplicates and in a
// stable order. At most limit candidates are returned; limit <= 0 means no cap.
//
// Prefix candidates are prefixes plus words, postfix candidates are postfixes
// plus words. One-word names are every token, two-word names join a prefix
// and a postfix candidate, three-word names put a word between them. Parts of
// one name are always distinct tokens.
func Expand(p query.Payload, limit int) []string {
	words := utils.Unique(p.Words)
	pre := utils.Unique(append(append([]string{}, p.Prefixes...), words...))
	post := utils.Unique(append(append([]string{}, p.Postfixes...), words...))

	seen := utils.NewSeenFilter(len(pre) * len(post))
	out := make([]string, 0, len(pre)*len(post))
	full := func() bool { return limit > 0 && len(out) >= limit }
	add := func(name string) {
		if !full() && seen.ShouldInclude(name) {
			out = append(out, name)
		}
	}

	if p.MinWordCount <= 1 && p.MaxWordCount >= 1 {
		for _, list := range [][]string{p.Prefixes, p.Words, p.Postfixes} {
			for _, w := range list {
				add(w)
			}
		}
	}

	if p.MaxWordCount >= 2 && p.MinWordCount <= 2 {
		for _, a := range pre {
			for _, b := range post {
				if a != b {
					add(a + b)
				}
			}
			if full() {
				return out
			}
		}
	}

	if p.MaxWordCount >= 3 && p.MinWordCount <= 3 {
		for _, a := range pre {
			for _, w := range words {
				if a == w {
					continue
				}
				for _, b := range post {
					if a != b && w != b {
						add(a + w + b)
					}
				}
			}
			if full() {
				return out
			}
		}
	}
	return out
}

// Run expands p, looks every candidate up and returns the normalized result.
func Run(ctx context.Context, lookup Lookuper, p query.Payload, limit int) (query.Result, error) {
	candidates := Expand(p, limit)
	if len(candidates) == 0 {
		return query.EmptyResult(), nil
	}

	isFree, err := lookup.BatchLookup(ctx, candidates)
	if err != nil {
		return query.Result{}, fmt.Errorf("looking up %d candidates: %w", len(candidates), err)
	}

	var free, reserved []string
	for _, name := range candidates {
		f, ok := isFree[name]
		switch {
		case !ok:
			// Unknown to the lookup: do not claim it either way.
			continue
		case f:
			free = append(free, name)
		default:
			reserved = append(reserved, name)
		}
	}
	return query.NormalizeResult(free, reserved), nil
}
