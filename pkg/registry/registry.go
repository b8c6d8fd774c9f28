// Package registry holds the set of registered names a search server checks candidates against.
package registry

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bastiangx/dotsearch/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
	"github.com/tchap/go-patricia/v2/patricia"
)

// MinFreeLength is the shortest name ever reported as free.
const MinFreeLength = 3

const progressEvery = 1_000_000

// Registry is a set of registered names backed by a patricia trie.
// It is safe for concurrent readers and writers.
type Registry struct {
	trie  *patricia.Trie
	count int
	mu    sync.RWMutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{trie: patricia.NewTrie()}
}

// Load reads a registry file: one name per line, gzip-compressed or plain.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening registry %s: %w", path, err)
	}
	defer f.Close()

	start := time.Now()
	r := New()
	n, err := r.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}
	log.Debugf("Registry %s loaded: %s names in %v", path, utils.FormatWithCommas(n), time.Since(start))
	return r, nil
}

// ReadFrom adds every name in rd, detecting gzip by its magic bytes.
// It returns the number of lines read.
func (r *Registry) ReadFrom(rd io.Reader) (int, error) {
	br := bufio.NewReaderSize(rd, 64*1024)
	src := io.Reader(br)

	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return 0, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	scanner := bufio.NewScanner(src)
	lines := 0
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		r.Add(name)
		lines++
		if lines%progressEvery == 0 {
			log.Debugf("%d million names loaded", lines/progressEvery)
		}
	}
	if err := scanner.Err(); err != nil {
		return lines, err
	}
	return lines, nil
}

// Add inserts name (lowercased). It reports whether the name was new.
func (r *Registry) Add(name string) bool {
	name = utils.Lower(name)
	if name == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.trie.Insert(patricia.Prefix(name), true) {
		r.count++
		return true
	}
	return false
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trie.Get(patricia.Prefix(utils.Lower(name))) != nil
}

// IsFree reports whether name can be registered: long enough and not taken.
func (r *Registry) IsFree(name string) bool {
	if len(name) < MinFreeLength {
		return false
	}
	return !r.Contains(name)
}

// CountPrefix returns how many registered names start with prefix.
func (r *Registry) CountPrefix(prefix string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	err := r.trie.VisitSubtree(patricia.Prefix(utils.Lower(prefix)), func(p patricia.Prefix, item patricia.Item) error {
		count++
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting registry subtree: %v", err)
	}
	return count
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// BatchLookup reports for every word whether it is free.
func (r *Registry) BatchLookup(ctx context.Context, words []string) (map[string]bool, error) {
	out := make(map[string]bool, len(words))
	for i, w := range words {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[w] = r.IsFree(w)
	}
	return out, nil
}

// Stats returns counters for status endpoints.
func (r *Registry) Stats() map[string]int {
	return map[string]int{
		"registeredNames": r.Len(),
	}
}
