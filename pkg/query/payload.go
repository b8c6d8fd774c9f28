package query

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/bastiangx/dotsearch/internal/utils"
)

// RawInput is caller-supplied search criteria.
// A new RawInput replaces the previous one entirely.
type RawInput struct {
	Words        string
	Prefixes     string
	Postfixes    string
	MinWordCount int
	MaxWordCount int
}

// Payload is the canonical, serializable form of a RawInput.
// Field order is part of the wire contract.
type Payload struct {
	Words        []string `json:"words" msgpack:"words"`
	Prefixes     []string `json:"prefixes" msgpack:"prefixes"`
	Postfixes    []string `json:"postfixes" msgpack:"postfixes"`
	MinWordCount int      `json:"minWordCount" msgpack:"minWordCount"`
	MaxWordCount int      `json:"maxWordCount" msgpack:"maxWordCount"`
}

// Normalize converts raw input into a payload. It never fails: malformed text
// only yields fewer tokens. Bounds are copied without validation.
func Normalize(in RawInput) Payload {
	return Payload{
		Words:        Tokens(in.Words),
		Prefixes:     Tokens(in.Prefixes),
		Postfixes:    Tokens(in.Postfixes),
		MinWordCount: in.MinWordCount,
		MaxWordCount: in.MaxWordCount,
	}
}

// Tokens lowercases s and splits it on runs of whitespace and commas.
// The result is never nil.
func Tokens(s string) []string {
	fields := utils.SplitTokens(utils.Lower(s))
	if fields == nil {
		return []string{}
	}
	return fields
}

// Equal reports exact structural equality: token order matters.
func (p Payload) Equal(o Payload) bool {
	return p.MinWordCount == o.MinWordCount &&
		p.MaxWordCount == o.MaxWordCount &&
		slices.Equal(p.Words, o.Words) &&
		slices.Equal(p.Prefixes, o.Prefixes) &&
		slices.Equal(p.Postfixes, o.Postfixes)
}

// TokenCount is the total number of tokens across all three lists.
func (p Payload) TokenCount() int {
	return len(p.Words) + len(p.Prefixes) + len(p.Postfixes)
}

// Key returns the canonical JSON encoding of p.
// Nil and empty token lists encode the same way.
func (p Payload) Key() string {
	data, err := json.Marshal(p.withEmptyLists())
	if err != nil {
		// Only strings and ints; Marshal cannot fail here.
		return ""
	}
	return string(data)
}

// String is a compact human-readable form used in logs.
func (p Payload) String() string {
	var b strings.Builder
	b.WriteString("words=")
	b.WriteString(strings.Join(p.Words, ","))
	if len(p.Prefixes) > 0 {
		b.WriteString(" pre=")
		b.WriteString(strings.Join(p.Prefixes, ","))
	}
	if len(p.Postfixes) > 0 {
		b.WriteString(" post=")
		b.WriteString(strings.Join(p.Postfixes, ","))
	}
	if p.MinWordCount != 0 || p.MaxWordCount != 0 {
		b.WriteString(" count=")
		b.WriteString(strconv.Itoa(p.MinWordCount))
		b.WriteString("..")
		b.WriteString(strconv.Itoa(p.MaxWordCount))
	}
	return b.String()
}

func (p Payload) withEmptyLists() Payload {
	if p.Words == nil {
		p.Words = []string{}
	}
	if p.Prefixes == nil {
		p.Prefixes = []string{}
	}
	if p.Postfixes == nil {
		p.Postfixes = []string{}
	}
	return p
}
