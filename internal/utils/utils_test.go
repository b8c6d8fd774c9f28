package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"foo bar", []string{"foo", "bar"}},
		{"Foo, Bar  baz", []string{"Foo", "Bar", "baz"}},
		{",,, ,", []string{}},
		{"", []string{}},
		{"\tone\n,two,", []string{"one", "two"}},
	}

	for _, tc := range tests {
		got := SplitTokens(tc.input)
		if len(tc.expected) == 0 {
			assert.Empty(t, got, "input %q", tc.input)
			continue
		}
		assert.Equal(t, tc.expected, got, "input %q", tc.input)
	}
}

func TestLower(t *testing.T) {
	assert.Equal(t, "hello-world", Lower("Hello-World"))
	assert.Equal(t, "straße", Lower("Straße"))
	// Final sigma only folds correctly with Unicode special casing.
	assert.Equal(t, "οδος", Lower("ΟΔΟΣ"))
	assert.NotEqual(t, Lower("ΟΔΟΣ"), strings.ToLower("ΟΔΟΣ"))
}

func TestIsDomainLabel(t *testing.T) {
	assert.True(t, IsDomainLabel("hello-world2"))
	assert.False(t, IsDomainLabel(""))
	assert.False(t, IsDomainLabel("hello.world"))
	assert.False(t, IsDomainLabel("under_score"))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Unique([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, Unique(nil))
}

func TestFormatWithCommas(t *testing.T) {
	cases := map[int]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		123456:   "123,456",
		1234567:  "1,234,567",
		-9876543: "-9,876,543",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatWithCommas(in))
	}
}

func TestTOMLRoundTripWithRecovery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.toml")

	type section struct {
		Name  string `toml:"name"`
		Limit int    `toml:"limit"`
		On    bool   `toml:"on"`
	}
	type doc struct {
		Main section `toml:"main"`
	}

	require.NoError(t, SaveTOMLFile(doc{Main: section{Name: "x", Limit: 7, On: true}}, path))
	assert.True(t, FileExists(path))

	data, err := ParseTOMLWithRecovery(path)
	require.NoError(t, err)
	main, ok := ExtractSection(data, "main")
	require.True(t, ok)

	name, ok := ExtractString(main, "name")
	assert.True(t, ok)
	assert.Equal(t, "x", name)
	limit, ok := ExtractInt64(main, "limit")
	assert.True(t, ok)
	assert.Equal(t, 7, limit)
	on, ok := ExtractBool(main, "on")
	assert.True(t, ok)
	assert.True(t, on)

	require.NoError(t, os.WriteFile(path, []byte("[main\nbroken"), 0o644))
	_, err = ParseTOMLWithRecovery(path)
	assert.Error(t, err)
}
