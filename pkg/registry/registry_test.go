package registry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bastiangx/dotsearch/pkg/query"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestAddContains(t *testing.T) {
	r := New()
	assert.True(t, r.Add("Google"))
	assert.False(t, r.Add("google"), "duplicate")
	assert.False(t, r.Add(""))

	assert.True(t, r.Contains("google"))
	assert.True(t, r.Contains("GOOGLE"))
	assert.False(t, r.Contains("goog"))
	assert.Equal(t, 1, r.Len())
}

func TestFoldsLikeTheNormalizer(t *testing.T) {
	r := New()
	require.True(t, r.Add("ΟΔΟΣ"))

	token := query.Tokens("ΟΔΟΣ")[0]
	assert.True(t, r.Contains(token))
	assert.False(t, r.IsFree(token))
	assert.Equal(t, 1, r.CountPrefix("ΟΔΟ"))
}

func TestIsFree(t *testing.T) {
	r := New()
	r.Add("catdog")

	assert.False(t, r.IsFree("catdog"), "registered")
	assert.True(t, r.IsFree("dogcat"))
	assert.False(t, r.IsFree("ab"), "too short")
	assert.True(t, r.IsFree("abc"))
}

func TestCountPrefix(t *testing.T) {
	r := New()
	for _, n := range []string{"cat", "catalog", "category", "dog"} {
		r.Add(n)
	}
	assert.Equal(t, 3, r.CountPrefix("cat"))
	assert.Equal(t, 1, r.CountPrefix("dog"))
	assert.Equal(t, 0, r.CountPrefix("zebra"))
	assert.Equal(t, 4, r.CountPrefix(""))
}

func TestReadFromPlainAndGzip(t *testing.T) {
	content := "alpha\n\n  beta  \nGamma\nalpha\n"

	for name, data := range map[string][]byte{
		"plain": []byte(content),
		"gzip":  gzipped(t, content),
	} {
		t.Run(name, func(t *testing.T) {
			r := New()
			lines, err := r.ReadFrom(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 4, lines)
			assert.Equal(t, 3, r.Len())
			assert.True(t, r.Contains("gamma"))
			assert.True(t, r.Contains("beta"))
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "com.filtered.txt.gz")
	require.NoError(t, os.WriteFile(path, gzipped(t, "one\ntwo\nthree\n"), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.gz"))
	assert.Error(t, err)
}

func TestLoadCorruptGzip(t *testing.T) {
	data := gzipped(t, strings.Repeat("name\n", 100))
	data = data[:len(data)/2]

	_, err := New().ReadFrom(bytes.NewReader(data))
	assert.Error(t, err)
}

func TestBatchLookup(t *testing.T) {
	r := New()
	r.Add("taken")

	got, err := r.BatchLookup(context.Background(), []string{"taken", "open", "no"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"taken": false, "open": true, "no": false}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.BatchLookup(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
