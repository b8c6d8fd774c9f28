package zone

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bastiangx/dotsearch/pkg/transport"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleZone = `; zone header
$ORIGIN com.
*.com. 86400 in a 127.0.0.1
aaa.com. 172800 in ns ns1.example.net.
aaa.com. 172800 in ns ns2.example.net.
BBB.com. 172800 in ns ns1.example.net.

ccc.com. 172800 in ds 1234 8 2 abcd
noname
aaa.com. 172800 in ns ns3.example.net.
`

func TestFilter(t *testing.T) {
	var out bytes.Buffer
	n, err := Filter(strings.NewReader(sampleZone), &out)
	require.NoError(t, err)

	// aaa appears again after ccc: only consecutive duplicates are dropped.
	assert.Equal(t, 4, n)
	assert.Equal(t, "aaa\nbbb\nccc\naaa\n", out.String())
}

func TestFilterEmpty(t *testing.T) {
	var out bytes.Buffer
	n, err := Filter(strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, out.String())
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "com.txt.gz.filtered.txt.gz", DefaultOutputPath("com.txt.gz"))
}

func readGzip(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(data)
}

func TestFilterFileGzipInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "com.txt.gz")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sampleZone))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(in, buf.Bytes(), 0o644))

	out, n, err := FilterFile(in, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultOutputPath(in), out)
	assert.Equal(t, 4, n)
	assert.Equal(t, "aaa\nbbb\nccc\naaa\n", readGzip(t, out))
}

func TestFilterFilePlainInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "com.txt")
	out := filepath.Join(dir, "names.gz")
	require.NoError(t, os.WriteFile(in, []byte("x1.com. ns a.\nx1.com. ns b.\nx2.com. ns a.\n"), 0o644))

	got, n, err := FilterFile(in, out)
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.Equal(t, 2, n)
	assert.Equal(t, "x1\nx2\n", readGzip(t, out))
}

func TestFilterFileMissing(t *testing.T) {
	_, _, err := FilterFile(filepath.Join(t.TempDir(), "missing.gz"), "")
	assert.Error(t, err)
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newZoneServer(t *testing.T) *httptest.Server {
	t.Helper()
	zoneData := gzipBytes(t, sampleZone)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/authenticate", func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username != "user" || req.Password != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":"tok"}`))
	})
	mux.HandleFunc("/czds/downloads/com.zone", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(zoneData)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload(t *testing.T) {
	srv := newZoneServer(t)
	out := filepath.Join(t.TempDir(), "com.names.gz")

	got, n, err := Download(context.Background(), srv.URL+"/api/authenticate", srv.URL+"/czds/downloads/com.zone", "user", "secret", out)
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.Equal(t, 4, n)
	assert.Equal(t, "aaa\nbbb\nccc\naaa\n", readGzip(t, out))
}

func TestDownloadBadCredentials(t *testing.T) {
	srv := newZoneServer(t)
	out := filepath.Join(t.TempDir(), "com.names.gz")

	_, _, err := Download(context.Background(), srv.URL+"/api/authenticate", srv.URL+"/czds/downloads/com.zone", "user", "wrong", out)
	var statusErr *transport.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.NoFileExists(t, out)
}

func TestDownloadRejectedZoneRequest(t *testing.T) {
	srv := newZoneServer(t)
	out := filepath.Join(t.TempDir(), "com.names.gz")

	_, _, err := Download(context.Background(), srv.URL+"/api/authenticate", srv.URL+"/czds/downloads/missing.zone", "user", "secret", out)
	var statusErr *transport.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.NoFileExists(t, out)
}

func TestDownloadNeedsCredentials(t *testing.T) {
	_, _, err := Download(context.Background(), DefaultAuthURL, DefaultZoneURL, "", "", "")
	assert.ErrorIs(t, err, ErrCredentialsRequired)
}

func TestDefaultDownloadPath(t *testing.T) {
	assert.Equal(t, "com.zone.filtered.txt.gz", DefaultDownloadPath(DefaultZoneURL))
	assert.Equal(t, "zone.filtered.txt.gz", DefaultDownloadPath("http://example.test/"))
}
