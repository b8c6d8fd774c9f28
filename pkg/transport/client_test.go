package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bastiangx/dotsearch/internal/logger"
	"github.com/bastiangx/dotsearch/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)
	c, err := NewClient(url, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient("  ")
	assert.ErrorIs(t, err, ErrEmptyEndpoint)
}

func TestLookupEndpointDefault(t *testing.T) {
	c := newTestClient(t, "http://localhost:9000/api/search")
	assert.Equal(t, "http://localhost:9000/api/batch-lookup", c.lookupEndpoint)
	assert.Equal(t, "http://localhost:9000/api/search", c.Endpoint())
}

func TestSearchSendsCanonicalJSON(t *testing.T) {
	var (
		gotBody   string
		gotType   string
		gotID     string
		gotMethod string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotType = r.Header.Get("Content-Type")
		gotID = r.Header.Get(RequestIDHeader)
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"free":["b","a"],"reserved":null}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/api/search")
	payload := query.Normalize(query.RawInput{Words: "Cat", Postfixes: "hub", MinWordCount: 1, MaxWordCount: 2})

	res, err := c.Search(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotType)
	assert.NotEmpty(t, gotID)
	assert.Equal(t, payload.Key(), gotBody)
	assert.Equal(t, []string{"b", "a"}, res.Free, "transport does not reorder")
	assert.Nil(t, res.Reserved)
}

func TestSearchMissingKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL).Search(context.Background(), query.Payload{})
	require.NoError(t, err)
	assert.True(t, res.Normalized().Equal(query.EmptyResult()))
}

func TestSearchMsgpack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/msgpack", r.Header.Get("Content-Type"))

		var p query.Payload
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, msgpack.Unmarshal(body, &p))
		assert.Equal(t, []string{"cat"}, p.Words)

		data, _ := msgpack.Marshal(map[string][]string{"free": {"cat"}, "reserved": {"dog"}})
		w.Header().Set("Content-Type", "application/msgpack")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithCodec(CodecMsgpack))
	res, err := c.Search(context.Background(), query.Normalize(query.RawInput{Words: "cat"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, res.Free)
	assert.Equal(t, []string{"dog"}, res.Reserved)
}

func TestSearchFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "non-success status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
				assert.Equal(t, "overloaded", se.Body)
				assert.Contains(t, se.Error(), "503")
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"free": [1, 2`))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decoding response")
			},
		},
		{
			name: "wrong shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"free": "cat"}`))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decoding response")
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "empty body")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).Search(context.Background(), query.Payload{})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestSearchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL, WithTimeout(20*time.Millisecond))
	_, err := c.Search(context.Background(), query.Payload{})
	assert.ErrorContains(t, err, "sending request")
}

func TestSearchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).Search(context.Background(), query.Payload{})
	assert.ErrorContains(t, err, "sending request")
}

func TestBatchLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/batch-lookup", r.URL.Path)
		var req BatchLookupRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := BatchLookupResponse{IsFree: map[string]bool{}}
		for _, w := range req.Words {
			resp.IsFree[w] = w != "taken"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/api/search")
	got, err := c.BatchLookup(context.Background(), []string{"taken", "open"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"taken": false, "open": true}, got)
}

func TestCodecs(t *testing.T) {
	c, err := ParseCodec("MsgPack")
	require.NoError(t, err)
	assert.Equal(t, CodecMsgpack, c)

	c, err = ParseCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecJSON, c)

	_, err = ParseCodec("xml")
	assert.Error(t, err)

	assert.Equal(t, CodecMsgpack, CodecForContentType("application/msgpack"))
	assert.Equal(t, CodecJSON, CodecForContentType("application/json; charset=utf-8"))
	assert.Equal(t, CodecJSON, CodecForContentType(""))
}
